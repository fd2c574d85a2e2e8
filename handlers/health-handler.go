package handlers

import "net/http"

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, JSONResponse{
		"status":  "OK",
		"message": "Server is running",
	})
}
