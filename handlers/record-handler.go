package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"staff-portal/config"
	"staff-portal/middleware"
	"staff-portal/store"

	"github.com/gorilla/mux"
)

type saveRequest struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// RecordHandler serves the generic save/load routes. Only collections
// declared in config are reachable.
type RecordHandler struct {
	collections []config.CollectionConfig
	store       store.Accessor
}

func NewRecordHandler(collections []config.CollectionConfig, accessor store.Accessor) *RecordHandler {
	return &RecordHandler{collections: collections, store: accessor}
}

func (h *RecordHandler) collection(name string) (config.CollectionConfig, bool) {
	return config.Config{Collections: h.collections}.Collection(name)
}

func (h *RecordHandler) SaveHandler(w http.ResponseWriter, r *http.Request) error {
	var req saveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if req.Path == "" || len(req.Data) == 0 || string(req.Data) == "null" {
		return middleware.NewAppError(http.StatusBadRequest, "Path and data are required", nil)
	}

	collection, ok := h.collection(req.Path)
	if !ok {
		return middleware.NewAppError(http.StatusBadRequest, "Unknown collection", nil)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(req.Data, &data); err != nil || data == nil {
		return middleware.NewAppError(http.StatusBadRequest, "Data must be a JSON object", err)
	}
	for _, field := range collection.RequiredFields {
		if value, present := data[field]; !present || value == nil {
			return middleware.NewAppError(http.StatusBadRequest, fmt.Sprintf("Missing required field: %s", field), nil)
		}
	}

	id, err := h.store.PushNew(r.Context(), collection.Name, data)
	if err != nil {
		return storeError(err)
	}

	return writeJSON(w, http.StatusCreated, JSONResponse{
		"success": true,
		"message": "Data saved successfully",
		"id":      id,
		"data":    data,
	})
}

// LoadHandler returns the child values of a collection in key order, an empty
// array when it is absent, or the raw value when it isn't an object.
func (h *RecordHandler) LoadHandler(w http.ResponseWriter, r *http.Request) error {
	collection, ok := h.collection(mux.Vars(r)["collection"])
	if !ok {
		return middleware.NewAppError(http.StatusNotFound, "Unknown collection", nil)
	}

	snapshot, err := h.store.ReadAll(r.Context(), collection.Name)
	if err != nil {
		return storeError(err)
	}

	switch {
	case !snapshot.Exists:
		return writeJSON(w, http.StatusOK, []json.RawMessage{})
	case snapshot.IsObject():
		return writeJSON(w, http.StatusOK, snapshot.Values())
	default:
		return writeJSON(w, http.StatusOK, snapshot.Raw)
	}
}
