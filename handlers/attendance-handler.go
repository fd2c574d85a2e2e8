package handlers

import (
	"net/http"
	"time"

	"staff-portal/middleware"
	"staff-portal/models"
	"staff-portal/store"

	"github.com/gorilla/mux"
)

const (
	attendancePath = "attendance"
	dateLayout     = "2006-01-02"
)

type AttendanceHandler struct {
	store    store.Accessor
	location *time.Location
	now      func() time.Time
}

// NewAttendanceHandler keys records by the calendar date in location. A nil
// location means UTC.
func NewAttendanceHandler(accessor store.Accessor, location *time.Location) *AttendanceHandler {
	if location == nil {
		location = time.UTC
	}
	return &AttendanceHandler{store: accessor, location: location, now: time.Now}
}

// LoginHandler records today's login for an employee, replacing any earlier
// record for the same day.
func (h *AttendanceHandler) LoginHandler(w http.ResponseWriter, r *http.Request) error {
	var req models.AttendanceLogin
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if req.EmployeeID == "" {
		return middleware.NewAppError(http.StatusBadRequest, "Employee ID is required", nil)
	}
	employeeID, ok := pathKey(req.EmployeeID)
	if !ok {
		return middleware.NewAppError(http.StatusBadRequest, "Invalid employee ID", nil)
	}

	now := h.now().In(h.location)
	record := models.AttendanceRecord{
		LoginTime: now.Format(time.RFC3339),
		Status:    models.AttendancePresent,
	}
	if err := h.store.SetAt(r.Context(), store.Join(attendancePath, employeeID, now.Format(dateLayout)), record); err != nil {
		return storeError(err)
	}

	return writeJSON(w, http.StatusOK, JSONResponse{
		"success": true,
		"message": "Attendance logged successfully",
	})
}

func (h *AttendanceHandler) ListHandler(w http.ResponseWriter, r *http.Request) error {
	employeeID, ok := pathKey(mux.Vars(r)["employeeId"])
	if !ok {
		return middleware.NewAppError(http.StatusBadRequest, "Invalid employee ID", nil)
	}

	snapshot, err := h.store.ReadAll(r.Context(), store.Join(attendancePath, employeeID))
	if err != nil {
		return storeError(err)
	}

	entries := make([]models.AttendanceEntry, 0, len(snapshot.Children))
	for _, child := range snapshot.Children {
		var record models.AttendanceRecord
		if err := child.Decode(&record); err != nil {
			return middleware.NewAppError(http.StatusInternalServerError, "Internal server error", err)
		}
		entries = append(entries, models.AttendanceEntry{
			Date:      child.Key,
			LoginTime: record.LoginTime,
			Status:    record.Status,
		})
	}
	return writeJSON(w, http.StatusOK, entries)
}
