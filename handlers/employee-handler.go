package handlers

import (
	"net/http"
	"strings"
	"time"

	"staff-portal/middleware"
	"staff-portal/models"
	"staff-portal/store"

	"github.com/gorilla/mux"
)

const employeesPath = "employees"

type EmployeeHandler struct {
	store store.Accessor
	now   func() time.Time
}

func NewEmployeeHandler(accessor store.Accessor) *EmployeeHandler {
	return &EmployeeHandler{store: accessor, now: time.Now}
}

// ListHandler returns every employee ordered by key, with the key as id.
func (h *EmployeeHandler) ListHandler(w http.ResponseWriter, r *http.Request) error {
	snapshot, err := h.store.ReadAll(r.Context(), employeesPath)
	if err != nil {
		return storeError(err)
	}

	employees := make([]models.Employee, 0, len(snapshot.Children))
	for _, child := range snapshot.Children {
		var employee models.Employee
		if err := child.Decode(&employee); err != nil {
			return middleware.NewAppError(http.StatusInternalServerError, "Internal server error", err)
		}
		employee.ID = child.Key
		employees = append(employees, employee)
	}
	return writeJSON(w, http.StatusOK, employees)
}

func (h *EmployeeHandler) CreateHandler(w http.ResponseWriter, r *http.Request) error {
	var employee models.Employee
	if err := decodeJSON(w, r, &employee); err != nil {
		return err
	}

	employee.Name = strings.TrimSpace(employee.Name)
	employee.Email = strings.TrimSpace(employee.Email)
	if employee.Name == "" || employee.Email == "" {
		return middleware.NewAppError(http.StatusBadRequest, "Name and email are required", nil)
	}
	employee.ID = ""
	employee.CreatedAt = h.now().UTC().Format(time.RFC3339)

	id, err := h.store.PushNew(r.Context(), employeesPath, employee)
	if err != nil {
		return storeError(err)
	}

	return writeJSON(w, http.StatusCreated, JSONResponse{
		"success": true,
		"id":      id,
		"message": "Employee created successfully",
	})
}

// UpdateHandler merges the known employee fields present in the body. The
// employee is not required to exist beforehand.
func (h *EmployeeHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) error {
	id, ok := pathKey(mux.Vars(r)["id"])
	if !ok {
		return middleware.NewAppError(http.StatusBadRequest, "Invalid employee ID", nil)
	}

	var body map[string]interface{}
	if err := decodeJSON(w, r, &body); err != nil {
		return err
	}

	fields := make(map[string]any)
	for _, name := range models.EmployeeFields {
		if value, present := body[name]; present {
			fields[name] = value
		}
	}
	if len(fields) == 0 {
		return middleware.NewAppError(http.StatusBadRequest, "No updatable fields provided", nil)
	}

	if err := h.store.UpdateAt(r.Context(), store.Join(employeesPath, id), fields); err != nil {
		return storeError(err)
	}

	return writeJSON(w, http.StatusOK, JSONResponse{
		"success": true,
		"message": "Employee updated successfully",
	})
}

func (h *EmployeeHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) error {
	id, ok := pathKey(mux.Vars(r)["id"])
	if !ok {
		return middleware.NewAppError(http.StatusBadRequest, "Invalid employee ID", nil)
	}

	if err := h.store.DeleteAt(r.Context(), store.Join(employeesPath, id)); err != nil {
		return storeError(err)
	}

	return writeJSON(w, http.StatusOK, JSONResponse{
		"success": true,
		"message": "Employee deleted successfully",
	})
}
