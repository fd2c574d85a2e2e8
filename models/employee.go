package models

type Employee struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// EmployeeFields are the fields a partial update may touch.
var EmployeeFields = []string{"name", "email", "role", "department"}
