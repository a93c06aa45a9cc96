package models

import (
	"time"

	"github.com/google/uuid"
)

// Platform roles. Employees submit requests; operations and HR drive the
// approval chain; admins can do both.
const (
	RoleEmployee   = "employee"
	RoleOperations = "operations"
	RoleHR         = "hr"
	RoleAdmin      = "admin"
)

type User struct {
	ID         uuid.UUID  `json:"id"`
	CompanyID  uuid.UUID  `json:"company_id"`
	Email      string     `json:"email" example:"user@example.com"`
	FirstName  string     `json:"first_name" example:"Amina"`
	LastName   string     `json:"last_name" example:"Odhiambo"`
	Role       string     `json:"role" example:"hr"`
	EmployeeID *uuid.UUID `json:"employee_id,omitempty"` // set when the account belongs to an employee
	LastLogin  *time.Time `json:"last_login,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
