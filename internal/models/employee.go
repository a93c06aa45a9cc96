package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EmploymentActive   = "active"
	EmploymentInactive = "inactive"
)

type Employee struct {
	ID            uuid.UUID        `json:"id"`
	CompanyID     uuid.UUID        `json:"company_id"`
	BranchID      *uuid.UUID       `json:"branch_id,omitempty"`
	DepartmentID  *uuid.UUID       `json:"department_id,omitempty"`
	StaffNumber   string           `json:"staff_number" example:"EMP-00042"`
	FirstName     string           `json:"first_name"`
	LastName      string           `json:"last_name"`
	Email         string           `json:"email"`
	Position      string           `json:"position"`
	MonthlySalary *decimal.Decimal `json:"monthly_salary,omitempty"` // may be unset for new hires
	HireDate      time.Time        `json:"hire_date"`
	Status        string           `json:"status" example:"active"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// IsActive reports whether the employee is currently employed.
func (e *Employee) IsActive() bool {
	return e.Status == EmploymentActive
}

type Branch struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

type Department struct {
	ID        uuid.UUID  `json:"id"`
	CompanyID uuid.UUID  `json:"company_id"`
	BranchID  *uuid.UUID `json:"branch_id,omitempty"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
}
