package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	LeaveTypeAnnual     = "ANNUAL"
	LeaveTypeSick       = "SICK"
	LeaveTypeMaternity  = "MATERNITY"
	LeaveTypePaternity  = "PATERNITY"
	LeaveTypeCompassion = "COMPASSIONATE"
	LeaveTypeUnpaid     = "UNPAID"
)

// LeaveRequest rides the same approval chain as salary advances: it is
// created in ops review, forwarded to HR, and finalized by operations.
// There is no financial recalculation step.
type LeaveRequest struct {
	ID         uuid.UUID      `json:"id"`
	CompanyID  uuid.UUID      `json:"company_id"`
	EmployeeID uuid.UUID      `json:"employee_id"`
	LeaveType  string         `json:"leave_type" example:"ANNUAL"`
	StartDate  time.Time      `json:"start_date"`
	EndDate    time.Time      `json:"end_date"`
	TotalDays  int            `json:"total_days"`
	Reason     string         `json:"reason"`
	Status     ApprovalStatus `json:"status"`

	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	DecidedBy       *uuid.UUID `json:"decided_by,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
