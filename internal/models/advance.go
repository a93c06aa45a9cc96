package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LendingPolicy holds the tenant-configured parameters governing salary
// advances. At most one policy is active for a company at any instant;
// resolution is by latest effective date among policies whose effective
// window contains now.
type LendingPolicy struct {
	ID                         uuid.UUID        `json:"id"`
	CompanyID                  uuid.UUID        `json:"company_id"`
	Name                       string           `json:"name" example:"Standard Advance Policy"`
	EffectiveDate              time.Time        `json:"effective_date"`
	ExpiryDate                 *time.Time       `json:"expiry_date,omitempty"`
	IsActive                   bool             `json:"is_active"`
	MinServiceMonths           int              `json:"min_service_months" example:"6"`
	MaxAdvancePercentage       decimal.Decimal  `json:"max_advance_percentage" example:"50"` // of monthly salary
	MaxAdvanceAmount           *decimal.Decimal `json:"max_advance_amount,omitempty"`        // absolute cap, optional
	MaxAdvancesPerYear         int              `json:"max_advances_per_year" example:"2"`
	InterestRate               decimal.Decimal  `json:"interest_rate" example:"12"` // annual %
	MonthlyDeductionPercentage decimal.Decimal  `json:"monthly_deduction_percentage" example:"20"`
	AutoApprove                bool             `json:"auto_approve"`
	RequiresChainApproval      bool             `json:"requires_chain_approval"` // ops-review/HR chain instead of the simple flow
	CreatedAt                  time.Time        `json:"created_at"`
	UpdatedAt                  time.Time        `json:"updated_at"`
}

// AdvanceRequest is the audit record of one salary advance. It is never
// deleted; Status plus the repayment accumulators are its only mutable
// lifecycle fields.
type AdvanceRequest struct {
	ID              uuid.UUID        `json:"id"`
	CompanyID       uuid.UUID        `json:"company_id"`
	EmployeeID      uuid.UUID        `json:"employee_id"`
	RequestedAmount decimal.Decimal  `json:"requested_amount"`
	ApprovedAmount  *decimal.Decimal `json:"approved_amount,omitempty"`
	Reason          string           `json:"reason"`
	Attachments     []string         `json:"attachments,omitempty"`
	Status          ApprovalStatus   `json:"status"`

	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectedBy      *uuid.UUID `json:"rejected_by,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`

	DisbursedAt           *time.Time `json:"disbursed_at,omitempty"`
	DisbursedBy           *uuid.UUID `json:"disbursed_by,omitempty"`
	DisbursementMethod    *string    `json:"disbursement_method,omitempty"`
	DisbursementReference *string    `json:"disbursement_reference,omitempty"`

	RepaymentStartDate *time.Time       `json:"repayment_start_date,omitempty"`
	MonthlyDeduction   *decimal.Decimal `json:"monthly_deduction,omitempty"`
	InterestRate       *decimal.Decimal `json:"interest_rate,omitempty"`
	TotalInterest      *decimal.Decimal `json:"total_interest,omitempty"`

	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	TotalRepaid        decimal.Decimal `json:"total_repaid"`

	RequestDate time.Time `json:"request_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Principal is the amount being repaid: the approved amount once a decision
// exists, otherwise the requested amount.
func (r *AdvanceRequest) Principal() decimal.Decimal {
	if r.ApprovedAmount != nil {
		return *r.ApprovedAmount
	}
	return r.RequestedAmount
}

// Repayment methods recorded on the ledger.
const (
	RepaymentMethodPayroll      = "PAYROLL_DEDUCTION"
	RepaymentMethodBankTransfer = "BANK_TRANSFER"
	RepaymentMethodCash         = "CASH"
)

// Repayment is an append-only ledger entry against a disbursed advance.
// Rows are immutable once created.
type Repayment struct {
	ID              uuid.UUID       `json:"id"`
	AdvanceID       uuid.UUID       `json:"advance_id"`
	CompanyID       uuid.UUID       `json:"company_id"`
	PaymentDate     time.Time       `json:"payment_date"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
	InterestAmount  decimal.Decimal `json:"interest_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"` // principal + interest
	Method          string          `json:"method" example:"PAYROLL_DEDUCTION"`
	Reference       *string         `json:"reference,omitempty"`
	PayrollPeriodID *uuid.UUID      `json:"payroll_period_id,omitempty"`
	Note            *string         `json:"note,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
