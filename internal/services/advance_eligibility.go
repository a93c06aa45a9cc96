package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zawadihr/backend/internal/models"
)

// serviceMonth is the 30-day month used for service-length checks. This is a
// deliberate approximation: elapsed time divided by a 30-day constant, not
// calendar months. Changing it changes eligibility outcomes.
const serviceMonth = 30 * 24 * time.Hour

// EligibilityInput is everything the evaluator needs, pre-fetched by the
// caller so the decision itself stays pure.
type EligibilityInput struct {
	Employee         *models.Employee
	Policy           *models.LendingPolicy
	RequestedAmount  decimal.Decimal
	ApprovedThisYear int  // requests APPROVED or DISBURSED in the current calendar year
	HasOpenAdvance   bool // a DISBURSED request with outstanding balance > 0 exists
	Now              time.Time
}

// EligibilityResult carries the verdict plus the figures the checks computed,
// so callers can render a precise message without re-deriving arithmetic.
type EligibilityResult struct {
	Eligible      bool             `json:"eligible"`
	Reason        string           `json:"reason,omitempty"`
	MaxAmount     *decimal.Decimal `json:"max_amount,omitempty"`
	ServiceMonths int              `json:"service_months"`
	UsedThisYear  int              `json:"used_this_year"`
}

// EvaluateEligibility runs the ordered eligibility checks, short-circuiting
// on the first failure. The order is part of the contract: it determines
// which reason the employee sees.
func EvaluateEligibility(in EligibilityInput) EligibilityResult {
	if in.Employee == nil {
		return EligibilityResult{Reason: "employee not found"}
	}
	if !in.Employee.IsActive() {
		return EligibilityResult{Reason: "employee is not active"}
	}
	if in.Employee.MonthlySalary == nil || !in.Employee.MonthlySalary.IsPositive() {
		return EligibilityResult{Reason: "employee has no salary on record"}
	}
	if in.Policy == nil {
		return EligibilityResult{Reason: "no active advance policy for this organization"}
	}

	serviceMonths := int(in.Now.Sub(in.Employee.HireDate) / serviceMonth)
	if serviceMonths < in.Policy.MinServiceMonths {
		return EligibilityResult{
			Reason: fmt.Sprintf("minimum service period not met: %d of %d months",
				serviceMonths, in.Policy.MinServiceMonths),
			ServiceMonths: serviceMonths,
		}
	}

	maxAmount := MaxAllowedAmount(*in.Employee.MonthlySalary, in.Policy)

	if in.ApprovedThisYear >= in.Policy.MaxAdvancesPerYear {
		return EligibilityResult{
			Reason: fmt.Sprintf("advance limit reached: %d of %d advances this year",
				in.ApprovedThisYear, in.Policy.MaxAdvancesPerYear),
			MaxAmount:     &maxAmount,
			ServiceMonths: serviceMonths,
			UsedThisYear:  in.ApprovedThisYear,
		}
	}

	if in.HasOpenAdvance {
		return EligibilityResult{
			Reason:        "an advance is already outstanding",
			MaxAmount:     &maxAmount,
			ServiceMonths: serviceMonths,
			UsedThisYear:  in.ApprovedThisYear,
		}
	}

	if in.RequestedAmount.GreaterThan(maxAmount) {
		return EligibilityResult{
			Reason: fmt.Sprintf("requested amount %s exceeds the maximum allowed %s",
				in.RequestedAmount.StringFixed(2), maxAmount.StringFixed(2)),
			MaxAmount:     &maxAmount,
			ServiceMonths: serviceMonths,
			UsedThisYear:  in.ApprovedThisYear,
		}
	}

	return EligibilityResult{
		Eligible:      true,
		MaxAmount:     &maxAmount,
		ServiceMonths: serviceMonths,
		UsedThisYear:  in.ApprovedThisYear,
	}
}
