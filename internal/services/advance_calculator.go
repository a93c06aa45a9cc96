package services

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/zawadihr/backend/internal/models"
)

var (
	hundred = decimal.NewFromInt(100)
	// annual % rate spread over 12 months: amount * rate * months / 1200
	annualRateDivisor = decimal.NewFromInt(1200)
)

// RepaymentCalculation is the full quote for one advance under one policy.
type RepaymentCalculation struct {
	MaxAllowedAmount         decimal.Decimal `json:"max_allowed_amount"`
	MonthlyDeduction         decimal.Decimal `json:"monthly_deduction"`
	InterestRate             decimal.Decimal `json:"interest_rate"`
	EstimatedRepaymentMonths int             `json:"estimated_repayment_months"`
	TotalInterest            decimal.Decimal `json:"total_interest"`
	TotalRepayment           decimal.Decimal `json:"total_repayment"`
	RepaymentStartDate       time.Time       `json:"repayment_start_date"`
}

// MaxAllowedAmount is min(salary * maxAdvancePercentage/100, absolute cap).
func MaxAllowedAmount(salary decimal.Decimal, policy *models.LendingPolicy) decimal.Decimal {
	max := salary.Mul(policy.MaxAdvancePercentage).Div(hundred)
	if policy.MaxAdvanceAmount != nil && policy.MaxAdvanceAmount.LessThan(max) {
		max = *policy.MaxAdvanceAmount
	}
	return max
}

// CalculateRepayment quotes the deduction schedule and simple interest for an
// advance of the given amount. Interest is prorated by the estimated duration
// in months, not compounded. Repayment starts one calendar month after now,
// with normal carry into the next year.
//
// Policies are validated to carry a positive deduction percentage at
// activation time; a non-positive one here is refused rather than divided by.
func CalculateRepayment(salary decimal.Decimal, policy *models.LendingPolicy, amount decimal.Decimal, now time.Time) (*RepaymentCalculation, error) {
	monthlyDeduction := amount.Mul(policy.MonthlyDeductionPercentage).Div(hundred)
	if !monthlyDeduction.IsPositive() {
		return nil, ErrInvalidDeduction
	}

	months := amount.Div(monthlyDeduction).Ceil().IntPart()
	totalInterest := amount.Mul(policy.InterestRate).Mul(decimal.NewFromInt(months)).Div(annualRateDivisor)

	return &RepaymentCalculation{
		MaxAllowedAmount:         MaxAllowedAmount(salary, policy),
		MonthlyDeduction:         monthlyDeduction,
		InterestRate:             policy.InterestRate,
		EstimatedRepaymentMonths: int(months),
		TotalInterest:            totalInterest,
		TotalRepayment:           amount.Add(totalInterest),
		RepaymentStartDate:       now.AddDate(0, 1, 0),
	}, nil
}
