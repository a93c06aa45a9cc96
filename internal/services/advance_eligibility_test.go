package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zawadihr/backend/internal/models"
)

func testEmployee(hiredMonthsAgo int, now time.Time) *models.Employee {
	salary := dec("60000")
	return &models.Employee{
		MonthlySalary: &salary,
		HireDate:      now.Add(-time.Duration(hiredMonthsAgo) * 30 * 24 * time.Hour),
		Status:        models.EmploymentActive,
	}
}

func TestEvaluateEligibility(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	t.Run("eligible request", func(t *testing.T) {
		result := EvaluateEligibility(EligibilityInput{
			Employee:        testEmployee(36, now),
			Policy:          testPolicy(),
			RequestedAmount: dec("10000"),
			Now:             now,
		})
		assert.True(t, result.Eligible)
		assert.Empty(t, result.Reason)
		assert.Equal(t, 36, result.ServiceMonths)
		assert.NotNil(t, result.MaxAmount)
		assert.True(t, result.MaxAmount.Equal(dec("30000")))
	})

	t.Run("missing employee", func(t *testing.T) {
		result := EvaluateEligibility(EligibilityInput{RequestedAmount: dec("10000"), Now: now})
		assert.False(t, result.Eligible)
		assert.Equal(t, "employee not found", result.Reason)
	})

	t.Run("inactive employee", func(t *testing.T) {
		employee := testEmployee(36, now)
		employee.Status = models.EmploymentInactive

		result := EvaluateEligibility(EligibilityInput{
			Employee: employee, Policy: testPolicy(), RequestedAmount: dec("10000"), Now: now,
		})
		assert.False(t, result.Eligible)
		assert.Equal(t, "employee is not active", result.Reason)
	})

	t.Run("no salary on record", func(t *testing.T) {
		employee := testEmployee(36, now)
		employee.MonthlySalary = nil

		result := EvaluateEligibility(EligibilityInput{
			Employee: employee, Policy: testPolicy(), RequestedAmount: dec("10000"), Now: now,
		})
		assert.False(t, result.Eligible)
		assert.Equal(t, "employee has no salary on record", result.Reason)
	})

	t.Run("no active policy", func(t *testing.T) {
		result := EvaluateEligibility(EligibilityInput{
			Employee: testEmployee(36, now), RequestedAmount: dec("10000"), Now: now,
		})
		assert.False(t, result.Eligible)
		assert.Equal(t, "no active advance policy for this organization", result.Reason)
	})

	t.Run("service period not met", func(t *testing.T) {
		policy := testPolicy()
		policy.MinServiceMonths = 24

		result := EvaluateEligibility(EligibilityInput{
			Employee: testEmployee(20, now), Policy: policy, RequestedAmount: dec("10000"), Now: now,
		})
		assert.False(t, result.Eligible)
		assert.Equal(t, "minimum service period not met: 20 of 24 months", result.Reason)
		assert.Equal(t, 20, result.ServiceMonths)
	})

	t.Run("yearly limit reached", func(t *testing.T) {
		result := EvaluateEligibility(EligibilityInput{
			Employee:         testEmployee(36, now),
			Policy:           testPolicy(),
			RequestedAmount:  dec("10000"),
			ApprovedThisYear: 2,
			Now:              now,
		})
		assert.False(t, result.Eligible)
		assert.Equal(t, "advance limit reached: 2 of 2 advances this year", result.Reason)
		assert.Equal(t, 2, result.UsedThisYear)
	})

	t.Run("open advance blocks a new one", func(t *testing.T) {
		result := EvaluateEligibility(EligibilityInput{
			Employee:        testEmployee(36, now),
			Policy:          testPolicy(),
			RequestedAmount: dec("10000"),
			HasOpenAdvance:  true,
			Now:             now,
		})
		assert.False(t, result.Eligible)
		assert.Equal(t, "an advance is already outstanding", result.Reason)
	})

	t.Run("amount above maximum", func(t *testing.T) {
		result := EvaluateEligibility(EligibilityInput{
			Employee:        testEmployee(36, now),
			Policy:          testPolicy(),
			RequestedAmount: dec("35000"),
			Now:             now,
		})
		assert.False(t, result.Eligible)
		assert.Equal(t, "requested amount 35000.00 exceeds the maximum allowed 30000.00", result.Reason)
	})

	t.Run("checks fail in declared order", func(t *testing.T) {
		// Inactive, no salary, over limit: the activity check fires first.
		employee := testEmployee(36, now)
		employee.Status = models.EmploymentInactive
		employee.MonthlySalary = nil

		result := EvaluateEligibility(EligibilityInput{
			Employee: employee, RequestedAmount: dec("99999999"), Now: now,
		})
		assert.Equal(t, "employee is not active", result.Reason)
	})

	t.Run("amount exactly at maximum is eligible", func(t *testing.T) {
		result := EvaluateEligibility(EligibilityInput{
			Employee:        testEmployee(36, now),
			Policy:          testPolicy(),
			RequestedAmount: dec("30000"),
			Now:             now,
		})
		assert.True(t, result.Eligible)
	})
}
