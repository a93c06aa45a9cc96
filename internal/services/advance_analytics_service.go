package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdvanceAnalyticsService computes read-only rollups over a tenant's advance
// history. It feeds dashboards and reports; nothing in the lifecycle depends
// on it.
type AdvanceAnalyticsService struct {
	db *sql.DB
}

func NewAdvanceAnalyticsService(db *sql.DB) *AdvanceAnalyticsService {
	return &AdvanceAnalyticsService{db: db}
}

// AdvanceAnalytics is the yearly rollup. Rates are percentages; a zero
// denominator yields a zero rate, with no other floor or ceiling.
type AdvanceAnalytics struct {
	Year             int             `json:"year"`
	TotalRequests    int             `json:"total_requests"`
	ApprovedCount    int             `json:"approved_count"`
	DisbursedCount   int             `json:"disbursed_count"`
	ApprovalRate     decimal.Decimal `json:"approval_rate"`     // approved / total x 100
	DisbursementRate decimal.Decimal `json:"disbursement_rate"` // disbursed / approved x 100
	TotalDisbursed   decimal.Decimal `json:"total_disbursed"`   // sum of granted amounts on disbursed requests
	TotalRepaid      decimal.Decimal `json:"total_repaid"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"` // open balances on currently disbursed requests
}

// GetAnalytics aggregates the company's requests for the given year. Year 0
// means the current year.
func (s *AdvanceAnalyticsService) GetAnalytics(companyID uuid.UUID, year int) (*AdvanceAnalytics, error) {
	if year == 0 {
		year = time.Now().Year()
	}
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := yearStart.AddDate(1, 0, 0)

	a := &AdvanceAnalytics{Year: year}
	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE approved_at IS NOT NULL),
			COUNT(*) FILTER (WHERE disbursed_at IS NOT NULL),
			COALESCE(SUM(COALESCE(approved_amount, requested_amount)) FILTER (WHERE disbursed_at IS NOT NULL), 0),
			COALESCE(SUM(total_repaid), 0),
			COALESCE(SUM(outstanding_balance) FILTER (WHERE status = 'DISBURSED'), 0)
		FROM advance_requests
		WHERE company_id = $1 AND request_date >= $2 AND request_date < $3`,
		companyID, yearStart, yearEnd).
		Scan(&a.TotalRequests, &a.ApprovedCount, &a.DisbursedCount,
			&a.TotalDisbursed, &a.TotalRepaid, &a.TotalOutstanding)
	if err != nil {
		return nil, fmt.Errorf("aggregating advance analytics: %w", err)
	}

	a.ApprovalRate = rate(a.ApprovedCount, a.TotalRequests)
	a.DisbursementRate = rate(a.DisbursedCount, a.ApprovedCount)
	return a, nil
}

func rate(part, whole int) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(whole)))
}
