package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zawadihr/backend/internal/models"
)

// AdvanceRepaymentService is the append-only repayment ledger. A repayment
// row and the balance recomputation on its advance commit in one database
// transaction, under a row lock, so concurrent repayments cannot both read a
// stale outstanding balance.
type AdvanceRepaymentService struct {
	db *sql.DB
}

func NewAdvanceRepaymentService(db *sql.DB) *AdvanceRepaymentService {
	return &AdvanceRepaymentService{db: db}
}

// RepaymentInput records one repayment event against a disbursed advance.
type RepaymentInput struct {
	PrincipalAmount decimal.Decimal
	InterestAmount  decimal.Decimal // optional, defaults to zero
	Method          string
	Reference       *string
	PayrollPeriodID *uuid.UUID
	Note            *string
}

// RecordRepayment appends a repayment row and recomputes the advance's
// outstanding balance. Principal reduces the balance; interest is tracked on
// the row but never nets against principal. When the balance reaches zero the
// advance transitions to REPAID and accepts no further repayments.
func (s *AdvanceRepaymentService) RecordRepayment(requestID, companyID uuid.UUID, input RepaymentInput) (*models.Repayment, *models.AdvanceRequest, error) {
	if !input.PrincipalAmount.IsPositive() {
		return nil, nil, fmt.Errorf("principal amount must be positive")
	}
	if input.InterestAmount.IsNegative() {
		return nil, nil, fmt.Errorf("interest amount cannot be negative")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("starting repayment transaction: %w", err)
	}
	defer tx.Rollback()

	req, err := s.lockRequest(tx, requestID, companyID)
	if err != nil {
		return nil, nil, err
	}
	if req.Status != models.StatusDisbursed {
		return nil, nil, ErrInvalidState
	}

	now := time.Now()
	repayment := &models.Repayment{
		ID:              uuid.New(),
		AdvanceID:       req.ID,
		CompanyID:       companyID,
		PaymentDate:     now,
		PrincipalAmount: input.PrincipalAmount,
		InterestAmount:  input.InterestAmount,
		TotalAmount:     input.PrincipalAmount.Add(input.InterestAmount),
		Method:          input.Method,
		Reference:       input.Reference,
		PayrollPeriodID: input.PayrollPeriodID,
		Note:            input.Note,
		CreatedAt:       now,
	}

	_, err = tx.Exec(`
		INSERT INTO advance_repayments (id, advance_id, company_id, payment_date,
			principal_amount, interest_amount, total_amount, method, reference,
			payroll_period_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		repayment.ID, repayment.AdvanceID, repayment.CompanyID, repayment.PaymentDate,
		repayment.PrincipalAmount, repayment.InterestAmount, repayment.TotalAmount,
		repayment.Method, repayment.Reference, repayment.PayrollPeriodID, repayment.Note,
		repayment.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("inserting repayment: %w", err)
	}

	totalRepaid := req.TotalRepaid.Add(input.PrincipalAmount)
	outstanding := req.Principal().Sub(totalRepaid)
	status := models.StatusDisbursed
	if !outstanding.IsPositive() {
		outstanding = decimal.Zero
		status = models.StatusRepaid
	}

	result, err := tx.Exec(`
		UPDATE advance_requests
		SET total_repaid = $1, outstanding_balance = $2, status = $3, updated_at = $4
		WHERE id = $5 AND company_id = $6 AND status = 'DISBURSED'`,
		totalRepaid, outstanding, status, now, req.ID, companyID)
	if err != nil {
		return nil, nil, fmt.Errorf("updating advance balance: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil, ErrInvalidState
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing repayment: %w", err)
	}

	log.Printf("[REPAYMENT] Recorded %s against advance %s (principal: %s, outstanding: %s, status: %s)",
		repayment.ID, req.ID, input.PrincipalAmount.StringFixed(2), outstanding.StringFixed(2), status)

	req.TotalRepaid = totalRepaid
	req.OutstandingBalance = outstanding
	req.Status = status
	req.UpdatedAt = now
	return repayment, req, nil
}

// lockRequest loads the advance under FOR UPDATE so the balance
// recomputation is serialized with any concurrent repayment.
func (s *AdvanceRepaymentService) lockRequest(tx *sql.Tx, requestID, companyID uuid.UUID) (*models.AdvanceRequest, error) {
	var req models.AdvanceRequest
	err := tx.QueryRow(`
		SELECT id, company_id, employee_id, requested_amount, approved_amount, status,
			outstanding_balance, total_repaid
		FROM advance_requests
		WHERE id = $1 AND company_id = $2
		FOR UPDATE`, requestID, companyID).
		Scan(&req.ID, &req.CompanyID, &req.EmployeeID, &req.RequestedAmount, &req.ApprovedAmount,
			&req.Status, &req.OutstandingBalance, &req.TotalRepaid)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("locking advance request: %w", err)
	}
	return &req, nil
}

// ListRepayments returns the ledger entries for one advance, oldest first.
func (s *AdvanceRepaymentService) ListRepayments(requestID, companyID uuid.UUID) ([]models.Repayment, error) {
	rows, err := s.db.Query(`
		SELECT id, advance_id, company_id, payment_date, principal_amount, interest_amount,
			total_amount, method, reference, payroll_period_id, note, created_at
		FROM advance_repayments
		WHERE advance_id = $1 AND company_id = $2
		ORDER BY payment_date ASC`, requestID, companyID)
	if err != nil {
		return nil, fmt.Errorf("listing repayments: %w", err)
	}
	defer rows.Close()

	repayments := []models.Repayment{}
	for rows.Next() {
		var rp models.Repayment
		if err := rows.Scan(&rp.ID, &rp.AdvanceID, &rp.CompanyID, &rp.PaymentDate,
			&rp.PrincipalAmount, &rp.InterestAmount, &rp.TotalAmount, &rp.Method,
			&rp.Reference, &rp.PayrollPeriodID, &rp.Note, &rp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning repayment: %w", err)
		}
		repayments = append(repayments, rp)
	}
	return repayments, rows.Err()
}
