package services

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/zawadihr/backend/internal/models"
)

// AdvanceService drives the salary-advance lifecycle: creation through the
// eligibility gate, the role-gated decision state machine, and disbursement.
// Every transition is a conditional update guarded by the expected current
// status, so two concurrent decisions cannot both win.
type AdvanceService struct {
	db       *sql.DB
	policies *AdvancePolicyService
}

func NewAdvanceService(db *sql.DB, policies *AdvancePolicyService) *AdvanceService {
	return &AdvanceService{db: db, policies: policies}
}

// IneligibleError carries the failed eligibility result so callers can render
// the exact reason and figures.
type IneligibleError struct {
	Result EligibilityResult
}

func (e *IneligibleError) Error() string {
	return e.Result.Reason
}

const advanceColumns = `id, company_id, employee_id, requested_amount, approved_amount, reason,
	attachments, status, approved_at, approved_by, rejected_at, rejected_by, rejection_reason,
	disbursed_at, disbursed_by, disbursement_method, disbursement_reference,
	repayment_start_date, monthly_deduction, interest_rate, total_interest,
	outstanding_balance, total_repaid, request_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdvance(row rowScanner) (*models.AdvanceRequest, error) {
	var req models.AdvanceRequest
	err := row.Scan(&req.ID, &req.CompanyID, &req.EmployeeID, &req.RequestedAmount, &req.ApprovedAmount,
		&req.Reason, pq.Array(&req.Attachments), &req.Status,
		&req.ApprovedAt, &req.ApprovedBy, &req.RejectedAt, &req.RejectedBy, &req.RejectionReason,
		&req.DisbursedAt, &req.DisbursedBy, &req.DisbursementMethod, &req.DisbursementReference,
		&req.RepaymentStartDate, &req.MonthlyDeduction, &req.InterestRate, &req.TotalInterest,
		&req.OutstandingBalance, &req.TotalRepaid, &req.RequestDate, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetRequest is a tenant-scoped point lookup.
func (s *AdvanceService) GetRequest(requestID, companyID uuid.UUID) (*models.AdvanceRequest, error) {
	row := s.db.QueryRow(`
		SELECT `+advanceColumns+`
		FROM advance_requests
		WHERE id = $1 AND company_id = $2`, requestID, companyID)

	req, err := scanAdvance(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading advance request: %w", err)
	}
	return req, nil
}

func (s *AdvanceService) loadEmployee(employeeID, companyID uuid.UUID) (*models.Employee, error) {
	var e models.Employee
	err := s.db.QueryRow(`
		SELECT id, company_id, staff_number, first_name, last_name, email, position,
			monthly_salary, hire_date, status
		FROM employees
		WHERE id = $1 AND company_id = $2`, employeeID, companyID).
		Scan(&e.ID, &e.CompanyID, &e.StaffNumber, &e.FirstName, &e.LastName, &e.Email,
			&e.Position, &e.MonthlySalary, &e.HireDate, &e.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading employee: %w", err)
	}
	return &e, nil
}

// approvedThisYear counts requests granted in the current calendar year.
// Only APPROVED and DISBURSED count against the per-year limit.
func (s *AdvanceService) approvedThisYear(employeeID, companyID uuid.UUID, now time.Time) (int, error) {
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	yearEnd := yearStart.AddDate(1, 0, 0)

	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*)
		FROM advance_requests
		WHERE employee_id = $1 AND company_id = $2
		  AND status IN ('APPROVED', 'DISBURSED')
		  AND request_date >= $3 AND request_date < $4`,
		employeeID, companyID, yearStart, yearEnd).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting yearly advances: %w", err)
	}
	return count, nil
}

// hasOpenAdvance reports whether a disbursed advance with unpaid principal
// exists. One open advance at a time.
func (s *AdvanceService) hasOpenAdvance(employeeID, companyID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM advance_requests
			WHERE employee_id = $1 AND company_id = $2
			  AND status = 'DISBURSED' AND outstanding_balance > 0
		)`, employeeID, companyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking open advances: %w", err)
	}
	return exists, nil
}

// CheckEligibility gathers the employee, policy and history and runs the
// pure evaluator.
func (s *AdvanceService) CheckEligibility(employeeID, companyID uuid.UUID, amount decimal.Decimal) (EligibilityResult, error) {
	now := time.Now()

	employee, err := s.loadEmployee(employeeID, companyID)
	if err != nil {
		return EligibilityResult{}, err
	}

	in := EligibilityInput{
		Employee:        employee,
		RequestedAmount: amount,
		Now:             now,
	}

	// Fetching policy and history is pointless when the employee checks
	// already fail; the evaluator short-circuits in the same order.
	if employee != nil {
		in.Policy, err = s.policies.ResolveActivePolicy(companyID, now)
		if err != nil {
			return EligibilityResult{}, err
		}
		in.ApprovedThisYear, err = s.approvedThisYear(employeeID, companyID, now)
		if err != nil {
			return EligibilityResult{}, err
		}
		in.HasOpenAdvance, err = s.hasOpenAdvance(employeeID, companyID)
		if err != nil {
			return EligibilityResult{}, err
		}
	}

	return EvaluateEligibility(in), nil
}

// CalculateForEmployee quotes a repayment schedule for the employee under the
// currently active policy. Returns ErrNoActivePolicy when none is resolvable;
// callers must not fabricate default rates.
func (s *AdvanceService) CalculateForEmployee(employeeID, companyID uuid.UUID, amount decimal.Decimal) (*RepaymentCalculation, error) {
	now := time.Now()

	employee, err := s.loadEmployee(employeeID, companyID)
	if err != nil {
		return nil, err
	}
	if employee == nil {
		return nil, ErrNotFound
	}
	if employee.MonthlySalary == nil || !employee.MonthlySalary.IsPositive() {
		return nil, fmt.Errorf("employee has no salary on record")
	}

	policy, err := s.policies.ResolveActivePolicy(companyID, now)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, ErrNoActivePolicy
	}

	return CalculateRepayment(*employee.MonthlySalary, policy, amount, now)
}

// CreateAdvanceInput is the creation payload after HTTP decoding.
type CreateAdvanceInput struct {
	Amount      decimal.Decimal
	Reason      string
	Attachments []string
}

// CreateRequest runs the eligibility gate, quotes the repayment schedule and
// persists the request in its initial state. When the active policy has
// auto-approve set, the request is created directly in APPROVED with the
// requested amount granted.
func (s *AdvanceService) CreateRequest(employeeID, companyID uuid.UUID, input CreateAdvanceInput) (*models.AdvanceRequest, error) {
	now := time.Now()

	employee, err := s.loadEmployee(employeeID, companyID)
	if err != nil {
		return nil, err
	}

	in := EligibilityInput{
		Employee:        employee,
		RequestedAmount: input.Amount,
		Now:             now,
	}
	var policy *models.LendingPolicy
	if employee != nil {
		policy, err = s.policies.ResolveActivePolicy(companyID, now)
		if err != nil {
			return nil, err
		}
		in.Policy = policy
		in.ApprovedThisYear, err = s.approvedThisYear(employeeID, companyID, now)
		if err != nil {
			return nil, err
		}
		in.HasOpenAdvance, err = s.hasOpenAdvance(employeeID, companyID)
		if err != nil {
			return nil, err
		}
	}

	result := EvaluateEligibility(in)
	if !result.Eligible {
		return nil, &IneligibleError{Result: result}
	}

	calc, err := CalculateRepayment(*employee.MonthlySalary, policy, input.Amount, now)
	if err != nil {
		return nil, err
	}

	req := &models.AdvanceRequest{
		ID:                 uuid.New(),
		CompanyID:          companyID,
		EmployeeID:         employeeID,
		RequestedAmount:    input.Amount,
		Reason:             input.Reason,
		Attachments:        input.Attachments,
		Status:             models.StatusPending,
		RepaymentStartDate: &calc.RepaymentStartDate,
		MonthlyDeduction:   &calc.MonthlyDeduction,
		InterestRate:       &calc.InterestRate,
		TotalInterest:      &calc.TotalInterest,
		OutstandingBalance: input.Amount,
		TotalRepaid:        decimal.Zero,
		RequestDate:        now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	switch {
	case policy.AutoApprove:
		// Auto-approval skips the decision step entirely.
		approved := input.Amount
		req.Status = models.StatusApproved
		req.ApprovedAmount = &approved
		req.ApprovedAt = &now
	case policy.RequiresChainApproval:
		req.Status = models.StatusPendingOpsReview
	}

	_, err = s.db.Exec(`
		INSERT INTO advance_requests (id, company_id, employee_id, requested_amount, approved_amount,
			reason, attachments, status, approved_at, repayment_start_date, monthly_deduction,
			interest_rate, total_interest, outstanding_balance, total_repaid, request_date,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		req.ID, req.CompanyID, req.EmployeeID, req.RequestedAmount, req.ApprovedAmount,
		req.Reason, pq.Array(req.Attachments), req.Status, req.ApprovedAt, req.RepaymentStartDate,
		req.MonthlyDeduction, req.InterestRate, req.TotalInterest, req.OutstandingBalance,
		req.TotalRepaid, req.RequestDate, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating advance request: %w", err)
	}

	log.Printf("[ADVANCE] Created request %s for employee %s (status: %s, amount: %s)",
		req.ID, employeeID, req.Status, input.Amount.StringFixed(2))
	return req, nil
}

// DecideInput carries an approval decision.
type DecideInput struct {
	Decision        models.ApprovalAction // ActionApprove or ActionReject
	ApprovedAmount  *decimal.Decimal
	RejectionReason *string
	Comments        *string
}

// Decide applies an approval decision. The status update is conditional on
// the status the decision was made against: the loser of a concurrent
// decision race observes ErrAlreadyProcessed, never a silent overwrite.
//
// An approver whose linked employee is the request's subject cannot decide
// it: the request is escalated to HR instead and ErrSelfApproval is returned
// alongside the escalated request.
func (s *AdvanceService) Decide(requestID, companyID uuid.UUID, actor Actor, input DecideInput) (*models.AdvanceRequest, error) {
	if input.Decision != models.ActionApprove && input.Decision != models.ActionReject {
		return nil, fmt.Errorf("decision must be %s or %s", models.ActionApprove, models.ActionReject)
	}

	req, err := s.GetRequest(requestID, companyID)
	if err != nil {
		return nil, err
	}

	transition, ok := models.NextStatus(req.Status, input.Decision)
	if !ok {
		if !req.Status.IsPendingDecision() {
			return nil, ErrAlreadyProcessed
		}
		return nil, ErrInvalidState
	}
	if !transition.RoleAllowed(actor.Role) {
		return nil, fmt.Errorf("role %s may not decide a request in %s: %w", actor.Role, req.Status, ErrInvalidState)
	}

	if actor.EmployeeID != nil && *actor.EmployeeID == req.EmployeeID {
		return s.escalateSelfApproval(req, actor)
	}

	now := time.Now()

	if input.Decision == models.ActionReject {
		if input.RejectionReason == nil || strings.TrimSpace(*input.RejectionReason) == "" {
			return nil, fmt.Errorf("rejection reason is required")
		}
		return s.applyRejection(req, transition.Next, actor, *input.RejectionReason, now)
	}

	return s.applyApproval(req, transition.Next, actor, input.ApprovedAmount, now)
}

// escalateSelfApproval routes the request to the next role in the chain
// rather than letting the subject decide it or failing silently.
func (s *AdvanceService) escalateSelfApproval(req *models.AdvanceRequest, actor Actor) (*models.AdvanceRequest, error) {
	forward, ok := models.NextStatus(req.Status, models.ActionForward)
	if !ok {
		// No forward edge from here; refuse outright.
		return nil, ErrSelfApproval
	}

	result, err := s.db.Exec(`
		UPDATE advance_requests
		SET status = $1, updated_at = $2
		WHERE id = $3 AND company_id = $4 AND status = $5`,
		forward.Next, time.Now(), req.ID, req.CompanyID, req.Status)
	if err != nil {
		return nil, fmt.Errorf("escalating request: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrAlreadyProcessed
	}

	log.Printf("[ADVANCE] Self-approval refused on %s by user %s; escalated %s -> %s",
		req.ID, actor.UserID, req.Status, forward.Next)
	req.Status = forward.Next
	return req, ErrSelfApproval
}

func (s *AdvanceService) applyApproval(req *models.AdvanceRequest, next models.ApprovalStatus, actor Actor, approvedAmount *decimal.Decimal, now time.Time) (*models.AdvanceRequest, error) {
	// The stored schedule was computed for Principal(): the requested amount
	// at creation, or the amount granted at an earlier chain step. An ops
	// final approval without an explicit amount confirms that grant.
	baseline := req.Principal()
	amount := baseline
	if approvedAmount != nil {
		if !approvedAmount.IsPositive() {
			return nil, fmt.Errorf("approved amount must be positive")
		}
		amount = *approvedAmount
	}

	deduction := req.MonthlyDeduction
	interestRate := req.InterestRate
	totalInterest := req.TotalInterest
	startDate := req.RepaymentStartDate

	// A changed amount invalidates the stored schedule; requote it under the
	// policy in force right now.
	if !amount.Equal(baseline) {
		employee, err := s.loadEmployee(req.EmployeeID, req.CompanyID)
		if err != nil {
			return nil, err
		}
		if employee == nil || employee.MonthlySalary == nil {
			return nil, ErrNotFound
		}
		policy, err := s.policies.ResolveActivePolicy(req.CompanyID, now)
		if err != nil {
			return nil, err
		}
		if policy == nil {
			return nil, ErrNoActivePolicy
		}
		calc, err := CalculateRepayment(*employee.MonthlySalary, policy, amount, now)
		if err != nil {
			return nil, err
		}
		deduction = &calc.MonthlyDeduction
		interestRate = &calc.InterestRate
		totalInterest = &calc.TotalInterest
		startDate = &calc.RepaymentStartDate
	}

	result, err := s.db.Exec(`
		UPDATE advance_requests
		SET status = $1, approved_amount = $2, approved_at = $3, approved_by = $4,
			monthly_deduction = $5, interest_rate = $6, total_interest = $7,
			repayment_start_date = $8, outstanding_balance = $9, updated_at = $10
		WHERE id = $11 AND company_id = $12 AND status = $13`,
		next, amount, now, actor.UserID,
		deduction, interestRate, totalInterest,
		startDate, amount, now,
		req.ID, req.CompanyID, req.Status)
	if err != nil {
		return nil, fmt.Errorf("approving request: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrAlreadyProcessed
	}

	log.Printf("[ADVANCE] Request %s approved by user %s: %s -> %s (amount: %s)",
		req.ID, actor.UserID, req.Status, next, amount.StringFixed(2))

	req.Status = next
	req.ApprovedAmount = &amount
	req.ApprovedAt = &now
	req.ApprovedBy = &actor.UserID
	req.MonthlyDeduction = deduction
	req.InterestRate = interestRate
	req.TotalInterest = totalInterest
	req.RepaymentStartDate = startDate
	req.OutstandingBalance = amount
	req.UpdatedAt = now
	return req, nil
}

func (s *AdvanceService) applyRejection(req *models.AdvanceRequest, next models.ApprovalStatus, actor Actor, reason string, now time.Time) (*models.AdvanceRequest, error) {
	result, err := s.db.Exec(`
		UPDATE advance_requests
		SET status = $1, rejected_at = $2, rejected_by = $3, rejection_reason = $4, updated_at = $5
		WHERE id = $6 AND company_id = $7 AND status = $8`,
		next, now, actor.UserID, reason, now,
		req.ID, req.CompanyID, req.Status)
	if err != nil {
		return nil, fmt.Errorf("rejecting request: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrAlreadyProcessed
	}

	log.Printf("[ADVANCE] Request %s rejected by user %s: %s -> %s",
		req.ID, actor.UserID, req.Status, next)

	req.Status = next
	req.RejectedAt = &now
	req.RejectedBy = &actor.UserID
	req.RejectionReason = &reason
	req.UpdatedAt = now
	return req, nil
}

// ForwardToHR advances a chain-flow request from ops review to HR.
func (s *AdvanceService) ForwardToHR(requestID, companyID uuid.UUID, actor Actor) (*models.AdvanceRequest, error) {
	req, err := s.GetRequest(requestID, companyID)
	if err != nil {
		return nil, err
	}

	transition, ok := models.NextStatus(req.Status, models.ActionForward)
	if !ok {
		return nil, ErrInvalidState
	}
	if !transition.RoleAllowed(actor.Role) {
		return nil, fmt.Errorf("role %s may not forward a request in %s: %w", actor.Role, req.Status, ErrInvalidState)
	}

	now := time.Now()
	result, err := s.db.Exec(`
		UPDATE advance_requests
		SET status = $1, updated_at = $2
		WHERE id = $3 AND company_id = $4 AND status = $5`,
		transition.Next, now, req.ID, req.CompanyID, req.Status)
	if err != nil {
		return nil, fmt.Errorf("forwarding request: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrAlreadyProcessed
	}

	req.Status = transition.Next
	req.UpdatedAt = now
	return req, nil
}

// DisburseInput records the execution of an approved advance.
type DisburseInput struct {
	Method    string
	Reference *string
	Comments  *string
}

// Disburse marks approved funds as paid out. Approval is a decision;
// disbursement is a separately authorized execution event, legal only from
// an approved status.
func (s *AdvanceService) Disburse(requestID, companyID uuid.UUID, actor Actor, input DisburseInput) (*models.AdvanceRequest, error) {
	if strings.TrimSpace(input.Method) == "" {
		return nil, fmt.Errorf("disbursement method is required")
	}

	req, err := s.GetRequest(requestID, companyID)
	if err != nil {
		return nil, err
	}

	transition, ok := models.NextStatus(req.Status, models.ActionDisburse)
	if !ok {
		return nil, ErrInvalidState
	}
	if !transition.RoleAllowed(actor.Role) {
		return nil, fmt.Errorf("role %s may not disburse: %w", actor.Role, ErrInvalidState)
	}

	now := time.Now()
	result, err := s.db.Exec(`
		UPDATE advance_requests
		SET status = $1, disbursed_at = $2, disbursed_by = $3,
			disbursement_method = $4, disbursement_reference = $5, updated_at = $6
		WHERE id = $7 AND company_id = $8 AND status = $9`,
		transition.Next, now, actor.UserID, input.Method, input.Reference, now,
		req.ID, req.CompanyID, req.Status)
	if err != nil {
		return nil, fmt.Errorf("disbursing request: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrInvalidState
	}

	log.Printf("[ADVANCE] Request %s disbursed by user %s via %s", req.ID, actor.UserID, input.Method)

	req.Status = transition.Next
	req.DisbursedAt = &now
	req.DisbursedBy = &actor.UserID
	req.DisbursementMethod = &input.Method
	req.DisbursementReference = input.Reference
	req.UpdatedAt = now
	return req, nil
}

// AdvanceFilters narrows ListRequests. Zero values mean "no filter".
type AdvanceFilters struct {
	EmployeeID *uuid.UUID
	Status     *models.ApprovalStatus
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// ListRequests returns a page of requests plus the unpaginated total.
func (s *AdvanceService) ListRequests(companyID uuid.UUID, filters AdvanceFilters) ([]models.AdvanceRequest, int, error) {
	where := []string{"company_id = $1"}
	args := []any{companyID}

	if filters.EmployeeID != nil {
		args = append(args, *filters.EmployeeID)
		where = append(where, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if filters.Status != nil {
		args = append(args, *filters.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.From != nil {
		args = append(args, *filters.From)
		where = append(where, fmt.Sprintf("request_date >= $%d", len(args)))
	}
	if filters.To != nil {
		args = append(args, *filters.To)
		where = append(where, fmt.Sprintf("request_date <= $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM advance_requests WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting advance requests: %w", err)
	}

	if filters.PageSize <= 0 {
		filters.PageSize = 20
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT %s FROM advance_requests
		WHERE %s
		ORDER BY request_date DESC
		LIMIT $%d OFFSET $%d`, advanceColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing advance requests: %w", err)
	}
	defer rows.Close()

	requests := []models.AdvanceRequest{}
	for rows.Next() {
		req, err := scanAdvance(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning advance request: %w", err)
		}
		requests = append(requests, *req)
	}
	return requests, total, rows.Err()
}
