package services

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zawadihr/backend/internal/models"
)

// LeaveService drives the leave-request approval flow. It shares the advance
// engine's transition table: requests enter ops review, are forwarded to HR,
// and are finalized by operations. There is no financial step.
type LeaveService struct {
	db *sql.DB
}

func NewLeaveService(db *sql.DB) *LeaveService {
	return &LeaveService{db: db}
}

const leaveColumns = `id, company_id, employee_id, leave_type, start_date, end_date, total_days,
	reason, status, decided_at, decided_by, rejection_reason, created_at, updated_at`

func scanLeave(row rowScanner) (*models.LeaveRequest, error) {
	var lr models.LeaveRequest
	err := row.Scan(&lr.ID, &lr.CompanyID, &lr.EmployeeID, &lr.LeaveType, &lr.StartDate,
		&lr.EndDate, &lr.TotalDays, &lr.Reason, &lr.Status, &lr.DecidedAt, &lr.DecidedBy,
		&lr.RejectionReason, &lr.CreatedAt, &lr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &lr, nil
}

// GetLeave is a tenant-scoped point lookup.
func (s *LeaveService) GetLeave(requestID, companyID uuid.UUID) (*models.LeaveRequest, error) {
	row := s.db.QueryRow(`
		SELECT `+leaveColumns+`
		FROM leave_requests
		WHERE id = $1 AND company_id = $2`, requestID, companyID)

	lr, err := scanLeave(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading leave request: %w", err)
	}
	return lr, nil
}

// CreateLeaveInput is the creation payload after HTTP decoding.
type CreateLeaveInput struct {
	LeaveType string
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

// CreateLeave opens a leave request in ops review.
func (s *LeaveService) CreateLeave(employeeID, companyID uuid.UUID, input CreateLeaveInput) (*models.LeaveRequest, error) {
	if input.EndDate.Before(input.StartDate) {
		return nil, fmt.Errorf("end date cannot precede start date")
	}

	now := time.Now()
	lr := &models.LeaveRequest{
		ID:         uuid.New(),
		CompanyID:  companyID,
		EmployeeID: employeeID,
		LeaveType:  input.LeaveType,
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
		TotalDays:  int(input.EndDate.Sub(input.StartDate).Hours()/24) + 1,
		Reason:     input.Reason,
		Status:     models.StatusPendingOpsReview,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := s.db.Exec(`
		INSERT INTO leave_requests (id, company_id, employee_id, leave_type, start_date, end_date,
			total_days, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		lr.ID, lr.CompanyID, lr.EmployeeID, lr.LeaveType, lr.StartDate, lr.EndDate,
		lr.TotalDays, lr.Reason, lr.Status, lr.CreatedAt, lr.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating leave request: %w", err)
	}

	log.Printf("[LEAVE] Created request %s for employee %s (%s, %d days)",
		lr.ID, employeeID, lr.LeaveType, lr.TotalDays)
	return lr, nil
}

// LeaveDecideInput carries an approval decision on a leave request.
type LeaveDecideInput struct {
	Decision        models.ApprovalAction // ActionApprove, ActionReject or ActionForward
	RejectionReason *string
}

// Decide applies a decision through the shared transition table, with the
// same conditional-update and self-approval rules as salary advances.
func (s *LeaveService) Decide(requestID, companyID uuid.UUID, actor Actor, input LeaveDecideInput) (*models.LeaveRequest, error) {
	lr, err := s.GetLeave(requestID, companyID)
	if err != nil {
		return nil, err
	}

	transition, ok := models.NextStatus(lr.Status, input.Decision)
	if !ok {
		if !lr.Status.IsPendingDecision() {
			return nil, ErrAlreadyProcessed
		}
		return nil, ErrInvalidState
	}
	if !transition.RoleAllowed(actor.Role) {
		return nil, fmt.Errorf("role %s may not decide a leave request in %s: %w", actor.Role, lr.Status, ErrInvalidState)
	}

	if actor.EmployeeID != nil && *actor.EmployeeID == lr.EmployeeID {
		forward, ok := models.NextStatus(lr.Status, models.ActionForward)
		if !ok {
			return nil, ErrSelfApproval
		}
		result, err := s.db.Exec(`
			UPDATE leave_requests
			SET status = $1, updated_at = $2
			WHERE id = $3 AND company_id = $4 AND status = $5`,
			forward.Next, time.Now(), lr.ID, companyID, lr.Status)
		if err != nil {
			return nil, fmt.Errorf("escalating leave request: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return nil, ErrAlreadyProcessed
		}
		log.Printf("[LEAVE] Self-approval refused on %s by user %s; escalated %s -> %s",
			lr.ID, actor.UserID, lr.Status, forward.Next)
		lr.Status = forward.Next
		return lr, ErrSelfApproval
	}

	now := time.Now()

	if input.Decision == models.ActionReject {
		if input.RejectionReason == nil || strings.TrimSpace(*input.RejectionReason) == "" {
			return nil, fmt.Errorf("rejection reason is required")
		}
	}

	var result sql.Result
	if input.Decision == models.ActionForward {
		result, err = s.db.Exec(`
			UPDATE leave_requests
			SET status = $1, updated_at = $2
			WHERE id = $3 AND company_id = $4 AND status = $5`,
			transition.Next, now, lr.ID, companyID, lr.Status)
	} else {
		result, err = s.db.Exec(`
			UPDATE leave_requests
			SET status = $1, decided_at = $2, decided_by = $3, rejection_reason = $4, updated_at = $5
			WHERE id = $6 AND company_id = $7 AND status = $8`,
			transition.Next, now, actor.UserID, input.RejectionReason, now,
			lr.ID, companyID, lr.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("deciding leave request: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrAlreadyProcessed
	}

	log.Printf("[LEAVE] Request %s: %s -> %s by user %s", lr.ID, lr.Status, transition.Next, actor.UserID)

	lr.Status = transition.Next
	lr.UpdatedAt = now
	if input.Decision != models.ActionForward {
		lr.DecidedAt = &now
		lr.DecidedBy = &actor.UserID
		lr.RejectionReason = input.RejectionReason
	}
	return lr, nil
}

// LeaveFilters narrows ListLeaves. Zero values mean "no filter".
type LeaveFilters struct {
	EmployeeID *uuid.UUID
	Status     *models.ApprovalStatus
	Page       int
	PageSize   int
}

// ListLeaves returns a page of leave requests plus the unpaginated total.
func (s *LeaveService) ListLeaves(companyID uuid.UUID, filters LeaveFilters) ([]models.LeaveRequest, int, error) {
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
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM leave_requests WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting leave requests: %w", err)
	}

	if filters.PageSize <= 0 {
		filters.PageSize = 20
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT %s FROM leave_requests
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, leaveColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing leave requests: %w", err)
	}
	defer rows.Close()

	leaves := []models.LeaveRequest{}
	for rows.Next() {
		lr, err := scanLeave(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning leave request: %w", err)
		}
		leaves = append(leaves, *lr)
	}
	return leaves, total, rows.Err()
}
