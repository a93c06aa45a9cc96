package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/zawadihr/backend/internal/models"
)

var leaveTestColumns = []string{
	"id", "company_id", "employee_id", "leave_type", "start_date", "end_date", "total_days",
	"reason", "status", "decided_at", "decided_by", "rejection_reason", "created_at", "updated_at",
}

func leaveRow(id, companyID, employeeID uuid.UUID, status models.ApprovalStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(leaveTestColumns).
		AddRow(id, companyID, employeeID, "ANNUAL", now.AddDate(0, 0, 7), now.AddDate(0, 0, 11), 5,
			"family visit", status, nil, nil, nil, now, now)
}

func TestLeaveService_CreateLeave(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewLeaveService(db)

	employeeID := uuid.New()
	companyID := uuid.New()

	t.Run("inclusive day count", func(t *testing.T) {
		start := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, time.September, 11, 0, 0, 0, 0, time.UTC)

		mock.ExpectExec("INSERT INTO leave_requests").
			WillReturnResult(sqlmock.NewResult(1, 1))

		lr, err := service.CreateLeave(employeeID, companyID, CreateLeaveInput{
			LeaveType: "ANNUAL",
			StartDate: start,
			EndDate:   end,
			Reason:    "family visit",
		})
		assert.NoError(t, err)
		assert.Equal(t, 5, lr.TotalDays)
		assert.Equal(t, models.StatusPendingOpsReview, lr.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("single day leave counts one day", func(t *testing.T) {
		day := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)

		mock.ExpectExec("INSERT INTO leave_requests").
			WillReturnResult(sqlmock.NewResult(1, 1))

		lr, err := service.CreateLeave(employeeID, companyID, CreateLeaveInput{
			LeaveType: "SICK",
			StartDate: day,
			EndDate:   day,
			Reason:    "clinic appointment",
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, lr.TotalDays)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("end before start is refused", func(t *testing.T) {
		start := time.Date(2026, time.September, 11, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)

		_, err := service.CreateLeave(employeeID, companyID, CreateLeaveInput{
			LeaveType: "ANNUAL",
			StartDate: start,
			EndDate:   end,
			Reason:    "family visit",
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "end date cannot precede start date")
	})
}

func TestLeaveService_Decide(t *testing.T) {
	requestID := uuid.New()
	companyID := uuid.New()
	employeeID := uuid.New()

	t.Run("ops forwards to HR", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewLeaveService(db)

		mock.ExpectQuery("SELECT (.+) FROM leave_requests WHERE id = \\$1 AND company_id = \\$2").
			WithArgs(requestID, companyID).
			WillReturnRows(leaveRow(requestID, companyID, employeeID, models.StatusPendingOpsReview))

		mock.ExpectExec("UPDATE leave_requests SET status = \\$1, updated_at = \\$2").
			WithArgs(models.StatusForwardedToHR, sqlmock.AnyArg(), requestID, companyID, models.StatusPendingOpsReview).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ops := Actor{UserID: uuid.New(), CompanyID: companyID, Role: models.RoleOperations}
		lr, err := service.Decide(requestID, companyID, ops, LeaveDecideInput{Decision: models.ActionForward})
		assert.NoError(t, err)
		assert.Equal(t, models.StatusForwardedToHR, lr.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("HR approves a forwarded request", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewLeaveService(db)

		mock.ExpectQuery("SELECT (.+) FROM leave_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(leaveRow(requestID, companyID, employeeID, models.StatusForwardedToHR))

		mock.ExpectExec("UPDATE leave_requests SET status = \\$1, decided_at = \\$2").
			WillReturnResult(sqlmock.NewResult(0, 1))

		hr := Actor{UserID: uuid.New(), CompanyID: companyID, Role: models.RoleHR}
		lr, err := service.Decide(requestID, companyID, hr, LeaveDecideInput{Decision: models.ActionApprove})
		assert.NoError(t, err)
		assert.Equal(t, models.StatusHRApproved, lr.Status)
		assert.Equal(t, hr.UserID, *lr.DecidedBy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ops may not approve at the HR stage", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewLeaveService(db)

		mock.ExpectQuery("SELECT (.+) FROM leave_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(leaveRow(requestID, companyID, employeeID, models.StatusForwardedToHR))

		ops := Actor{UserID: uuid.New(), CompanyID: companyID, Role: models.RoleOperations}
		_, err = service.Decide(requestID, companyID, ops, LeaveDecideInput{Decision: models.ActionApprove})
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("self-approval escalates instead of deciding", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewLeaveService(db)

		mock.ExpectQuery("SELECT (.+) FROM leave_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(leaveRow(requestID, companyID, employeeID, models.StatusPendingOpsReview))

		mock.ExpectExec("UPDATE leave_requests SET status = \\$1, updated_at = \\$2").
			WithArgs(models.StatusForwardedToHR, sqlmock.AnyArg(), requestID, companyID, models.StatusPendingOpsReview).
			WillReturnResult(sqlmock.NewResult(0, 1))

		self := Actor{UserID: uuid.New(), CompanyID: companyID, Role: models.RoleOperations, EmployeeID: &employeeID}
		lr, err := service.Decide(requestID, companyID, self, LeaveDecideInput{Decision: models.ActionReject})
		assert.ErrorIs(t, err, ErrSelfApproval)
		assert.NotNil(t, lr)
		assert.Equal(t, models.StatusForwardedToHR, lr.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejection requires a reason", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewLeaveService(db)

		mock.ExpectQuery("SELECT (.+) FROM leave_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(leaveRow(requestID, companyID, employeeID, models.StatusForwardedToHR))

		hr := Actor{UserID: uuid.New(), CompanyID: companyID, Role: models.RoleHR}
		_, err = service.Decide(requestID, companyID, hr, LeaveDecideInput{Decision: models.ActionReject})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "rejection reason is required")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("terminal request reports already processed", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewLeaveService(db)

		mock.ExpectQuery("SELECT (.+) FROM leave_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(leaveRow(requestID, companyID, employeeID, models.StatusHRRejected))

		hr := Actor{UserID: uuid.New(), CompanyID: companyID, Role: models.RoleHR}
		_, err = service.Decide(requestID, companyID, hr, LeaveDecideInput{Decision: models.ActionApprove})
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
