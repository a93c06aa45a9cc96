package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/zawadihr/backend/internal/models"
)

var advanceTestColumns = []string{
	"id", "company_id", "employee_id", "requested_amount", "approved_amount", "reason",
	"attachments", "status", "approved_at", "approved_by", "rejected_at", "rejected_by",
	"rejection_reason", "disbursed_at", "disbursed_by", "disbursement_method",
	"disbursement_reference", "repayment_start_date", "monthly_deduction", "interest_rate",
	"total_interest", "outstanding_balance", "total_repaid", "request_date", "created_at",
	"updated_at",
}

func advanceRow(id, companyID, employeeID uuid.UUID, status models.ApprovalStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(advanceTestColumns).
		AddRow(id, companyID, employeeID, "10000", nil, "school fees",
			"{}", status, nil, nil, nil, nil,
			nil, nil, nil, nil,
			nil, now.AddDate(0, 1, 0), "2000", "12",
			"500", "10000", "0", now, now,
			now)
}

func TestAdvanceService_Decide(t *testing.T) {
	requestID := uuid.New()
	companyID := uuid.New()
	employeeID := uuid.New()
	approver := Actor{UserID: uuid.New(), CompanyID: companyID, Role: models.RoleOperations}

	t.Run("approval moves pending to approved", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAdvanceService(db, NewAdvancePolicyService(db))

		mock.ExpectQuery("SELECT (.+) FROM advance_requests WHERE id = \\$1 AND company_id = \\$2").
			WithArgs(requestID, companyID).
			WillReturnRows(advanceRow(requestID, companyID, employeeID, models.StatusPending))

		mock.ExpectExec("UPDATE advance_requests SET status = \\$1, approved_amount = \\$2").
			WillReturnResult(sqlmock.NewResult(0, 1))

		req, err := service.Decide(requestID, companyID, approver, DecideInput{Decision: models.ActionApprove})
		assert.NoError(t, err)
		assert.Equal(t, models.StatusApproved, req.Status)
		assert.NotNil(t, req.ApprovedAmount)
		assert.True(t, req.ApprovedAmount.Equal(dec("10000")))
		assert.Equal(t, approver.UserID, *req.ApprovedBy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("losing a decision race reports already processed", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAdvanceService(db, NewAdvancePolicyService(db))

		mock.ExpectQuery("SELECT (.+) FROM advance_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(advanceRow(requestID, companyID, employeeID, models.StatusPending))

		// Another decision landed between the read and the conditional update.
		mock.ExpectExec("UPDATE advance_requests SET status = \\$1, approved_amount = \\$2").
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err = service.Decide(requestID, companyID, approver, DecideInput{Decision: models.ActionApprove})
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deciding an already decided request reports already processed", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAdvanceService(db, NewAdvancePolicyService(db))

		mock.ExpectQuery("SELECT (.+) FROM advance_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(advanceRow(requestID, companyID, employeeID, models.StatusRejected))

		_, err = service.Decide(requestID, companyID, approver, DecideInput{Decision: models.ActionApprove})
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejection requires a reason", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAdvanceService(db, NewAdvancePolicyService(db))

		mock.ExpectQuery("SELECT (.+) FROM advance_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(advanceRow(requestID, companyID, employeeID, models.StatusPending))

		_, err = service.Decide(requestID, companyID, approver, DecideInput{Decision: models.ActionReject})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "rejection reason is required")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejection records reason and audit fields", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAdvanceService(db, NewAdvancePolicyService(db))

		mock.ExpectQuery("SELECT (.+) FROM advance_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(advanceRow(requestID, companyID, employeeID, models.StatusPending))

		mock.ExpectExec("UPDATE advance_requests SET status = \\$1, rejected_at = \\$2").
			WithArgs(models.StatusRejected, sqlmock.AnyArg(), approver.UserID, "insufficient tenure",
				sqlmock.AnyArg(), requestID, companyID, models.StatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		reason := "insufficient tenure"
		req, err := service.Decide(requestID, companyID, approver, DecideInput{
			Decision:        models.ActionReject,
			RejectionReason: &reason,
		})
		assert.NoError(t, err)
		assert.Equal(t, models.StatusRejected, req.Status)
		assert.Equal(t, "insufficient tenure", *req.RejectionReason)
		assert.Equal(t, approver.UserID, *req.RejectedBy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("employee role may not decide", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAdvanceService(db, NewAdvancePolicyService(db))

		mock.ExpectQuery("SELECT (.+) FROM advance_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(advanceRow(requestID, companyID, employeeID, models.StatusPending))

		subject := Actor{UserID: uuid.New(), CompanyID: companyID, Role: models.RoleEmployee}
		_, err = service.Decide(requestID, companyID, subject, DecideInput{Decision: models.ActionApprove})
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ops confirmation keeps the amount granted at the HR step", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAdvanceService(db, NewAdvancePolicyService(db))

		// HR granted 8000 on a 10000 request and the schedule was requoted
		// for 8000 at that step.
		now := time.Now()
		hrApproved := sqlmock.NewRows(advanceTestColumns).
			AddRow(requestID, companyID, employeeID, "10000", "8000", "school fees",
				"{}", models.StatusHRApproved, now, uuid.New(), nil, nil,
				nil, nil, nil, nil,
				nil, now.AddDate(0, 1, 0), "1600", "12",
				"400", "8000", "0", now, now,
				now)

		mock.ExpectQuery("SELECT (.+) FROM advance_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(hrApproved)

		// No requote: the conditional update carries the granted amount and
		// the schedule HR's approval produced.
		mock.ExpectExec("UPDATE advance_requests SET status = \\$1, approved_amount = \\$2").
			WithArgs(models.StatusOpsFinalApproved, decimalArg("8000"), sqlmock.AnyArg(), approver.UserID,
				decimalArg("1600"), decimalArg("12"), decimalArg("400"),
				sqlmock.AnyArg(), decimalArg("8000"), sqlmock.AnyArg(),
				requestID, companyID, models.StatusHRApproved).
			WillReturnResult(sqlmock.NewResult(0, 1))

		req, err := service.Decide(requestID, companyID, approver, DecideInput{Decision: models.ActionApprove})
		assert.NoError(t, err)
		assert.Equal(t, models.StatusOpsFinalApproved, req.Status)
		assert.True(t, req.ApprovedAmount.Equal(dec("8000")))
		assert.True(t, req.OutstandingBalance.Equal(dec("8000")))
		assert.True(t, req.MonthlyDeduction.Equal(dec("1600")))
		assert.True(t, req.TotalInterest.Equal(dec("400")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("self-approval escalates to HR", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAdvanceService(db, NewAdvancePolicyService(db))

		mock.ExpectQuery("SELECT (.+) FROM advance_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(advanceRow(requestID, companyID, employeeID, models.StatusPending))

		mock.ExpectExec("UPDATE advance_requests SET status = \\$1, updated_at = \\$2").
			WithArgs(models.StatusForwardedToHR, sqlmock.AnyArg(), requestID, companyID, models.StatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// The approver's own linked employee record is the subject.
		self := Actor{UserID: uuid.New(), CompanyID: companyID, Role: models.RoleOperations, EmployeeID: &employeeID}
		req, err := service.Decide(requestID, companyID, self, DecideInput{Decision: models.ActionApprove})
		assert.ErrorIs(t, err, ErrSelfApproval)
		assert.NotNil(t, req)
		assert.Equal(t, models.StatusForwardedToHR, req.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdvanceService_Disburse(t *testing.T) {
	requestID := uuid.New()
	companyID := uuid.New()
	employeeID := uuid.New()
	operator := Actor{UserID: uuid.New(), CompanyID: companyID, Role: models.RoleOperations}

	t.Run("approved request can be disbursed", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAdvanceService(db, NewAdvancePolicyService(db))

		mock.ExpectQuery("SELECT (.+) FROM advance_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(advanceRow(requestID, companyID, employeeID, models.StatusApproved))

		mock.ExpectExec("UPDATE advance_requests SET status = \\$1, disbursed_at = \\$2").
			WillReturnResult(sqlmock.NewResult(0, 1))

		req, err := service.Disburse(requestID, companyID, operator, DisburseInput{Method: models.RepaymentMethodBankTransfer})
		assert.NoError(t, err)
		assert.Equal(t, models.StatusDisbursed, req.Status)
		assert.Equal(t, models.RepaymentMethodBankTransfer, *req.DisbursementMethod)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pending request cannot be disbursed", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAdvanceService(db, NewAdvancePolicyService(db))

		mock.ExpectQuery("SELECT (.+) FROM advance_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(advanceRow(requestID, companyID, employeeID, models.StatusPending))

		_, err = service.Disburse(requestID, companyID, operator, DisburseInput{Method: models.RepaymentMethodCash})
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("method is required", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAdvanceService(db, NewAdvancePolicyService(db))

		_, err = service.Disburse(requestID, companyID, operator, DisburseInput{Method: "  "})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "disbursement method is required")
	})

	t.Run("HR may not disburse", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAdvanceService(db, NewAdvancePolicyService(db))

		mock.ExpectQuery("SELECT (.+) FROM advance_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(advanceRow(requestID, companyID, employeeID, models.StatusApproved))

		hr := Actor{UserID: uuid.New(), CompanyID: companyID, Role: models.RoleHR}
		_, err = service.Disburse(requestID, companyID, hr, DisburseInput{Method: models.RepaymentMethodCash})
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdvanceService_GetRequest(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	service := NewAdvanceService(db, NewAdvancePolicyService(db))

	requestID := uuid.New()
	companyID := uuid.New()

	t.Run("missing request maps to ErrNotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM advance_requests").
			WithArgs(requestID, companyID).
			WillReturnRows(sqlmock.NewRows(advanceTestColumns))

		_, err := service.GetRequest(requestID, companyID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
