package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zawadihr/backend/internal/config"
	"github.com/zawadihr/backend/internal/models"
	"github.com/zawadihr/backend/internal/services"
)

// AdvanceHandler adapts the salary-advance engine to HTTP. Employees operate
// on their own record; operations/HR/admin act across the company.
type AdvanceHandler struct {
	advances   *services.AdvanceService
	repayments *services.AdvanceRepaymentService
	analytics  *services.AdvanceAnalyticsService
	validator  *services.ValidationHelper
	cfg        *config.HRConfig
}

func NewAdvanceHandler(advances *services.AdvanceService, repayments *services.AdvanceRepaymentService, analytics *services.AdvanceAnalyticsService, cfg *config.HRConfig) *AdvanceHandler {
	return &AdvanceHandler{
		advances:   advances,
		repayments: repayments,
		analytics:  analytics,
		validator:  services.NewValidationHelper(),
		cfg:        cfg,
	}
}

// pageBounds normalizes page/page_size query parameters against the
// configured default and ceiling.
func pageBounds(q url.Values, cfg *config.HRConfig) (page, size int) {
	page, _ = strconv.Atoi(q.Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ = strconv.Atoi(q.Get("page_size"))
	if size <= 0 {
		size = cfg.DefaultPageSize
	}
	if size > cfg.MaxPageSize {
		size = cfg.MaxPageSize
	}
	return page, size
}

// subjectEmployee resolves which employee an operation targets. Employee
// accounts are pinned to their own linked record; staff may pass
// employee_id explicitly.
func subjectEmployee(r *http.Request, actor services.Actor) (uuid.UUID, error) {
	if actor.Role == models.RoleEmployee {
		if actor.EmployeeID == nil {
			return uuid.Nil, errors.New("account has no linked employee record")
		}
		return *actor.EmployeeID, nil
	}
	raw := r.URL.Query().Get("employee_id")
	if raw == "" {
		if actor.EmployeeID != nil {
			return *actor.EmployeeID, nil
		}
		return uuid.Nil, errors.New("employee_id is required")
	}
	return uuid.Parse(raw)
}

// CheckEligibility evaluates whether an advance may be requested
// @Summary Check advance eligibility
// @Description Run the ordered eligibility checks for an amount
// @Tags advances
// @Produce json
// @Security BearerAuth
// @Param amount query number true "Requested amount"
// @Param employee_id query string false "Employee ID (staff only)"
// @Success 200 {object} services.EligibilityResult
// @Failure 400 {object} services.ErrorResponse
// @Router /advances/eligibility [get]
func (h *AdvanceHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	actor, ok := services.ActorFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil || !amount.IsPositive() {
		services.SendErrorResponse(w, "A positive amount is required", http.StatusBadRequest, nil)
		return
	}

	employeeID, err := subjectEmployee(r, actor)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	result, err := h.advances.CheckEligibility(employeeID, actor.CompanyID, amount)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// CalculateRepayment quotes the repayment schedule for an amount
// @Summary Calculate repayment schedule
// @Tags advances
// @Produce json
// @Security BearerAuth
// @Param amount query number true "Advance amount"
// @Param employee_id query string false "Employee ID (staff only)"
// @Success 200 {object} services.RepaymentCalculation
// @Failure 404 {object} services.ErrorResponse
// @Router /advances/calculate [get]
func (h *AdvanceHandler) CalculateRepayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := services.ActorFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil || !amount.IsPositive() {
		services.SendErrorResponse(w, "A positive amount is required", http.StatusBadRequest, nil)
		return
	}

	employeeID, err := subjectEmployee(r, actor)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	calc, err := h.advances.CalculateForEmployee(employeeID, actor.CompanyID, amount)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(calc)
}

// CreateAdvanceRequestBody is the advance creation payload.
// @Description Advance request creation payload
type CreateAdvanceRequestBody struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Reason      string          `json:"reason" validate:"required,min=3"`
	Attachments []string        `json:"attachments,omitempty"`
}

// CreateRequest submits a new salary advance request
// @Summary Request salary advance
// @Description Submit an advance request through the eligibility gate
// @Tags advances
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateAdvanceRequestBody true "Advance request"
// @Success 201 {object} models.AdvanceRequest
// @Failure 400 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse "Ineligible, with evaluator result"
// @Router /advances [post]
func (h *AdvanceHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := services.ActorFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	employeeID, err := subjectEmployee(r, actor)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var body CreateAdvanceRequestBody
	if err := dec.Decode(&body); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&body); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if !body.Amount.IsPositive() {
		services.SendErrorResponse(w, "Amount must be positive", http.StatusBadRequest, nil)
		return
	}

	req, err := h.advances.CreateRequest(employeeID, actor.CompanyID, services.CreateAdvanceInput{
		Amount:      body.Amount,
		Reason:      body.Reason,
		Attachments: body.Attachments,
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(req)
}

// DecideRequestBody carries an approval decision.
// @Description Advance decision payload
type DecideRequestBody struct {
	Decision        string           `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	ApprovedAmount  *decimal.Decimal `json:"approved_amount,omitempty"`
	RejectionReason *string          `json:"rejection_reason,omitempty"`
	Comments        *string          `json:"comments,omitempty"`
}

// Decide approves or rejects a pending advance request
// @Summary Decide advance request
// @Description Apply a role-gated approval decision; self-approval escalates to HR
// @Tags advances
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Request ID"
// @Param request body DecideRequestBody true "Decision"
// @Success 200 {object} models.AdvanceRequest
// @Failure 409 {object} services.ErrorResponse "Already processed or self-approval"
// @Router /advances/{requestId}/decision [put]
func (h *AdvanceHandler) Decide(w http.ResponseWriter, r *http.Request) {
	actor, ok := services.ActorFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestId"))
	if err != nil {
		services.SendErrorResponse(w, "Invalid request id", http.StatusBadRequest, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var body DecideRequestBody
	if err := dec.Decode(&body); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&body); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	action := models.ActionApprove
	if body.Decision == "REJECTED" {
		action = models.ActionReject
	}

	req, err := h.advances.Decide(requestID, actor.CompanyID, actor, services.DecideInput{
		Decision:        action,
		ApprovedAmount:  body.ApprovedAmount,
		RejectionReason: body.RejectionReason,
		Comments:        body.Comments,
	})
	if err != nil {
		if errors.Is(err, services.ErrSelfApproval) && req != nil {
			// The request was escalated, not decided; report both facts.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]any{
				"error":   err.Error(),
				"request": req,
			})
			return
		}
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(req)
}

// DisburseRequestBody records a disbursement execution.
// @Description Disbursement payload
type DisburseRequestBody struct {
	Method    string  `json:"method" validate:"required"`
	Reference *string `json:"reference,omitempty"`
	Comments  *string `json:"comments,omitempty"`
}

// Disburse marks an approved advance as paid out
// @Summary Disburse advance
// @Description Record the execution of an approved advance
// @Tags advances
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Request ID"
// @Param request body DisburseRequestBody true "Disbursement"
// @Success 200 {object} models.AdvanceRequest
// @Failure 409 {object} services.ErrorResponse
// @Router /advances/{requestId}/disburse [put]
func (h *AdvanceHandler) Disburse(w http.ResponseWriter, r *http.Request) {
	actor, ok := services.ActorFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestId"))
	if err != nil {
		services.SendErrorResponse(w, "Invalid request id", http.StatusBadRequest, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var body DisburseRequestBody
	if err := dec.Decode(&body); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&body); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	req, err := h.advances.Disburse(requestID, actor.CompanyID, actor, services.DisburseInput{
		Method:    body.Method,
		Reference: body.Reference,
		Comments:  body.Comments,
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(req)
}

// RepaymentRequestBody records one repayment event.
// @Description Repayment payload
type RepaymentRequestBody struct {
	PrincipalAmount decimal.Decimal  `json:"principal_amount" validate:"required"`
	InterestAmount  *decimal.Decimal `json:"interest_amount,omitempty"`
	Method          string           `json:"method" validate:"required"`
	Reference       *string          `json:"reference,omitempty"`
	PayrollPeriodID *uuid.UUID       `json:"payroll_period_id,omitempty"`
	Note            *string          `json:"note,omitempty"`
}

// RecordRepayment appends a repayment against a disbursed advance
// @Summary Record repayment
// @Description Append a repayment ledger entry and update the outstanding balance
// @Tags advances
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Request ID"
// @Param request body RepaymentRequestBody true "Repayment"
// @Success 201 {object} models.Repayment
// @Failure 409 {object} services.ErrorResponse
// @Router /advances/{requestId}/repayments [post]
func (h *AdvanceHandler) RecordRepayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := services.ActorFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestId"))
	if err != nil {
		services.SendErrorResponse(w, "Invalid request id", http.StatusBadRequest, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var body RepaymentRequestBody
	if err := dec.Decode(&body); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&body); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	interest := decimal.Zero
	if body.InterestAmount != nil {
		interest = *body.InterestAmount
	}

	repayment, _, err := h.repayments.RecordRepayment(requestID, actor.CompanyID, services.RepaymentInput{
		PrincipalAmount: body.PrincipalAmount,
		InterestAmount:  interest,
		Method:          body.Method,
		Reference:       body.Reference,
		PayrollPeriodID: body.PayrollPeriodID,
		Note:            body.Note,
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(repayment)
}

// ListRepayments lists the repayment ledger for one advance
// @Summary List repayments
// @Tags advances
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Request ID"
// @Success 200 {array} models.Repayment
// @Router /advances/{requestId}/repayments [get]
func (h *AdvanceHandler) ListRepayments(w http.ResponseWriter, r *http.Request) {
	actor, ok := services.ActorFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestId"))
	if err != nil {
		services.SendErrorResponse(w, "Invalid request id", http.StatusBadRequest, nil)
		return
	}

	repayments, err := h.repayments.ListRepayments(requestID, actor.CompanyID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(repayments)
}

// GetRequest fetches a single advance request
// @Summary Get advance request
// @Tags advances
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Request ID"
// @Success 200 {object} models.AdvanceRequest
// @Failure 404 {object} services.ErrorResponse
// @Router /advances/{requestId} [get]
func (h *AdvanceHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := services.ActorFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestId"))
	if err != nil {
		services.SendErrorResponse(w, "Invalid request id", http.StatusBadRequest, nil)
		return
	}

	req, err := h.advances.GetRequest(requestID, actor.CompanyID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	if actor.Role == models.RoleEmployee && (actor.EmployeeID == nil || *actor.EmployeeID != req.EmployeeID) {
		services.SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(req)
}

// ListRequests lists advance requests with filters and pagination
// @Summary List advance requests
// @Tags advances
// @Produce json
// @Security BearerAuth
// @Param employee_id query string false "Filter by employee"
// @Param status query string false "Filter by status"
// @Param from query string false "Request date lower bound (RFC 3339)"
// @Param to query string false "Request date upper bound (RFC 3339)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} map[string]any
// @Router /advances [get]
func (h *AdvanceHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := services.ActorFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	filters := services.AdvanceFilters{}
	q := r.URL.Query()

	if actor.Role == models.RoleEmployee {
		if actor.EmployeeID == nil {
			services.SendErrorResponse(w, "Account has no linked employee record", http.StatusBadRequest, nil)
			return
		}
		filters.EmployeeID = actor.EmployeeID
	} else if raw := q.Get("employee_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			services.SendErrorResponse(w, "Invalid employee_id", http.StatusBadRequest, nil)
			return
		}
		filters.EmployeeID = &id
	}

	if raw := q.Get("status"); raw != "" {
		status := models.ApprovalStatus(raw)
		filters.Status = &status
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			services.SendErrorResponse(w, "Invalid from date", http.StatusBadRequest, nil)
			return
		}
		filters.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			services.SendErrorResponse(w, "Invalid to date", http.StatusBadRequest, nil)
			return
		}
		filters.To = &t
	}
	filters.Page, filters.PageSize = pageBounds(q, h.cfg)

	requests, total, err := h.advances.ListRequests(actor.CompanyID, filters)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"requests": requests,
		"total":    total,
	})
}

// GetAnalytics returns yearly rollups for the company
// @Summary Advance analytics
// @Description Approval and disbursement rollups for a year
// @Tags advances
// @Produce json
// @Security BearerAuth
// @Param year query int false "Year (defaults to current)"
// @Success 200 {object} services.AdvanceAnalytics
// @Router /advances/analytics [get]
func (h *AdvanceHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	actor, ok := services.ActorFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	summary, err := h.analytics.GetAnalytics(actor.CompanyID, year)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}
