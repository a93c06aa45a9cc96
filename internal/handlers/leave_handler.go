package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/zawadihr/backend/internal/config"
	"github.com/zawadihr/backend/internal/models"
	"github.com/zawadihr/backend/internal/services"
)

// LeaveHandler adapts the leave approval flow to HTTP.
type LeaveHandler struct {
	leaves    *services.LeaveService
	validator *services.ValidationHelper
	cfg       *config.HRConfig
}

func NewLeaveHandler(leaves *services.LeaveService, cfg *config.HRConfig) *LeaveHandler {
	return &LeaveHandler{
		leaves:    leaves,
		validator: services.NewValidationHelper(),
		cfg:       cfg,
	}
}

// CreateLeaveRequestBody is the leave creation payload.
// @Description Leave request creation payload
type CreateLeaveRequestBody struct {
	LeaveType string    `json:"leave_type" validate:"required,oneof=ANNUAL SICK MATERNITY PATERNITY COMPASSIONATE UNPAID"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	Reason    string    `json:"reason" validate:"required,min=3"`
}

// CreateRequest submits a new leave request
// @Summary Request leave
// @Tags leave
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateLeaveRequestBody true "Leave request"
// @Success 201 {object} models.LeaveRequest
// @Failure 400 {object} services.ErrorResponse
// @Router /leave [post]
func (h *LeaveHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
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

	var body CreateLeaveRequestBody
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

	lr, err := h.leaves.CreateLeave(employeeID, actor.CompanyID, services.CreateLeaveInput{
		LeaveType: body.LeaveType,
		StartDate: body.StartDate,
		EndDate:   body.EndDate,
		Reason:    body.Reason,
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(lr)
}

// LeaveDecisionBody carries a leave decision.
// @Description Leave decision payload
type LeaveDecisionBody struct {
	Decision        string  `json:"decision" validate:"required,oneof=APPROVED REJECTED FORWARDED"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
}

// Decide approves, rejects or forwards a pending leave request
// @Summary Decide leave request
// @Tags leave
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Request ID"
// @Param request body LeaveDecisionBody true "Decision"
// @Success 200 {object} models.LeaveRequest
// @Failure 409 {object} services.ErrorResponse
// @Router /leave/{requestId}/decision [put]
func (h *LeaveHandler) Decide(w http.ResponseWriter, r *http.Request) {
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

	var body LeaveDecisionBody
	if err := dec.Decode(&body); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&body); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	action := models.ActionApprove
	switch body.Decision {
	case "REJECTED":
		action = models.ActionReject
	case "FORWARDED":
		action = models.ActionForward
	}

	lr, err := h.leaves.Decide(requestID, actor.CompanyID, actor, services.LeaveDecideInput{
		Decision:        action,
		RejectionReason: body.RejectionReason,
	})
	if err != nil {
		if errors.Is(err, services.ErrSelfApproval) && lr != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]any{
				"error":   err.Error(),
				"request": lr,
			})
			return
		}
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lr)
}

// GetRequest fetches a single leave request
// @Summary Get leave request
// @Tags leave
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Request ID"
// @Success 200 {object} models.LeaveRequest
// @Failure 404 {object} services.ErrorResponse
// @Router /leave/{requestId} [get]
func (h *LeaveHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
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

	lr, err := h.leaves.GetLeave(requestID, actor.CompanyID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	if actor.Role == models.RoleEmployee && (actor.EmployeeID == nil || *actor.EmployeeID != lr.EmployeeID) {
		services.SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lr)
}

// ListRequests lists leave requests with filters and pagination
// @Summary List leave requests
// @Tags leave
// @Produce json
// @Security BearerAuth
// @Param employee_id query string false "Filter by employee"
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} map[string]any
// @Router /leave [get]
func (h *LeaveHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := services.ActorFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	filters := services.LeaveFilters{}
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
	filters.Page, filters.PageSize = pageBounds(q, h.cfg)

	leaves, total, err := h.leaves.ListLeaves(actor.CompanyID, filters)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"requests": leaves,
		"total":    total,
	})
}
