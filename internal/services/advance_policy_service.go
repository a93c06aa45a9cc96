package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zawadihr/backend/internal/models"
)

type AdvancePolicyService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewAdvancePolicyService(db *sql.DB) *AdvancePolicyService {
	return &AdvancePolicyService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

const policyColumns = `id, company_id, name, effective_date, expiry_date, is_active,
	min_service_months, max_advance_percentage, max_advance_amount, max_advances_per_year,
	interest_rate, monthly_deduction_percentage, auto_approve, requires_chain_approval,
	created_at, updated_at`

func scanPolicy(row *sql.Row) (*models.LendingPolicy, error) {
	var p models.LendingPolicy
	err := row.Scan(&p.ID, &p.CompanyID, &p.Name, &p.EffectiveDate, &p.ExpiryDate, &p.IsActive,
		&p.MinServiceMonths, &p.MaxAdvancePercentage, &p.MaxAdvanceAmount, &p.MaxAdvancesPerYear,
		&p.InterestRate, &p.MonthlyDeductionPercentage, &p.AutoApprove, &p.RequiresChainApproval,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ResolveActivePolicy selects the company's lending policy in force at the
// given instant: active, effective window contains the instant, latest
// effective date wins. A missing policy is a distinct outcome, not an error;
// callers must treat (nil, nil) as ineligibility.
//
// Resolution is performed per call and never cached, so a policy whose
// effective window opens or closes mid-day is picked up immediately.
func (s *AdvancePolicyService) ResolveActivePolicy(companyID uuid.UUID, at time.Time) (*models.LendingPolicy, error) {
	row := s.db.QueryRow(`
		SELECT `+policyColumns+`
		FROM lending_policies
		WHERE company_id = $1
		  AND is_active = true
		  AND effective_date <= $2
		  AND (expiry_date IS NULL OR expiry_date >= $2)
		ORDER BY effective_date DESC
		LIMIT 1`, companyID, at)

	policy, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving active policy: %w", err)
	}
	return policy, nil
}

// CreatePolicyRequest is the policy creation payload.
// @Description Lending policy creation request
type CreatePolicyRequest struct {
	Name                       string           `json:"name" validate:"required,min=3"`
	EffectiveDate              time.Time        `json:"effective_date" validate:"required"`
	ExpiryDate                 *time.Time       `json:"expiry_date,omitempty"`
	MinServiceMonths           int              `json:"min_service_months" validate:"gte=0"`
	MaxAdvancePercentage       decimal.Decimal  `json:"max_advance_percentage" validate:"required"`
	MaxAdvanceAmount           *decimal.Decimal `json:"max_advance_amount,omitempty"`
	MaxAdvancesPerYear         int              `json:"max_advances_per_year" validate:"required,gt=0"`
	InterestRate               decimal.Decimal  `json:"interest_rate"`
	MonthlyDeductionPercentage decimal.Decimal  `json:"monthly_deduction_percentage" validate:"required"`
	AutoApprove                bool             `json:"auto_approve"`
	RequiresChainApproval      bool             `json:"requires_chain_approval"`
}

// validatePolicyFigures rejects configurations the calculator cannot serve.
// A zero monthly deduction would make the repayment term undefined, so it is
// refused here, at activation time, rather than at calculation time.
func validatePolicyFigures(req *CreatePolicyRequest) error {
	if !req.MonthlyDeductionPercentage.IsPositive() {
		return ErrInvalidDeduction
	}
	if !req.MaxAdvancePercentage.IsPositive() || req.MaxAdvancePercentage.GreaterThan(hundred) {
		return fmt.Errorf("max advance percentage must be between 0 and 100")
	}
	if req.InterestRate.IsNegative() {
		return fmt.Errorf("interest rate cannot be negative")
	}
	if req.MaxAdvanceAmount != nil && !req.MaxAdvanceAmount.IsPositive() {
		return fmt.Errorf("max advance amount must be positive when set")
	}
	if req.ExpiryDate != nil && req.ExpiryDate.Before(req.EffectiveDate) {
		return fmt.Errorf("expiry date cannot precede effective date")
	}
	return nil
}

// CreatePolicy creates and activates a lending policy
// @Summary Create lending policy
// @Description Create a salary advance policy for the authenticated company
// @Tags policies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreatePolicyRequest true "Policy parameters"
// @Success 201 {object} models.LendingPolicy
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /policies [post]
func (s *AdvancePolicyService) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	companyID, ok := CompanyIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreatePolicyRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if err := validatePolicyFigures(&req); err != nil {
		log.Printf("[POLICY] Rejected policy %q for company %s: %v", req.Name, companyID, err)
		SendErrorResponse(w, err.Error(), http.StatusUnprocessableEntity, nil)
		return
	}

	now := time.Now()
	policy := models.LendingPolicy{
		ID:                         uuid.New(),
		CompanyID:                  companyID,
		Name:                       req.Name,
		EffectiveDate:              req.EffectiveDate,
		ExpiryDate:                 req.ExpiryDate,
		IsActive:                   true,
		MinServiceMonths:           req.MinServiceMonths,
		MaxAdvancePercentage:       req.MaxAdvancePercentage,
		MaxAdvanceAmount:           req.MaxAdvanceAmount,
		MaxAdvancesPerYear:         req.MaxAdvancesPerYear,
		InterestRate:               req.InterestRate,
		MonthlyDeductionPercentage: req.MonthlyDeductionPercentage,
		AutoApprove:                req.AutoApprove,
		RequiresChainApproval:      req.RequiresChainApproval,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}

	_, err := s.db.Exec(`
		INSERT INTO lending_policies (id, company_id, name, effective_date, expiry_date, is_active,
			min_service_months, max_advance_percentage, max_advance_amount, max_advances_per_year,
			interest_rate, monthly_deduction_percentage, auto_approve, requires_chain_approval,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		policy.ID, policy.CompanyID, policy.Name, policy.EffectiveDate, policy.ExpiryDate, policy.IsActive,
		policy.MinServiceMonths, policy.MaxAdvancePercentage, policy.MaxAdvanceAmount, policy.MaxAdvancesPerYear,
		policy.InterestRate, policy.MonthlyDeductionPercentage, policy.AutoApprove, policy.RequiresChainApproval,
		policy.CreatedAt, policy.UpdatedAt)
	if err != nil {
		log.Printf("[POLICY] Failed to create policy for company %s: %v", companyID, err)
		SendErrorResponse(w, "Failed to create policy", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[POLICY] Created policy %s (%q) for company %s", policy.ID, policy.Name, companyID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(policy)
}

// GetActivePolicy returns the policy currently in force
// @Summary Get active lending policy
// @Description Resolve the lending policy in force for the authenticated company
// @Tags policies
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.LendingPolicy
// @Failure 404 {object} ErrorResponse
// @Router /policies/active [get]
func (s *AdvancePolicyService) GetActivePolicy(w http.ResponseWriter, r *http.Request) {
	companyID, ok := CompanyIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	policy, err := s.ResolveActivePolicy(companyID, time.Now())
	if err != nil {
		log.Printf("[POLICY] Active policy lookup failed for company %s: %v", companyID, err)
		SendErrorResponse(w, "Failed to resolve policy", http.StatusInternalServerError, nil)
		return
	}
	if policy == nil {
		SendErrorResponse(w, "No active policy", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(policy)
}

// ListPolicies lists all policies for the company
// @Summary List lending policies
// @Tags policies
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.LendingPolicy
// @Router /policies [get]
func (s *AdvancePolicyService) ListPolicies(w http.ResponseWriter, r *http.Request) {
	companyID, ok := CompanyIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT `+policyColumns+`
		FROM lending_policies
		WHERE company_id = $1
		ORDER BY effective_date DESC`, companyID)
	if err != nil {
		log.Printf("[POLICY] Failed to list policies for company %s: %v", companyID, err)
		SendErrorResponse(w, "Failed to list policies", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	policies := []models.LendingPolicy{}
	for rows.Next() {
		var p models.LendingPolicy
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.EffectiveDate, &p.ExpiryDate, &p.IsActive,
			&p.MinServiceMonths, &p.MaxAdvancePercentage, &p.MaxAdvanceAmount, &p.MaxAdvancesPerYear,
			&p.InterestRate, &p.MonthlyDeductionPercentage, &p.AutoApprove, &p.RequiresChainApproval,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to list policies", http.StatusInternalServerError, nil)
			return
		}
		policies = append(policies, p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(policies)
}

// DeactivatePolicy retires a policy without deleting it
// @Summary Deactivate lending policy
// @Tags policies
// @Produce json
// @Security BearerAuth
// @Param policyId path string true "Policy ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /policies/{policyId}/deactivate [put]
func (s *AdvancePolicyService) DeactivatePolicy(w http.ResponseWriter, r *http.Request) {
	companyID, ok := CompanyIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	policyID, err := uuid.Parse(chi.URLParam(r, "policyId"))
	if err != nil {
		SendErrorResponse(w, "Invalid policy id", http.StatusBadRequest, nil)
		return
	}

	result, err := s.db.Exec(`
		UPDATE lending_policies
		SET is_active = false, updated_at = $1
		WHERE id = $2 AND company_id = $3`,
		time.Now(), policyID, companyID)
	if err != nil {
		log.Printf("[POLICY] Failed to deactivate policy %s: %v", policyID, err)
		SendErrorResponse(w, "Failed to deactivate policy", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Policy not found", http.StatusNotFound, nil)
		return
	}

	log.Printf("[POLICY] Deactivated policy %s for company %s", policyID, companyID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Policy deactivated"})
}
