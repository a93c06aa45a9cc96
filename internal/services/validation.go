package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error       string             `json:"error"`                 // Error message
	Details     map[string]string  `json:"details,omitempty"`     // Validation details
	Eligibility *EligibilityResult `json:"eligibility,omitempty"` // Populated on ineligible advance requests
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = make(map[string]string)
		var vErrs validator.ValidationErrors
		if errors.As(validationErr, &vErrs) {
			for _, err := range vErrs {
				errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
			}
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendServiceError maps a service-layer failure onto its HTTP status.
// Absent records are 404, state conflicts (already processed, wrong state,
// self-approval) are 409, ineligibility is 422 with the full evaluator
// result attached so the client never re-derives the arithmetic.
func SendServiceError(w http.ResponseWriter, err error) {
	var inel *IneligibleError
	switch {
	case errors.As(err, &inel):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(ErrorResponse{Error: inel.Result.Reason, Eligibility: &inel.Result})
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoActivePolicy):
		SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, ErrAlreadyProcessed),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrSelfApproval):
		SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	case errors.Is(err, ErrInvalidDeduction):
		SendErrorResponse(w, err.Error(), http.StatusUnprocessableEntity, nil)
	default:
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}
