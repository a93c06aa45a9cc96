package services

import "errors"

// Failure taxonomy for the advance lifecycle. Handlers map these onto HTTP
// statuses: not-found -> 404, already-processed / invalid-state /
// self-approval -> 409, invalid-deduction -> 422. Ineligibility is not an
// error; it is an EligibilityResult carrying the computed figures.
var (
	ErrNotFound         = errors.New("record not found")
	ErrNoActivePolicy   = errors.New("no active advance policy")
	ErrAlreadyProcessed = errors.New("request already processed")
	ErrInvalidState     = errors.New("request is not in a valid state for this operation")
	ErrSelfApproval     = errors.New("approvers cannot decide their own request")
	ErrInvalidDeduction = errors.New("monthly deduction percentage must be greater than zero")
)
