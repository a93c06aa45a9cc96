package models

// ApprovalStatus is the lifecycle marker shared by salary advances and leave
// requests. The simple flow uses PENDING -> APPROVED|REJECTED -> DISBURSED ->
// REPAID; the front-line workflow decomposes the decision into an
// ops-review/HR chain. Both flows are rows of the same transition table.
type ApprovalStatus string

const (
	StatusPending          ApprovalStatus = "PENDING"
	StatusPendingOpsReview ApprovalStatus = "PENDING_OPS_REVIEW"
	StatusForwardedToHR    ApprovalStatus = "FORWARDED_TO_HR"
	StatusHRApproved       ApprovalStatus = "HR_APPROVED"
	StatusHRRejected       ApprovalStatus = "HR_REJECTED"
	StatusOpsFinalApproved ApprovalStatus = "OPS_FINAL_APPROVED"
	StatusOpsFinalRejected ApprovalStatus = "OPS_FINAL_REJECTED"
	StatusApproved         ApprovalStatus = "APPROVED"
	StatusRejected         ApprovalStatus = "REJECTED"
	StatusDisbursed        ApprovalStatus = "DISBURSED"
	StatusRepaid           ApprovalStatus = "REPAID"
)

// ApprovalAction is a caller-driven transition on an ApprovalStatus.
type ApprovalAction string

const (
	ActionApprove  ApprovalAction = "APPROVE"
	ActionReject   ApprovalAction = "REJECT"
	ActionForward  ApprovalAction = "FORWARD"
	ActionDisburse ApprovalAction = "DISBURSE"
	ActionSettle   ApprovalAction = "SETTLE"
)

// Transition describes one legal move in the state machine and the roles
// allowed to drive it.
type Transition struct {
	Next  ApprovalStatus
	Roles []string
}

// transitions is the explicit current-state x action table. A missing entry
// means the move is refused. Status never moves backwards.
var transitions = map[ApprovalStatus]map[ApprovalAction]Transition{
	StatusPending: {
		ActionApprove: {Next: StatusApproved, Roles: []string{RoleOperations, RoleHR, RoleAdmin}},
		ActionReject:  {Next: StatusRejected, Roles: []string{RoleOperations, RoleHR, RoleAdmin}},
		// Self-approval escalation path: the request is routed to HR
		// instead of being decided by its own subject.
		ActionForward: {Next: StatusForwardedToHR, Roles: []string{RoleOperations, RoleHR, RoleAdmin}},
	},
	StatusPendingOpsReview: {
		ActionForward: {Next: StatusForwardedToHR, Roles: []string{RoleOperations, RoleAdmin}},
		ActionReject:  {Next: StatusOpsFinalRejected, Roles: []string{RoleOperations, RoleAdmin}},
	},
	StatusForwardedToHR: {
		ActionApprove: {Next: StatusHRApproved, Roles: []string{RoleHR, RoleAdmin}},
		ActionReject:  {Next: StatusHRRejected, Roles: []string{RoleHR, RoleAdmin}},
	},
	StatusHRApproved: {
		ActionApprove: {Next: StatusOpsFinalApproved, Roles: []string{RoleOperations, RoleAdmin}},
		ActionReject:  {Next: StatusOpsFinalRejected, Roles: []string{RoleOperations, RoleAdmin}},
	},
	StatusApproved: {
		ActionDisburse: {Next: StatusDisbursed, Roles: []string{RoleOperations, RoleAdmin}},
	},
	StatusOpsFinalApproved: {
		ActionDisburse: {Next: StatusDisbursed, Roles: []string{RoleOperations, RoleAdmin}},
	},
	StatusDisbursed: {
		ActionSettle: {Next: StatusRepaid, Roles: []string{RoleOperations, RoleHR, RoleAdmin}},
	},
}

// NextStatus resolves the transition for (current, action). ok is false when
// the table has no such move.
func NextStatus(current ApprovalStatus, action ApprovalAction) (Transition, bool) {
	row, ok := transitions[current]
	if !ok {
		return Transition{}, false
	}
	tr, ok := row[action]
	return tr, ok
}

// RoleAllowed reports whether role may drive the given transition.
func (t Transition) RoleAllowed(role string) bool {
	for _, r := range t.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsPendingDecision reports whether the status still awaits an approval
// decision of some kind.
func (s ApprovalStatus) IsPendingDecision() bool {
	switch s {
	case StatusPending, StatusPendingOpsReview, StatusForwardedToHR, StatusHRApproved:
		return true
	}
	return false
}

// IsApproved reports whether the status represents a granted request that has
// not yet reached a later stage.
func (s ApprovalStatus) IsApproved() bool {
	return s == StatusApproved || s == StatusOpsFinalApproved
}

// IsRejected reports whether the status is a rejection terminal.
func (s ApprovalStatus) IsRejected() bool {
	return s == StatusRejected || s == StatusHRRejected || s == StatusOpsFinalRejected
}

// IsTerminal reports whether no further transition exists from s.
func (s ApprovalStatus) IsTerminal() bool {
	row, ok := transitions[s]
	return !ok || len(row) == 0
}
