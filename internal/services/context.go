package services

import (
	"context"

	"github.com/google/uuid"
)

// Actor is the already-authenticated caller, placed in the request context by
// the auth middleware. EmployeeID is set only for accounts linked to an
// employee record; the self-approval check compares it against the request's
// employee.
type Actor struct {
	UserID     uuid.UUID
	CompanyID  uuid.UUID
	Role       string
	EmployeeID *uuid.UUID
}

// ActorFromContext reads the actor injected by the auth middleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value("actor").(Actor)
	return actor, ok
}

// CompanyIDFromContext returns the tenant of the authenticated caller. Every
// query in this package is scoped by it.
func CompanyIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return actor.CompanyID, true
}
