package middleware

import (
	"context"

	"github.com/google/uuid"
)

type principalKey struct{}

// principal is the caller Auth resolved from the bearer token.
type principal struct {
	id   string
	role string
}

func principalFrom(ctx context.Context) principal {
	if ctx == nil {
		return principal{}
	}
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

func withPrincipal(ctx context.Context, p principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// UserIDFromContext is empty for anonymous requests.
func UserIDFromContext(ctx context.Context) string { return principalFrom(ctx).id }

// UserUUIDFromContext returns uuid.Nil when the request is anonymous or the id is malformed.
func UserUUIDFromContext(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(principalFrom(ctx).id)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func RoleFromContext(ctx context.Context) string { return principalFrom(ctx).role }

// WithUserID sets the caller id, keeping any role already present.
func WithUserID(ctx context.Context, userID string) context.Context {
	p := principalFrom(ctx)
	p.id = userID
	return withPrincipal(ctx, p)
}

// WithRole sets the caller role, keeping any id already present.
func WithRole(ctx context.Context, role string) context.Context {
	p := principalFrom(ctx)
	p.role = role
	return withPrincipal(ctx, p)
}
