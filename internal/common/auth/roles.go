package auth

import (
	"context"

	errs "crm-functions/internal/common/errors"
)

const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
	RoleAdmin    = "admin"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// HasRole reports whether role is among allowed. An empty allowed list admits everyone.
func HasRole(role string, allowed ...string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// RequireRole fails with PERMISSION_DENIED unless the caller has one of allowed.
func RequireRole(caller *Caller, allowed ...string) error {
	if caller == nil {
		return errs.NewUnauthenticatedError("no caller")
	}
	if !HasRole(caller.Role, allowed...) {
		return errs.NewPermissionDeniedError("role " + caller.Role + " is not permitted")
	}
	return nil
}

// RoleResolver looks up the stored role of a uid.
type RoleResolver interface {
	ResolveRole(ctx context.Context, uid string) (string, error)
}

type callerKey struct{}

func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func CallerFrom(ctx context.Context) (*Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(*Caller)
	return c, ok && c != nil
}
