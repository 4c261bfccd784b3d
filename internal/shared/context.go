package shared

import "context"

// Roles recognised by the portal.
const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// Identity is the authenticated caller as asserted by the upstream proxy.
// The application trusts it without independent verification.
type Identity struct {
	UserID int64
	Role   string
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
