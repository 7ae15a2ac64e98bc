package interceptors

import "context"

type contextKey struct{ name string }

var (
	identityIDKey = contextKey{"identity_id"}
	roleKey       = contextKey{"role"}
	tokenIDKey    = contextKey{"token_id"}
)

// WithIdentity returns a context carrying the authenticated identity id, role claim and access jti.
func WithIdentity(ctx context.Context, identityID, role, tokenID string) context.Context {
	ctx = context.WithValue(ctx, identityIDKey, identityID)
	ctx = context.WithValue(ctx, roleKey, role)
	ctx = context.WithValue(ctx, tokenIDKey, tokenID)
	return ctx
}

// GetIdentityID returns the identity id from context and true if set; otherwise "", false.
func GetIdentityID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(identityIDKey).(string)
	return v, ok
}

// GetRole returns the role claim from context and true if set; otherwise "", false.
func GetRole(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(roleKey).(string)
	return v, ok
}

// GetTokenID returns the access token jti from context and true if set; otherwise "", false.
func GetTokenID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tokenIDKey).(string)
	return v, ok
}
