package middleware

import "context"

type ctxKey string

const (
	ctxAccountID ctxKey = "account_id"
	ctxRole      ctxKey = "role"
)

// WithUser stores the authenticated account id and role for the handlers
// behind Auth.
func WithUser(ctx context.Context, accountID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxAccountID, accountID)
	return context.WithValue(ctx, ctxRole, role)
}

// UserIDFromContext returns the bearer's account id; false outside Auth.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxAccountID).(string)
	return v, ok && v != ""
}

// RoleFromContext returns the role RequireAtLeast compares against.
func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxRole).(string)
	return v, ok && v != ""
}
