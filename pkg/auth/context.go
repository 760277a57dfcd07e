package auth

import (
	"context"
)

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	claimsKey    contextKey = "jwt_claims"
)

// GuestUser is the name used for runs when authentication is disabled.
const GuestUser = "guest"

// AddClaimsToContext stores claims and their session id in ctx.
func AddClaimsToContext(ctx context.Context, claims *SessionClaims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	if claims != nil {
		ctx = context.WithValue(ctx, sessionIDKey, claims.SessionID)
	}
	return ctx
}

// GetClaimsFromContext returns the claims added by the middleware.
func GetClaimsFromContext(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*SessionClaims)
	return claims, ok && claims != nil
}

// SessionIDFromContext returns the session id, or "" when there is none.
func SessionIDFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionIDKey).(string)
	return sessionID
}

// UsernameFromContext returns the authenticated user or GuestUser.
func UsernameFromContext(ctx context.Context) string {
	if claims, ok := GetClaimsFromContext(ctx); ok && claims.Username != "" {
		return claims.Username
	}
	return GuestUser
}
