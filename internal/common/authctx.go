package common

import "context"

type ctxKey string

const (
	sessionKey ctxKey = "auth/session"
	tokenKey   ctxKey = "auth/token"
)

// WithSession stores the session key and the raw bearer token of the caller.
func WithSession(ctx context.Context, session, token string) context.Context {
	ctx = context.WithValue(ctx, sessionKey, session)
	return context.WithValue(ctx, tokenKey, token)
}

// Session extracts the session key from the context if present.
func Session(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey).(string)
	return id, ok && id != ""
}

// BearerToken returns the caller's raw token for forwarding upstream.
func BearerToken(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey).(string)
	return tok
}
