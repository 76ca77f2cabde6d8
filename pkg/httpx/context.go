package httpx

import "context"

type ctxKey string

const ctxKeySession ctxKey = "session"

// Session is the external identity attached to a request by
// SessionMiddleware.
type Session struct {
	Subject string
	Email   string
	Name    string
}

// WithSession returns ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

// SessionFromContext returns the session attached by SessionMiddleware.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKeySession).(Session)
	return s, ok
}
