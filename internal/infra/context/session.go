package context

import (
	"context"

	"github.com/mkrupp/storefront/internal/domain"
)

const contextKeySession = contextKey("session")

// SessionFromContext returns the session resolved for the current request.
// A context without a session yields the guest session.
func SessionFromContext(ctx context.Context) domain.Session {
	session, ok := ctx.Value(contextKeySession).(domain.Session)
	if !ok {
		return domain.GuestSession
	}

	return session
}

// WithSession returns a copy of ctx carrying the acting session.
func WithSession(ctx context.Context, session domain.Session) context.Context {
	return context.WithValue(ctx, contextKeySession, session)
}
