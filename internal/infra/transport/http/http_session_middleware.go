package http

import (
	"context"
	"net/http"

	"github.com/mkrupp/storefront/internal/domain"
	context_ "github.com/mkrupp/storefront/internal/infra/context"
	"github.com/mkrupp/storefront/internal/infra/logging"
)

// SessionResolver resolves the active session identity.
type SessionResolver interface {
	Current(ctx context.Context) (domain.Session, *domain.User)
}

// SessionMiddleware creates middleware that resolves the active session and
// adds it to the request context. Requests are never rejected here: without an
// authenticated identity the guest session is used, and handlers that need more
// check it themselves.
func SessionMiddleware(next http.Handler, resolver SessionResolver, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, _ := resolver.Current(r.Context())

		if !session.IsGuest() {
			log.DebugContext(r.Context(), "session resolved", "user", session.UserID)
		}

		next.ServeHTTP(w, r.WithContext(context_.WithSession(r.Context(), session)))
	})
}
