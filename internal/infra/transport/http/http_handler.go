package http

import (
	"net/http"

	"github.com/mkrupp/storefront/internal/infra/logging"
)

// HandlerFunc handles a request and returns the response instead of writing it.
// A nil body with a 2xx status writes only the status line.
type HandlerFunc func(r *http.Request) (status int, body any, err error)

// Handle adapts fn into an http.HandlerFunc that writes JSON responses,
// maps errors with WriteError and logs the outcome of action.
func Handle(log logging.Logger, action string, fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		log := log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

		defer func() {
			if err != nil {
				log.ErrorContext(ctx, action+" failed", "error", err)
			} else {
				log.DebugContext(ctx, action)
			}
		}()

		status, body, err := fn(r)
		if err != nil {
			_ = WriteError(w, err)

			return
		}

		if body == nil {
			w.WriteHeader(status)

			return
		}

		err = WriteJSON(w, status, body)
	}
}
