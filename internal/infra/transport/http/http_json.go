package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mkrupp/storefront/internal/domain"
)

const maxBodyBytes = 1 << 20

// ErrBadRequest is returned when a request body cannot be decoded.
var ErrBadRequest = errors.New("malformed request")

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}

// ReadJSON decodes the request body into v, rejecting unknown fields.
func ReadJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, fmt.Errorf("decode request: %w", err))
	}

	return nil
}

// StatusFor maps an error returned by a service to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAdminRequired):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidation), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error response and returns err unchanged,
// so handlers can `return WriteError(w, err)` into their deferred logging.
// Messages of unexpected errors are not exposed.
func WriteError(w http.ResponseWriter, err error) error {
	status := StatusFor(err)

	message := http.StatusText(status)
	if status != http.StatusInternalServerError {
		message = publicMessage(err)
	}

	_ = WriteJSON(w, status, ErrorResponse{Error: message})

	return err
}

func publicMessage(err error) string {
	var validationErr domain.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error()
	}

	var notFoundErr domain.NotFoundError
	if errors.As(err, &notFoundErr) {
		return notFoundErr.Error()
	}

	if errors.Is(err, ErrBadRequest) {
		return ErrBadRequest.Error()
	}

	return err.Error()
}
