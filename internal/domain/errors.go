package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation failed")
)

// NotFoundError is returned when a referenced product, user or order is absent.
type NotFoundError struct {
	Entity string // Kind of the missing record ("product", "user", "order")
	ID     string // Identifier that did not resolve
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ValidationError is returned when a request is well-formed but not acceptable,
// e.g. a duplicate email, a wrong password or a non-admin performing an admin action.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}

	return e.Field + ": " + e.Reason
}

func (e ValidationError) Unwrap() error {
	return ErrValidation
}

//nolint:gochecknoglobals
var (
	// ErrUserAlreadyExists is returned when registering an email that is already taken.
	ErrUserAlreadyExists = ValidationError{Field: "email", Reason: "an account with this email already exists"}
	// ErrInvalidCredentials is returned when the password does not match.
	ErrInvalidCredentials = ValidationError{Field: "password", Reason: "incorrect password"}
	// ErrAdminRequired is returned when a non-admin session attempts an admin action.
	ErrAdminRequired = ValidationError{Reason: "admin access required"}
	// ErrOutOfStock is returned when adding a product that has no stock left.
	ErrOutOfStock = ValidationError{Field: "qty", Reason: "product is out of stock"}
	// ErrEmptyCart is returned when checking out a cart without lines.
	ErrEmptyCart = ValidationError{Field: "items", Reason: "cart is empty"}
)
