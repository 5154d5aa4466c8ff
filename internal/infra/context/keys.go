// Package context holds the typed request-scoped values shared by the
// transport, logging and service layers.
package context

type contextKey string
