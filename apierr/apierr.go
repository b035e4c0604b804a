// Package apierr defines the typed error taxonomy shared by the hub and
// the read gateway. Handlers translate these at the HTTP boundary;
// everywhere else errors are passed around as these concrete types.
package apierr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind distinguishes the internal reason a ValidationError was raised.
// Clients only ever see Msg; Kind is for logs.
type Kind string

const (
	BadTokenFormat     Kind = "BadTokenFormat"
	SignatureInvalid   Kind = "SignatureInvalid"
	AssociationInvalid Kind = "AssociationInvalid"
	Expired            Kind = "Expired"
	WrongHub           Kind = "WrongHub"
	PrincipalMismatch  Kind = "PrincipalMismatch"
	Revoked            Kind = "Revoked"
	NotWhitelisted     Kind = "NotWhitelisted"
	ScopeDenied        Kind = "ScopeDenied"
)

// ValidationError covers auth, scope, and malformed-request failures.
// It is surfaced to callers as 401, except ScopeDenied which is 401 too
// per spec (the distinction only matters for logging).
type ValidationError struct {
	Kind Kind
	Msg  string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

func (e *ValidationError) StatusCode() int { return http.StatusUnauthorized }

func NewValidationError(kind Kind, msg string) *ValidationError {
	return &ValidationError{Kind: kind, Msg: msg}
}

// NotEnoughProofError signals the social-proof collaborator rejected the
// write.
type NotEnoughProofError struct{ Msg string }

func (e *NotEnoughProofError) Error() string     { return e.Msg }
func (e *NotEnoughProofError) StatusCode() int    { return http.StatusPaymentRequired }

// PayloadTooLargeError is raised when declared or observed size exceeds
// the configured ceiling.
type PayloadTooLargeError struct{ Msg string }

func (e *PayloadTooLargeError) Error() string  { return e.Msg }
func (e *PayloadTooLargeError) StatusCode() int { return http.StatusRequestEntityTooLarge }

// DoesNotExistError comes back from a driver when the addressed object
// is absent.
type DoesNotExistError struct{ Path string }

func (e *DoesNotExistError) Error() string  { return fmt.Sprintf("does not exist: %s", e.Path) }
func (e *DoesNotExistError) StatusCode() int { return http.StatusNotFound }

// DriverError wraps any other backend failure. The client-facing
// message is intentionally generic; the cause is logged, not echoed.
type DriverError struct {
	Op    string
	Cause error
}

func (e *DriverError) Error() string  { return fmt.Sprintf("driver error during %s: %v", e.Op, e.Cause) }
func (e *DriverError) Unwrap() error  { return e.Cause }
func (e *DriverError) StatusCode() int { return http.StatusInternalServerError }

func (e *DriverError) ClientMessage() string { return "internal storage error" }

// NewDriverError wraps cause with github.com/pkg/errors.Wrap so the
// underlying backend failure keeps a stack trace for logs, while op
// stays the short, client-safe operation tag. Every driver
// implementation constructs its *DriverError values through this
// constructor rather than assigning Cause directly.
func NewDriverError(op string, cause error) *DriverError {
	return &DriverError{Op: op, Cause: errors.Wrap(cause, op)}
}

// ConflictingNameError is raised on writes against reserved object names
// (e.g. the revocation-clock key) outside the path that is allowed to
// touch them.
type ConflictingNameError struct{ Path string }

func (e *ConflictingNameError) Error() string  { return fmt.Sprintf("reserved name: %s", e.Path) }
func (e *ConflictingNameError) StatusCode() int { return http.StatusForbidden }

// StatusCoder is implemented by every error in this package so the HTTP
// boundary can translate without a type switch over concrete types.
type StatusCoder interface {
	error
	StatusCode() int
}

// IsDoesNotExist reports whether err (or anything it wraps) is a
// DoesNotExistError.
func IsDoesNotExist(err error) bool {
	var dne *DoesNotExistError
	return errors.As(err, &dne)
}
