package domain

import "errors"

// Sentinel errors for the realtime core. Handlers map these onto
// point-to-point error acknowledgements; only ErrAuth is fatal to a
// connection.
var (
	// ErrAuth means the handshake credential was missing, invalid or
	// expired. The transport is closed before any state exists.
	ErrAuth = errors.New("authentication failed")

	// ErrAuthorization means the caller is not allowed to perform the
	// operation (room join denied, edit/delete of a foreign message).
	ErrAuthorization = errors.New("not authorized")

	// ErrValidation means the payload was malformed or out of bounds.
	ErrValidation = errors.New("invalid payload")

	// ErrPersistence means a store write failed. A message submission
	// that hits this is never fanned out.
	ErrPersistence = errors.New("store write failed")

	// ErrNotFound means the referenced message or room does not exist.
	ErrNotFound = errors.New("not found")
)

// ErrorCode maps an error to the wire-level code carried in error acks.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return "auth_error"
	case errors.Is(err, ErrAuthorization):
		return "authorization_error"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}
