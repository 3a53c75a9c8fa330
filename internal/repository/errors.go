// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the signing orchestrator to distinguish between different
// failure scenarios. For example, ErrForbidden indicates that the current
// user is not authorized to perform an operation on a resource owned by
// someone else, while ErrInvoiceUnavailable signals that an invoice is
// not in a linkable state.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state, such as starting a signing run on a transaction
// another run already holds. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrInvoiceUnavailable is returned when an invoice cannot be linked
// into a transaction because its status is not PENDING (it is already
// bound into another transaction or already signed).
var ErrInvoiceUnavailable = errors.New("invoice not available for linking")

// ErrAlreadySigned is returned when a signing run is requested for a
// transaction whose status is already SIGNED.
var ErrAlreadySigned = errors.New("transaction already signed")
