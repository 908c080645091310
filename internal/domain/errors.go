package domain

import "errors"

var (
	// ErrIndexUnavailable means the knowledge index was never built or loaded.
	ErrIndexUnavailable = errors.New("knowledge index unavailable")
	// ErrGeneration wraps transport or API failures of the resolution model call.
	ErrGeneration = errors.New("resolution generation failed")
	// ErrMalformedModelOutput is recovered locally by falling back to defaults.
	ErrMalformedModelOutput = errors.New("malformed model output")
	// ErrStoreUnavailable wraps connectivity or auth failures of the row store.
	ErrStoreUnavailable = errors.New("ticket store unavailable")
	// ErrFieldTooLong is returned when a ticket value exceeds the row store's
	// cell capacity. The ticket is not written.
	ErrFieldTooLong = errors.New("ticket field too long")
	// ErrTicketNotFound is returned when no row carries the requested id.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrTicketClosed is returned when closing a ticket twice.
	ErrTicketClosed = errors.New("ticket already closed")
)
