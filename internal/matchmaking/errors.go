package matchmaking

import "errors"

// Errors returned by the matchmaking core. Callers should compare with errors.Is.
var (
	ErrAlreadyQueued   = errors.New("player is already waiting for a match")
	ErrAlreadyInMatch  = errors.New("player is already in a match")
	ErrNotFound        = errors.New("not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrDuplicatePlayer = errors.New("player already belongs to a match")
	ErrQueueEmpty      = errors.New("queue is empty")

	// ErrDeliveryFailed is never returned by Service methods; transports return it and
	// the notifier logs it.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)
