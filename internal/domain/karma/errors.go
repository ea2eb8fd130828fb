package karma

import "errors"

var (
	// ErrStoreUnavailable is returned when the database cannot be reached
	// or rejects a request. No retry is attempted at this layer.
	ErrStoreUnavailable = errors.New("karma store unavailable")

	// ErrMalformedRecord is returned when a stored row fails to map onto
	// the transaction shape (e.g. missing required field)
	ErrMalformedRecord = errors.New("malformed karma record")

	// ErrInvalidAction is returned when the action type is outside the known set
	ErrInvalidAction = errors.New("invalid action type")

	// ErrDailyLimitReached is returned when an action's per-day award cap is hit
	ErrDailyLimitReached = errors.New("daily limit reached for action")
)
