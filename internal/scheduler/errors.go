package scheduler

import "errors"

var (
	// ErrUnavailable means the gateway could not be reached or answered
	// with a transport-level failure (network error, timeout, 5xx,
	// malformed body). The caller may invite the user to retry.
	ErrUnavailable = errors.New("scheduler: gateway unavailable")

	// ErrRejected means the gateway answered ok:false on a book call,
	// e.g. the slot was taken in the meantime. The wrapped message
	// carries the gateway-provided reason when present.
	ErrRejected = errors.New("scheduler: booking rejected")
)
