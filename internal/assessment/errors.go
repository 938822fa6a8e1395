package assessment

import "errors"

// Error taxonomy for the engine. Handlers map these to HTTP status codes;
// everything else is an internal fault.
var (
	// ErrInvalidConfiguration rejects a session before any state is created.
	ErrInvalidConfiguration = errors.New("invalid session configuration")

	// ErrSessionNotFound means the session id is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStaleSubmission means an answer arrived for an item that is not
	// pending and was never recorded. Duplicates of an already-applied
	// submission are not stale; they return the recorded outcome.
	ErrStaleSubmission = errors.New("submission does not match the pending item")

	// ErrNoCandidates is the selector's not-found result. The session
	// manager treats it as normal early termination, not a fault.
	ErrNoCandidates = errors.New("no candidate items available")

	// ErrVersionConflict is the store's optimistic-lock failure. The
	// session manager retries with fresh state; it surfaces only when
	// retries are exhausted.
	ErrVersionConflict = errors.New("session was modified concurrently")

	// ErrReportNotReady means GetReport was called before completion.
	ErrReportNotReady = errors.New("session is not complete")
)
