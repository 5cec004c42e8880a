package edit

import "errors"

// Failure categories for the edit pipeline. Callers classify with errors.Is;
// the concrete cause is carried in the wrapped message.
var (
	// Input resolution failures. These occur before any backend call.
	ErrNotFound = errors.New("edit: input image not found")
	ErrFetch    = errors.New("edit: remote image fetch failed")
	ErrDecode   = errors.New("edit: inline image decode failed")

	// ErrInvalidParameter rejects a request before submission.
	ErrInvalidParameter = errors.New("edit: invalid parameter")

	// ErrSubmission means job creation failed. Submission is never retried
	// automatically so a duplicate job is never billed.
	ErrSubmission = errors.New("edit: job submission failed")

	// ErrPoll surfaces after the bounded transient-retry budget is spent.
	ErrPoll = errors.New("edit: job status poll failed")

	// ErrTimedOut means the deadline passed without a terminal state. The
	// backend job may still be running; the outcome is unknown, not failed.
	ErrTimedOut = errors.New("edit: job timed out")

	// Backend contract failures on an otherwise reachable job.
	ErrBackend         = errors.New("edit: backend job failed")
	ErrMissingArtifact = errors.New("edit: completed job carries no artifact")
)
