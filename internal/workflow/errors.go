package workflow

import "errors"

var (
	// ErrNotFound is returned when no workflow matches the given id.
	ErrNotFound = errors.New("workflow not found")

	// ErrForbidden is returned when the guard rejects the acting user.
	ErrForbidden = errors.New("user is not authorized to act on this stage")

	// ErrMissingNote is returned when reject/request-changes is called
	// without a note.
	ErrMissingNote = errors.New("a note is required for this action")

	// ErrInvalidState is returned when a decision is attempted against a
	// workflow that is not in progress.
	ErrInvalidState = errors.New("workflow is not in progress")

	// ErrNoReviewers is returned when a reviewer update would leave the
	// workflow without any review stages.
	ErrNoReviewers = errors.New("reviewer list cannot be empty")

	// ErrVersionConflict signals a lost optimistic-lock race; the
	// orchestrator retries the whole read-modify-write.
	ErrVersionConflict = errors.New("workflow was modified concurrently")
)
