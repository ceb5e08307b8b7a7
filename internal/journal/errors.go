package journal

import "errors"

var (
	// ErrLocked is returned by Open when another process holds the
	// journal directory's exclusive lock.
	ErrLocked = errors.New("journal: directory locked by another process")

	// ErrClosed is returned by operations on a closed journal.
	ErrClosed = errors.New("journal: closed")

	// ErrInconsistent is returned by Audit when the live key count
	// disagrees with the cursor-derived length.
	ErrInconsistent = errors.New("journal: cursors disagree with live key set")
)
