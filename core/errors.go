package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a missing or unreadable input file. Fatal.
	ErrNotFound = errors.New("input file not found")

	// ErrNoSpeech reports an empty transcription result. The pipeline
	// recovers from it by substituting the sentinel transcript.
	ErrNoSpeech = errors.New("no speech detected")

	// ErrInvalidInput reports malformed caller input, such as mismatched
	// embedding/timestamp pair lengths. Rejected before any write.
	ErrInvalidInput = errors.New("invalid input")
)

// ClassificationError aborts a whole analysis run; there are no partial
// batch results by design.
type ClassificationError struct {
	FramePath string
	Err       error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed for frame %s: %v", e.FramePath, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }
