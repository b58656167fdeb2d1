package player

import (
	"errors"
	"fmt"
)

// Common errors for the playback engine.
var (
	// ErrContentTooLarge indicates a paragraph exceeds the synthesis size
	// ceiling. Not retryable; the listener must skip past it explicitly.
	ErrContentTooLarge = errors.New("paragraph exceeds synthesis size limit")

	// ErrRenderFailed indicates a network, auth, quota or malformed-response
	// failure during synthesis. Retryable only through an explicit user
	// action (replay or seek), never automatically.
	ErrRenderFailed = errors.New("audio render failed")

	// ErrBackendUnavailable indicates the selected synthesis backend cannot
	// be used (missing credential, missing binary).
	ErrBackendUnavailable = errors.New("synthesis backend unavailable")

	// ErrSuperseded indicates work settled after the document or position it
	// targeted was replaced. Always discarded silently, never surfaced.
	ErrSuperseded = errors.New("result superseded")

	// ErrNotSupported indicates an operation the active backend cannot
	// perform (rendering on the local engine, utterances on the remote one).
	ErrNotSupported = errors.New("operation not supported by backend")

	// ErrNoDocument indicates a control call arrived before any book was
	// loaded.
	ErrNoDocument = errors.New("no document loaded")

	// ErrEmptyDocument indicates a load with zero paragraphs.
	ErrEmptyDocument = errors.New("document has no paragraphs")

	// ErrSessionClosed indicates the session has been shut down.
	ErrSessionClosed = errors.New("session closed")
)

// PlaybackError wraps an error with the component and action it came from,
// for the user-visible error surface and structured logs.
type PlaybackError struct {
	Err       error
	Component string
	Action    string
	Paragraph int
}

// Error implements the error interface.
func (e *PlaybackError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failed", e.Component, e.Action)
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Action, e.Err)
}

// Unwrap returns the underlying error.
func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// NewPlaybackError creates a wrapped error with component context.
func NewPlaybackError(err error, component, action string, paragraph int) *PlaybackError {
	return &PlaybackError{
		Err:       err,
		Component: component,
		Action:    action,
		Paragraph: paragraph,
	}
}

// IsDiscardable reports whether an error is a superseded result that should
// be dropped without surfacing.
func IsDiscardable(err error) bool {
	return errors.Is(err, ErrSuperseded)
}
