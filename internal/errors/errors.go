// Package errors defines the failure taxonomy shared by the pipeline, alignment, and API layers.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// KindMissingInput means a required document (transcript, scenes) is absent. Fatal, no retry.
	KindMissingInput Kind = "MISSING_INPUT"
	// KindModelUnavailable means a detection, OCR, or embedding backend could not initialize.
	KindModelUnavailable Kind = "MODEL_UNAVAILABLE"
	// KindProcessing means a pipeline stage failed; it is recorded as an error marker.
	KindProcessing Kind = "PROCESSING_ERROR"
)

// Error is a classified failure tied to an operation and optionally a video.
type Error struct {
	Kind    Kind
	Op      string
	VideoID string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// MissingInputf returns a KindMissingInput error with a formatted message.
func MissingInputf(op, videoID, format string, args ...any) *Error {
	return &Error{Kind: KindMissingInput, Op: op, VideoID: videoID, Message: fmt.Sprintf(format, args...)}
}

// ModelUnavailable wraps a backend initialization failure.
func ModelUnavailable(op string, cause error) *Error {
	return &Error{Kind: KindModelUnavailable, Op: op, Message: "model unavailable", Cause: cause}
}

// Processing wraps a stage failure for videoID.
func Processing(op, videoID string, cause error) *Error {
	return &Error{Kind: KindProcessing, Op: op, VideoID: videoID, Message: "processing failed", Cause: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindProcessing.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindProcessing
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Kind == kind
}

// Result converts err to the structured failure shape returned at API boundaries.
func Result(err error) map[string]any {
	return map[string]any{
		"success": false,
		"error":   err.Error(),
	}
}
