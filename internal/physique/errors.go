package physique

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced to the browser. Each maps to one stable message.
var (
	ErrRead       = errors.New("could not read image")
	ErrAnalysis   = errors.New("analysis failed")
	ErrGeneration = errors.New("visualization failed")
)

const (
	readMessage       = "Could not read the selected image."
	analysisMessage   = "Failed to analyze image. Please try again."
	generationMessage = "Failed to generate progress visualization."
	fallbackMessage   = "Something went wrong. Please try again."
)

// Error ties an internal cause to one of the failure kinds.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap classifies err as kind. A nil err still produces a failure, for
// outcomes such as an empty response that have no underlying cause.
func Wrap(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// UserMessage returns the text safe to show to the end user for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRead):
		return readMessage
	case errors.Is(err, ErrAnalysis):
		return analysisMessage
	case errors.Is(err, ErrGeneration):
		return generationMessage
	default:
		return fallbackMessage
	}
}
