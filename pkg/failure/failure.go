// Package failure provides the error taxonomy shared by every pipeline stage.
package failure

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure. The value is what gets recorded on a failed job.
type Kind string

const (
	KindValidation          Kind = "ValidationError"
	KindExport              Kind = "ExportError"
	KindRender              Kind = "RenderError"
	KindRendererUnavailable Kind = "RendererUnavailable"
	KindExternalService     Kind = "ExternalServiceError"
	KindNotFound            Kind = "NotFoundError"
	KindConflict            Kind = "ConflictError"
	KindInternal            Kind = "InternalError"
)

// Sentinels, one per kind, so callers can use errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrExport              = errors.New("export error")
	ErrRender              = errors.New("render error")
	ErrRendererUnavailable = errors.New("renderer unavailable")
	ErrExternalService     = errors.New("external service error")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInternal            = errors.New("internal error")
)

var sentinels = map[Kind]error{
	KindValidation:          ErrValidation,
	KindExport:              ErrExport,
	KindRender:              ErrRender,
	KindRendererUnavailable: ErrRendererUnavailable,
	KindExternalService:     ErrExternalService,
	KindNotFound:            ErrNotFound,
	KindConflict:            ErrConflict,
	KindInternal:            ErrInternal,
}

// Error wraps a failure with the operation that produced it.
type Error struct {
	Op      string // Operation being performed (e.g. "graph.Build", "render.graphviz")
	Kind    Kind
	Message string // Human-readable detail
	Err     error  // Underlying error, optional
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind as well as anything in the wrapped chain.
func (e *Error) Is(target error) bool {
	if sentinel, ok := sentinels[e.Kind]; ok && target == sentinel {
		return true
	}

	return false
}

// New creates a failure without an underlying cause.
func New(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err.
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Validation is shorthand for New(op, KindValidation, ...).
func Validation(op, format string, args ...any) *Error {
	return New(op, KindValidation, format, args...)
}

// NotFound is shorthand for New(op, KindNotFound, ...).
func NotFound(op, format string, args ...any) *Error {
	return New(op, KindNotFound, format, args...)
}

// KindOf returns the kind of err. Deadlines and cancellations coming back from
// collaborators count as external service failures; anything unclassified is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}

	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindExternalService
	}

	return KindInternal
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsNotFound checks if an error indicates a missing job or artifact.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsConflict checks if an error indicates an operation not allowed in the current state.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}
