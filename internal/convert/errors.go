package convert

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies conversion failures; it decides the response status.
type Kind string

const (
	KindUnauthorized      Kind = "unauthorized"
	KindInvalidRequest    Kind = "invalid_request"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindSourceFetch       Kind = "source_fetch_failure"
	KindOverlayFetch      Kind = "overlay_fetch_failure"
	KindEngine            Kind = "processing_engine_failure"
	KindUpload            Kind = "storage_upload_failure"
	KindInternal          Kind = "internal"
)

// Error is the structured error returned by validation and the pipeline.
type Error struct {
	Kind Kind
	Op   string
	// Detail is safe to show to the caller.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Detail)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}

func invalid(op, detail string) *Error {
	return newError(KindInvalidRequest, op, detail, nil)
}

// KindOf reports the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// IsKind reports whether err belongs to kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidRequest, KindUnsupportedFormat:
		return http.StatusBadRequest
	case KindSourceFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DetailOf returns the caller-facing message for err.
func DetailOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) && ce.Detail != "" {
		return ce.Detail
	}
	return "Internal error"
}
