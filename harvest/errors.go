package harvest

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines harvest error kinds.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindExport     ErrorKind = "export_failed"
	KindTimeout    ErrorKind = "timeout"
	KindCanceled   ErrorKind = "canceled"
	KindInternal   ErrorKind = "internal"
	KindNotImpl    ErrorKind = "not_implemented"
)

// Error wraps errors with a kind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new harvest error.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// ExportFailed wraps a pipeline failure as the single export failure condition.
func ExportFailed(stage string, err error) *Error {
	msg := "export failed"
	if stage != "" {
		msg = "export failed during " + stage
	}
	return NewError(KindExport, msg, err)
}

// AsGoError maps an error into a go-errors error.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	kind := KindFromError(err)
	msg := err.Error()

	var harvestErr *Error
	if errors.As(err, &harvestErr) && harvestErr.Msg != "" {
		msg = harvestErr.Msg
	}

	switch kind {
	case KindValidation:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("validation")
	case KindNotFound:
		return errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode("not_found")
	case KindExport:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("export_failed")
	case KindTimeout:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("timeout")
	case KindCanceled:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("canceled")
	case KindNotImpl:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("not_implemented")
	default:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("internal")
	}
}

// KindFromError maps an error to its harvest error kind. Context errors win
// over export failures so callers can tell a timeout from a broken render.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	var harvestErr *Error
	if errors.As(err, &harvestErr) {
		return harvestErr.Kind
	}

	return KindInternal
}

// IsKind reports whether err carries the given kind. A timed out export is
// both KindTimeout and KindExport.
func IsKind(err error, kind ErrorKind) bool {
	if err == nil {
		return false
	}
	if KindFromError(err) == kind {
		return true
	}
	var harvestErr *Error
	return errors.As(err, &harvestErr) && harvestErr.Kind == kind
}
