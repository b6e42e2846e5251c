// Package errors provides error handling for trawl.
//
// It re-exports github.com/cockroachdb/errors so every package gets stack
// traces, hints and details from a single import:
//
//	if err := store.AddAttributes(ctx, art, attrs); err != nil {
//	    return errors.Wrap(err, "add exif attributes")
//	}
//
// The sentinels below classify failures that cross package boundaries
// (findings store, content parsing, cancellation). Wrap them to add context
// and test for them with Is.
package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
	CombineErrors      = crdb.CombineErrors
)

var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack returns the reportable stack trace attached to err, if any.
var GetStack = crdb.GetReportableStackTrace

var (
	// ErrNotFound indicates the requested object does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates malformed input to an operation
	ErrInvalidRequest = New("invalid request")

	// ErrUnsupportedFormat marks content whose signature a parser does not handle
	ErrUnsupportedFormat = New("unsupported format")

	// ErrMalformedContent marks content a format parser rejected
	ErrMalformedContent = New("malformed content")

	// ErrStore marks failures of the findings store (create artifact, add attributes)
	ErrStore = New("findings store failure")

	// ErrCancelled marks work abandoned because the run was cancelled
	ErrCancelled = New("cancelled")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsStoreError checks if an error is or wraps ErrStore.
func IsStoreError(err error) bool {
	return err != nil && Is(err, ErrStore)
}

// WrapStore marks err as a findings store failure while keeping its chain.
func WrapStore(err error, context string) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(Wrap(err, context), ErrStore)
}

// WrapMalformed marks err as a parser rejection of the content.
func WrapMalformed(err error, context string) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(Wrap(err, context), ErrMalformedContent)
}

// FromPanic converts a recovered panic value into an error with a stack.
func FromPanic(r interface{}) error {
	if err, ok := r.(error); ok {
		return Wrap(err, "panic")
	}
	return Newf("panic: %s", fmt.Sprint(r))
}
