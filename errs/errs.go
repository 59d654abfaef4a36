// Package errs defines the error kinds from spec §7 and attaches stack
// traces at the point they're raised, using go-xerrors so a caller three
// layers up (an HTTP handler, a CLI command) can still log where a DB
// or decode failure actually originated.
package errs

import (
	"errors"
	"fmt"

	"github.com/mdobak/go-xerrors"
)

// Kind identifies one of the error categories from spec §7.
type Kind string

const (
	KindAudioLoad     Kind = "AudioLoadError"
	KindDecodeTimeout Kind = "DecodeTimeout"
	KindDuplicatePath Kind = "DuplicatePath"
	KindIndexError    Kind = "IndexError"
	KindExternalAPI   Kind = "ExternalAPIError"
)

// Error wraps an underlying cause with a Kind so callers can branch on
// errors.As without string-matching messages.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New wraps err with a stack trace (via go-xerrors) and the given Kind.
// Passing a nil err returns nil, so call sites can do:
//
//	if err != nil { return errs.New(errs.KindIndexError, err) }
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: xerrors.New(err)}
}

// Newf is the formatted-message counterpart of New.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, cause: xerrors.New(fmt.Errorf(format, args...))}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// AudioLoadError, DuplicatePath, IndexError, etc. are convenience
// constructors mirroring the table in spec §7.
func AudioLoadError(err error) error   { return New(KindAudioLoad, err) }
func DecodeTimeout(err error) error    { return New(KindDecodeTimeout, err) }
func DuplicatePath(path string) error  { return Newf(KindDuplicatePath, "path already indexed: %s", path) }
func IndexError(err error) error       { return New(KindIndexError, err) }
func ExternalAPIError(err error) error { return New(KindExternalAPI, err) }
