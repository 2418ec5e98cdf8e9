// Package errors provides the kernel's ambient error type. It is used at
// boundaries (image loading, object-store I/O, config parsing) where a Go
// error is the right shape; the invocation hot path never uses this type,
// it returns typed result codes instead (see package invoke).
package errors

import pkgerrors "github.com/pkg/errors"

// Error describes an error raised by kernel plumbing outside the
// invocation path. All such errors are package-level *Error values rather
// than ad-hoc fmt.Errorf strings, mirroring the teacher's convention of a
// fixed {Module, Message} pair per failure site.
type Error struct {
	// Module names the subsystem where the error occurred.
	Module string

	// Message is the human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Module + ": " + e.Message
}

// Wrap annotates err with additional context while preserving it as the
// cause, for boundary code (store/image) that needs to chain failures
// across layers.
func Wrap(err error, message string) error {
	return pkgerrors.Wrap(err, message)
}

// Wrapf is the formatted form of Wrap.
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

// Cause returns the underlying cause of an error wrapped with Wrap/Wrapf,
// or err itself if it was not wrapped.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}

var (
	// ErrInvalidParamValue signals a malformed configuration value.
	ErrInvalidParamValue = &Error{Module: "kconfig", Message: "invalid parameter value"}
)
