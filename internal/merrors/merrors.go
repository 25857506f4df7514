// Package merrors provides the error-wrapping convention used throughout
// MeshPay: every internal error carries the operation that produced it.
package merrors

import "fmt"

// Wrap adds context to err. It returns nil if err is nil so call sites can
// write `return merrors.Wrap(err, "...")` unconditionally.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
