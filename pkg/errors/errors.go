// Package errors wraps github.com/pkg/errors with stack traces and adds "AndReport"
// variants that forward the error to every registered Reporter.
package errors

import (
	stderrors "errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

func New(msg string) error {
	return pkgerrors.New(msg)
}

func NewWithReport(msg string) error {
	err := pkgerrors.New(msg)
	report(err)
	return err
}

func Errorf(format string, args ...interface{}) error {
	return pkgerrors.Errorf(format, args...)
}

func ErrorfAndReport(format string, args ...interface{}) error {
	err := pkgerrors.Errorf(format, args...)
	report(err)
	return err
}

// Wrap returns nil when err is nil.
func Wrap(err error, msg string) error {
	return pkgerrors.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

func WrapAndReport(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := pkgerrors.Wrap(err, msg)
	report(wrapped)
	return wrapped
}

func WrapfAndReport(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	wrapped := pkgerrors.Wrapf(err, format, args...)
	report(wrapped)
	return wrapped
}

func WithStack(err error) error {
	return pkgerrors.WithStack(err)
}

func WithStackAndReport(err error) error {
	if err == nil {
		return nil
	}
	wrapped := pkgerrors.WithStack(err)
	report(wrapped)
	return wrapped
}

// WithMessage annotates err without recording another stack.
func WithMessage(err error, msg string) error {
	return pkgerrors.WithMessage(err, msg)
}

func WithMessageAndReport(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := pkgerrors.WithMessage(err, msg)
	report(wrapped)
	return wrapped
}

// Mark attaches sentinel to err so that Is(result, sentinel) holds while the message
// keeps err's text.
func Mark(err, sentinel error) error {
	if err == nil {
		return nil
	}
	return &marked{cause: err, sentinel: sentinel}
}

type marked struct {
	cause    error
	sentinel error
}

func (m *marked) Error() string {
	return fmt.Sprintf("%v: %v", m.sentinel, m.cause)
}

func (m *marked) Unwrap() error { return m.cause }

func (m *marked) Is(target error) bool { return target == m.sentinel }

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

func Cause(err error) error {
	return pkgerrors.Cause(err)
}
