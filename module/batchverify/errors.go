package batchverify

import (
	"context"
	"errors"
	"fmt"
)

// ErrCancelled is the terminal result of a request whose caller lost interest before
// the result was known, or which was still pending when the verifier shut down.
// It is not an error from the backend's perspective.
var ErrCancelled = errors.New("verification cancelled")

// VerifyError indicates that the cryptographic or logical check failed for one specific
// request. It is attributable to that request, permanent, and never retried.
// Backends return it (via NewVerifyError or NewVerifyErrorf) from VerifyOne.
type VerifyError struct {
	err error
}

func NewVerifyError(err error) error {
	return VerifyError{err}
}

func NewVerifyErrorf(msg string, args ...interface{}) error {
	return VerifyError{fmt.Errorf(msg, args...)}
}

func (e VerifyError) Error() string { return fmt.Sprintf("verification failed: %s", e.err.Error()) }
func (e VerifyError) Unwrap() error { return e.err }

// IsVerifyError returns whether err is a VerifyError
func IsVerifyError(err error) bool {
	var e VerifyError
	return errors.As(err, &e)
}

// BackendError indicates that the backend could not complete the operation (resource
// exhaustion, malformed batch call, internal fault). It says nothing about the validity
// of the request; callers decide whether to retry at a higher layer.
type BackendError struct {
	err error
}

func NewBackendError(err error) error {
	return BackendError{err}
}

func NewBackendErrorf(msg string, args ...interface{}) error {
	return BackendError{fmt.Errorf(msg, args...)}
}

func (e BackendError) Error() string { return fmt.Sprintf("verification backend error: %s", e.err.Error()) }
func (e BackendError) Unwrap() error { return e.err }

// IsBackendError returns whether err is a BackendError
func IsBackendError(err error) bool {
	var e BackendError
	return errors.As(err, &e)
}

// ConfigurationError indicates that a verifier was constructed with invalid or
// inconsistent parameters.
type ConfigurationError struct {
	err error
}

func NewConfigurationError(err error) error {
	return ConfigurationError{err}
}

func NewConfigurationErrorf(msg string, args ...interface{}) error {
	return ConfigurationError{fmt.Errorf(msg, args...)}
}

func (e ConfigurationError) Error() string { return e.err.Error() }
func (e ConfigurationError) Unwrap() error { return e.err }

// IsConfigurationError returns whether err is a ConfigurationError
func IsConfigurationError(err error) bool {
	var e ConfigurationError
	return errors.As(err, &e)
}

// classify maps the error returned by Backend.VerifyOne to the terminal result of a
// request. Anything the backend did not explicitly mark as a VerifyError is treated
// as a backend failure, so that a transient fault is never reported as an invalid request.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case IsVerifyError(err), IsBackendError(err):
		return err
	default:
		return NewBackendError(err)
	}
}

// cancelled returns the result for a request abandoned because ctx ended.
func cancelled(ctx context.Context) error {
	if cause := context.Cause(ctx); cause != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, cause)
	}
	return ErrCancelled
}

// resultLabel is the metrics label for the terminal result of a request.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "pass"
	case IsVerifyError(err):
		return "fail"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "backend_error"
	}
}
