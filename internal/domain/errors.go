package domain

import (
	"errors"
	"fmt"
)

// ErrConfirmationRequired is returned by detection runs that would overwrite
// existing regions without the caller's explicit confirmation.
var ErrConfirmationRequired = errors.New("existing regions would be overwritten: confirmation required")

// ValidationError reports a failed precondition. Nothing was mutated.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func Validation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// DecodeError reports detector output that does not have the expected shape.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %v", e.Reason, e.Err)
	}
	return "decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NetworkError wraps transport failures and unexpected statuses from the detection service.
type NetworkError struct {
	Op      string
	Status  int
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: timed out: %v", e.Op, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ExportError reports a serialization or delivery failure. No output was produced.
type ExportError struct {
	Format string
	Err    error
}

func (e *ExportError) Error() string { return fmt.Sprintf("export %s: %v", e.Format, e.Err) }

func (e *ExportError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsDecode(err error) bool {
	var d *DecodeError
	return errors.As(err, &d)
}

func IsNetwork(err error) bool {
	var n *NetworkError
	return errors.As(err, &n)
}

func IsExport(err error) bool {
	var e *ExportError
	return errors.As(err, &e)
}
