package options

import (
	"errors"
	"fmt"
)

var (
	// ErrVetoed marks writes refused by a WriteGate.
	ErrVetoed = errors.New("options: write vetoed")
	// ErrValidation marks values rejected by the schema.
	ErrValidation = errors.New("options: validation failed")
	// ErrETagMismatch marks commits against a snapshot that changed in
	// storage since it was loaded.
	ErrETagMismatch = errors.New("options: etag mismatch")
	// ErrUnknownKey marks writes to keys the schema does not declare when
	// the group is strict.
	ErrUnknownKey = errors.New("options: unknown key")
)

// VetoError names the gate that refused a write.
type VetoError struct {
	Gate   string
	Reason string
	Write  WriteContext
}

func (e *VetoError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("options: %s on %s vetoed by %s", e.Write.Op, e.Write.Option, e.Gate)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap allows errors.Is(err, ErrVetoed).
func (e *VetoError) Unwrap() error {
	return ErrVetoed
}

// ValidationError describes one rejected key.
type ValidationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("options: invalid %q: %s", e.Key, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes ErrValidation and the underlying cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}
