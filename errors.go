package enqueue

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks invalid definitions rejected at the Add boundary.
	ErrConfig = errors.New("enqueue: invalid configuration")
	// ErrLogic marks API misuse such as draining a deferred record.
	ErrLogic = errors.New("enqueue: logic error")
	// ErrUnknownAssetType indicates an unsupported asset type.
	ErrUnknownAssetType = errors.New("enqueue: unknown asset type")
	// ErrNoRegistry indicates the host does not expose a registry for a type.
	ErrNoRegistry = errors.New("enqueue: host has no registry for asset type")
)

// ConfigError describes one rejected definition.
type ConfigError struct {
	Type   AssetType
	Handle string
	Index  int
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "<nil>"
	}
	subject := fmt.Sprintf("%s #%d", e.Type, e.Index)
	if e.Handle != "" {
		subject = fmt.Sprintf("%s %q", e.Type, e.Handle)
	}
	return fmt.Sprintf("enqueue: invalid %s: %s: %s", subject, e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrConfig).
func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// LogicError reports out-of-order API use. It is not recoverable by retrying.
type LogicError struct {
	Op     string
	Type   AssetType
	Handle string
	Hook   string
}

func (e *LogicError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("enqueue: %s: %s %q carries hook %q and must be staged as deferred", e.Op, e.Type, e.Handle, e.Hook)
}

// Unwrap allows errors.Is(err, ErrLogic).
func (e *LogicError) Unwrap() error {
	return ErrLogic
}
