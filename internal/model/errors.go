package model

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedType is matched by configuration errors naming a TYPE
	// the factory does not know.
	ErrUnsupportedType = errors.New("unsupported component type")
	// ErrInvalidConfig is matched by configuration errors for a known TYPE
	// whose settings cannot be built.
	ErrInvalidConfig = errors.New("invalid component config")
	// ErrNotImplemented is returned by the Base stubs.
	ErrNotImplemented = errors.New("not implemented")
	// ErrNotAutoregressive is returned by Decode on a CTC model.
	ErrNotAutoregressive = errors.New("decoder does not support autoregressive decoding")
)

// ConfigError reports a component slot that cannot be built from its
// configuration. It is fatal at construction time.
type ConfigError struct {
	Slot   string
	Type   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unsupported %s type %q", e.Slot, e.Type)
	}
	return fmt.Sprintf("%s %q: %s", e.Slot, e.Type, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	if e.Reason == "" {
		return ErrUnsupportedType
	}
	return ErrInvalidConfig
}

func unsupported(slot string, typ string) error {
	return &ConfigError{Slot: slot, Type: typ}
}

func invalid(slot string, typ string, format string, args ...any) error {
	return &ConfigError{Slot: slot, Type: typ, Reason: fmt.Sprintf(format, args...)}
}
