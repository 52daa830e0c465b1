package game

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMass      = errors.New("mass must be positive")
	ErrInvalidRadius    = errors.New("hit box radius must not be negative")
	ErrInvalidDirection = errors.New("unknown direction")
	ErrInvalidKind      = errors.New("unknown entity kind")
	ErrNeedsOwner       = errors.New("kind requires a live owner")
	ErrInvalidStep      = errors.New("tick duration must be positive and finite")
	ErrInvalidPosition  = errors.New("position must be finite")
	ErrInvalidSignal    = errors.New("unknown signal")
)

// ConfigError reports a malformed physical quantity or command token.
// These are fatal for the operation that produced them; the simulation
// never continues with undefined physics.
type ConfigError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s=%v: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(field string, value any, err error) error {
	return &ConfigError{Field: field, Value: value, Err: err}
}
