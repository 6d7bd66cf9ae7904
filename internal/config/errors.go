package config

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrMissingAddr    = errors.New("addr must not be empty")
	ErrMissingDBPath  = errors.New("db_path must not be empty")
	ErrInvalidWindow  = errors.New("decay_window_days must be positive")
	ErrInvalidBatch   = errors.New("batch and page sizes must be positive")
	ErrMissingRace    = errors.New("default and party race ids must be set")
	ErrInvalidWeights = errors.New("ballot_weights must be positive and strictly decreasing")
)

// NewKind tags a sentinel with the operation that raised it.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// Wrap annotates an external error with the operation that hit it.
func Wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
