package analyzer

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientBands is reported when fewer than two boundary
	// frequencies are configured.
	ErrInsufficientBands = errors.New("at least two boundary frequencies are required")
	// ErrInvalidBoundaries is reported for negative or decreasing boundaries.
	ErrInvalidBoundaries = errors.New("boundary frequencies must be non-negative and non-decreasing")
	// ErrInvalidConfig covers the remaining construction parameters.
	ErrInvalidConfig = errors.New("invalid analysis config")
	// ErrAllocationFailed is reported when the transform workspace or the
	// band table cannot be allocated.
	ErrAllocationFailed = errors.New("unable to allocate analysis workspace")

	ErrMalformedChunk  = errors.New("chunk size is not a multiple of the sample width")
	ErrChunkTooLarge   = errors.New("chunk exceeds transform workspace")
	ErrIndexOutOfRange = errors.New("band index out of range")

	// ErrClosed is returned by reads on an analyzer that has been shut down.
	ErrClosed         = errors.New("analyzer is shut down")
	ErrAlreadyStarted = errors.New("analyzer already started")
)

// ConfigError reports which construction parameter was rejected.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(field string, err error, format string, args ...any) error {
	if format != "" {
		err = fmt.Errorf("%w: "+format, append([]any{err}, args...)...)
	}
	return &ConfigError{Field: field, Err: err}
}
