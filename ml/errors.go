package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrDatasetRequired is wrapped in a ConfigError when a builder is created
	// without reference data.
	ErrDatasetRequired = errors.New("reference dataset is required")
	ErrSchemaMismatch  = errors.New("record columns do not match the trained feature order")
	ErrUnknownClass    = errors.New("unknown class label")
	ErrOutOfRange      = errors.New("value outside the observed feature range")
	ErrUnknownCategory = errors.New("unknown category")
	ErrMissingFeature  = errors.New("missing feature value")
	ErrUnexpectedInput = errors.New("unexpected feature")
	ErrInvalidValue    = errors.New("invalid feature value")
	ErrEmptySeries     = errors.New("series is empty")
	ErrTooManyBins     = fmt.Errorf("bin count exceeds %d", MaxBinCount)
	ErrUnsupportedType = errors.New("unsupported estimator type")
)

// ConfigError marks a deployment problem that retrying will not fix.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
