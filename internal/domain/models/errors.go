package models

import (
	"errors"
	"fmt"
)

// ErrProvider marks failures of the external market-data provider.
var ErrProvider = errors.New("market data provider error")

// ValidationError rejects malformed input before any network call.
type ValidationError struct {
	Field    string
	Value    string
	Expected string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: expected %s", e.Field, e.Value, e.Expected)
}

// InsufficientDataError reports that fewer candles than required were returned.
type InsufficientDataError struct {
	Ticker string
	Got    int
	Min    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: got %d candles, need at least %d", e.Ticker, e.Got, e.Min)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInsufficientData reports whether err is (or wraps) an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var ie *InsufficientDataError
	return errors.As(err, &ie)
}
