package repository

import (
	"regexp"

	"ZoneScan/internal/domain/models"
)

// TimeFrame is the candle interval at the provider boundary.
type TimeFrame string

const (
	TFDaily   TimeFrame = "1d"
	TFWeekly  TimeFrame = "1wk"
	TFMonthly TimeFrame = "1mo"
)

// tickerPattern accepts an uppercase alphanumeric root with an NSE or BSE suffix.
var tickerPattern = regexp.MustCompile(`^[A-Z0-9]+\.(NS|BO)$`)

// IsValidTimeFrame returns true if tf is a supported timeframe.
func IsValidTimeFrame(tf TimeFrame) bool {
	switch tf {
	case TFDaily, TFWeekly, TFMonthly:
		return true
	default:
		return false
	}
}

// DefaultTimeFrame returns the default timeframe.
func DefaultTimeFrame() TimeFrame { return TFDaily }

// ParseTimeFrame validates raw and returns the timeframe; empty input yields the default.
func ParseTimeFrame(raw string) (TimeFrame, error) {
	if raw == "" {
		return DefaultTimeFrame(), nil
	}
	tf := TimeFrame(raw)
	if err := ValidateTimeFrame(tf); err != nil {
		return "", err
	}
	return tf, nil
}

// IsValidTicker reports whether ticker matches the exchange-suffix format, e.g. RELIANCE.NS.
func IsValidTicker(ticker string) bool {
	return tickerPattern.MatchString(ticker)
}

// ValidateTicker returns a ValidationError echoing the offending ticker.
func ValidateTicker(ticker string) error {
	if !IsValidTicker(ticker) {
		return &models.ValidationError{
			Field:    "ticker",
			Value:    ticker,
			Expected: "uppercase alphanumeric symbol with .NS or .BO suffix (e.g. RELIANCE.NS)",
		}
	}
	return nil
}

// ValidateTimeFrame rejects anything but 1d, 1wk and 1mo.
func ValidateTimeFrame(tf TimeFrame) error {
	if !IsValidTimeFrame(tf) {
		return &models.ValidationError{Field: "timeFrame", Value: string(tf), Expected: "one of 1d, 1wk, 1mo"}
	}
	return nil
}
