package models

import "time"

// Candle is one OHLCV observation for a fixed time bucket.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Range returns high minus low.
func (c Candle) Range() float64 { return c.High - c.Low }

// Body returns the absolute distance between open and close.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// IsGreen reports whether the candle closed above its open.
func (c Candle) IsGreen() bool { return c.Close > c.Open }

// IsRed reports whether the candle closed below its open.
func (c Candle) IsRed() bool { return c.Close < c.Open }
