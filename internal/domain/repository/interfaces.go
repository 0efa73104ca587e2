package repository

import (
	"context"
	"errors"
	"time"

	"ZoneScan/internal/domain/models"
)

var (
	// ErrNoData means the provider has no bars for the ticker or range.
	ErrNoData = errors.New("market data: no data returned")
	// ErrRejected means the provider answered with an application-level error.
	ErrRejected = errors.New("market data: request rejected")
)

// Bar is a provider-native historical record before normalization.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// MarketData is the external historical-data provider.
type MarketData interface {
	Historical(ctx context.Context, ticker string, from, to time.Time, interval TimeFrame) ([]Bar, error)
}

// CandleSource returns validated, normalized candles in ascending date order.
type CandleSource interface {
	FetchCandles(ctx context.Context, ticker string, tf TimeFrame, from, to time.Time) ([]models.Candle, error)
}

// ZoneFilter selects stored zones. Zero values are ignored.
type ZoneFilter struct {
	Ticker       string
	Tickers      []string
	TimeFrame    TimeFrame
	Type         models.ZoneType
	Source       models.ZoneSource
	LegOutFrom   time.Time // inclusive
	LegOutTo     time.Time // exclusive
	CreatedAfter time.Time
	Limit        int
}

// ZoneStore persists zones. It is append-only from the engine's side.
type ZoneStore interface {
	Find(ctx context.Context, f ZoneFilter) ([]models.Zone, error)
	InsertMany(ctx context.Context, zones []models.Zone) error
	Health(ctx context.Context) error
	Close() error
}

// ZonePublisher announces accepted zones to downstream consumers.
type ZonePublisher interface {
	PublishZones(ctx context.Context, zones []models.Zone) error
	Close() error
}

type Metrics interface {
	RecordZonesAccepted(tf, pattern string, n int)
	RecordTickerScan(tf, result string)
	RecordRetry(op string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// Matches reports whether z passes every non-zero criterion of f. Limit is ignored.
func (f ZoneFilter) Matches(z models.Zone) bool {
	if f.Ticker != "" && z.Ticker != f.Ticker {
		return false
	}
	if len(f.Tickers) > 0 {
		found := false
		for _, t := range f.Tickers {
			if t == z.Ticker {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.TimeFrame != "" && z.TimeFrame != string(f.TimeFrame) {
		return false
	}
	if f.Type != "" && z.Type != f.Type {
		return false
	}
	if f.Source != "" && z.Source != f.Source {
		return false
	}
	if !f.LegOutFrom.IsZero() && z.LegOutDate.Before(f.LegOutFrom) {
		return false
	}
	if !f.LegOutTo.IsZero() && !z.LegOutDate.Before(f.LegOutTo) {
		return false
	}
	if !f.CreatedAfter.IsZero() && !z.CreatedAt.After(f.CreatedAfter) {
		return false
	}
	return true
}
