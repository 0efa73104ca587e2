package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ZoneScan/internal/domain/models"
	drepo "ZoneScan/internal/domain/repository"
	"ZoneScan/pkg/cache"
	xhttp "ZoneScan/pkg/http"
	"ZoneScan/pkg/logger"
	"ZoneScan/pkg/retry"
	"ZoneScan/pkg/util"
)

// CandleSourceConfig tunes provider access.
type CandleSourceConfig struct {
	MaxAttempts  int
	RetryDelay   time.Duration
	FetchTimeout time.Duration
	CacheTTL     time.Duration
}

// DefaultCandleSourceConfig returns 3 attempts, 1s apart, 15s per fetch, 15m cache.
func DefaultCandleSourceConfig() CandleSourceConfig {
	return CandleSourceConfig{
		MaxAttempts:  3,
		RetryDelay:   time.Second,
		FetchTimeout: 15 * time.Second,
		CacheTTL:     15 * time.Minute,
	}
}

// CandleFetcher validates requests, retries transient provider failures and
// normalizes bars into candles.
type CandleFetcher struct {
	provider drepo.MarketData
	cache    cache.Service
	metrics  drepo.Metrics
	log      *logger.Logger
	cfg      CandleSourceConfig
	policy   retry.Policy
}

// NewCandleFetcher wires a provider with an optional cache (nil disables caching).
func NewCandleFetcher(provider drepo.MarketData, c cache.Service, metrics drepo.Metrics, log *logger.Logger, cfg CandleSourceConfig, opts ...retry.Option) *CandleFetcher {
	f := &CandleFetcher{
		provider: provider,
		cache:    c,
		metrics:  orNoopMetrics(metrics),
		log:      orNopLogger(log),
		cfg:      cfg,
	}

	base := []retry.Option{
		retry.WithRetryable(isTransient),
		retry.WithOnRetry(func(attempt int, err error) {
			f.metrics.RecordRetry("fetch_candles")
			f.log.Warn("candle fetch failed, retrying", logger.Int("attempt", attempt), logger.Error(err))
		}),
	}
	f.policy = retry.New(cfg.MaxAttempts, cfg.RetryDelay, append(base, opts...)...)
	return f
}

// FetchCandles returns candles for ticker in [from, to), ascending by date.
func (f *CandleFetcher) FetchCandles(ctx context.Context, ticker string, tf drepo.TimeFrame, from, to time.Time) ([]models.Candle, error) {
	if err := drepo.ValidateTicker(ticker); err != nil {
		return nil, err
	}
	if err := drepo.ValidateTimeFrame(tf); err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return nil, &models.ValidationError{Field: "period", Value: from.Format(util.DateLayout) + ".." + to.Format(util.DateLayout), Expected: "start before end"}
	}

	key := candleKey(ticker, tf, from, to)
	if f.cache != nil {
		var cached []models.Candle
		if err := f.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	start := time.Now()
	bars, err := retry.DoValue(ctx, f.policy, func(ctx context.Context) ([]drepo.Bar, error) {
		fctx := ctx
		if f.cfg.FetchTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(ctx, f.cfg.FetchTimeout)
			defer cancel()
		}
		return f.provider.Historical(fctx, ticker, from, to, tf)
	})
	f.metrics.RecordLatency("fetch_candles", time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, drepo.ErrNoData) {
			return []models.Candle{}, nil
		}
		f.metrics.RecordError("provider")
		return nil, fmt.Errorf("%w: fetch %s %s: %w", models.ErrProvider, ticker, tf, err)
	}

	candles := normalize(bars, tf)
	if f.cache != nil && len(candles) > 0 {
		if err := f.cache.Set(ctx, key, candles, f.cfg.CacheTTL); err != nil {
			f.log.Debug("candle cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	return candles, nil
}

// RequireCandles fails with InsufficientDataError when fewer than min candles are present.
func RequireCandles(ticker string, candles []models.Candle, min int) error {
	if len(candles) < min {
		return &models.InsufficientDataError{Ticker: ticker, Got: len(candles), Min: min}
	}
	return nil
}

func isTransient(err error) bool {
	if errors.Is(err, drepo.ErrNoData) || errors.Is(err, drepo.ErrRejected) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return xhttp.IsTemporary(err)
}

func candleKey(ticker string, tf drepo.TimeFrame, from, to time.Time) string {
	return cache.GenerateKeyWithParams("candles", ticker, string(tf), from.Unix(), to.Unix())
}

// normalize converts bars into IST-dated candles, one per date, ascending.
func normalize(bars []drepo.Bar, tf drepo.TimeFrame) []models.Candle {
	candles := make([]models.Candle, 0, len(bars))
	for _, b := range bars {
		if b.High <= 0 || b.Low <= 0 || b.Close <= 0 || b.Open <= 0 {
			continue
		}
		date := b.Timestamp.In(util.IST)
		if tf == drepo.TFDaily {
			date = util.StartOfDay(date)
		}
		candles = append(candles, models.Candle{
			Date:   date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}

	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })

	// The provider can repeat the current session; keep the latest bar per date.
	out := candles[:0]
	for _, c := range candles {
		if n := len(out); n > 0 && out[n-1].Date.Equal(c.Date) {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

var _ drepo.CandleSource = (*CandleFetcher)(nil)
