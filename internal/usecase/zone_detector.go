package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"ZoneScan/internal/domain/models"
	drepo "ZoneScan/internal/domain/repository"
	"ZoneScan/internal/services/zones"
	"ZoneScan/pkg/logger"
	"ZoneScan/pkg/util"
)

// Cache modes decide what happens when the store already holds zones for a request.
const (
	CacheModeStrict    = "strict"
	CacheModeRecompute = "recompute"
)

// Freshness scores a zone against the market history since its leg-out.
type Freshness interface {
	Evaluate(ctx context.Context, ticker string, tf drepo.TimeFrame, proximal, distal float64, origin time.Time) float64
}

// DetectorConfig tunes single-ticker detection.
type DetectorConfig struct {
	LookbackDays int
	MinCandles   int
	CacheMode    string
	CacheMaxAge  time.Duration
	// Timeout bounds a shared detection run, which outlives cancelled callers.
	Timeout time.Duration
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		LookbackDays: 365,
		MinCandles:   10,
		CacheMode:    CacheModeStrict,
		CacheMaxAge:  24 * time.Hour,
		Timeout:      2 * time.Minute,
	}
}

// ZoneDetector finds demand zones across a ticker's recent history.
type ZoneDetector struct {
	source    drepo.CandleSource
	freshness Freshness
	store     drepo.ZoneStore
	publisher drepo.ZonePublisher
	metrics   drepo.Metrics
	log       *logger.Logger
	cfg       DetectorConfig
	group     singleflight.Group
	now       func() time.Time
}

// NewZoneDetector builds a detector. publisher may be nil.
func NewZoneDetector(source drepo.CandleSource, freshness Freshness, store drepo.ZoneStore, publisher drepo.ZonePublisher, metrics drepo.Metrics, log *logger.Logger, cfg DetectorConfig) *ZoneDetector {
	return &ZoneDetector{
		source:    source,
		freshness: freshness,
		store:     store,
		publisher: publisher,
		metrics:   orNoopMetrics(metrics),
		log:       orNopLogger(log),
		cfg:       cfg,
		now:       time.Now,
	}
}

// DetectZones scans candles left to right and returns the accepted zones in date order.
// It does not touch the store.
func (d *ZoneDetector) DetectZones(ctx context.Context, ticker string, tf drepo.TimeFrame, candles []models.Candle) ([]models.Zone, error) {
	createdAt := d.now()
	out := make([]models.Zone, 0)
	for _, draft := range zones.ScanForward(candles) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fresh := d.freshness.Evaluate(ctx, ticker, tf, draft.ProximalLine, draft.DistalLine, draft.LegOutDate)
		if z, ok := draft.Zone(ticker, string(tf), fresh, createdAt); ok {
			z.Source = models.SourceDetect
			out = append(out, z)
		}
	}
	return out, nil
}

// DetectForTicker runs the full pipeline for one ticker: cache check, fetch,
// detection, persistence and publishing. Concurrent identical calls share one run,
// which keeps going when the caller that started it goes away.
func (d *ZoneDetector) DetectForTicker(ctx context.Context, ticker string, tf drepo.TimeFrame) ([]models.Zone, error) {
	if err := drepo.ValidateTicker(ticker); err != nil {
		return nil, err
	}
	if err := drepo.ValidateTimeFrame(tf); err != nil {
		return nil, err
	}

	today := util.Today(d.now())
	key := fmt.Sprintf("detect:%s:%s:%s", ticker, tf, today.Format(util.DateLayout))
	v, err := doDetached(ctx, &d.group, key, d.cfg.Timeout, func(ctx context.Context) (interface{}, error) {
		return d.detect(ctx, ticker, tf, today)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Zone), nil
}

func (d *ZoneDetector) detect(ctx context.Context, ticker string, tf drepo.TimeFrame, today time.Time) ([]models.Zone, error) {
	start := time.Now()
	defer func() { d.metrics.RecordLatency("detect_ticker", time.Since(start).Seconds()) }()

	log := d.log.With(logger.String("ticker", ticker), logger.String("time_frame", string(tf)))

	if cached, ok := d.cached(ctx, ticker, tf, log); ok {
		return cached, nil
	}

	to := today.AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -d.cfg.LookbackDays)
	candles, err := d.source.FetchCandles(ctx, ticker, tf, from, to)
	if err != nil {
		d.metrics.RecordTickerScan(string(tf), "failed")
		return nil, err
	}
	if err := RequireCandles(ticker, candles, d.cfg.MinCandles); err != nil {
		d.metrics.RecordTickerScan(string(tf), "insufficient")
		return nil, err
	}

	found, err := d.DetectZones(ctx, ticker, tf, candles)
	if err != nil {
		return nil, err
	}

	if len(found) > 0 {
		if err := d.store.InsertMany(ctx, found); err != nil {
			d.metrics.RecordError("store_insert")
			return nil, fmt.Errorf("insert zones for %s: %w", ticker, err)
		}
		publish(ctx, d.publisher, found, log)
	}

	recordAccepted(d.metrics, string(tf), found)
	d.metrics.RecordTickerScan(string(tf), "ok")
	log.Info("ticker scanned", logger.Int("candles", len(candles)), logger.Int("zones", len(found)))
	return found, nil
}

// cached returns zones from an earlier full detection younger than CacheMaxAge
// when running in strict mode. Day-scan rows cover one date only and never count.
func (d *ZoneDetector) cached(ctx context.Context, ticker string, tf drepo.TimeFrame, log *logger.Logger) ([]models.Zone, bool) {
	found, err := d.store.Find(ctx, drepo.ZoneFilter{
		Ticker:       ticker,
		TimeFrame:    tf,
		Type:         models.ZoneDemand,
		Source:       models.SourceDetect,
		CreatedAfter: d.now().Add(-d.cfg.CacheMaxAge),
	})
	if err != nil {
		log.Warn("zone cache lookup failed", logger.Error(err))
		return nil, false
	}
	if len(found) == 0 {
		return nil, false
	}
	if d.cfg.CacheMode == CacheModeRecompute {
		log.Info("zone cache hit, recomputing", logger.Int("cached", len(found)))
		return nil, false
	}
	log.Debug("zone cache hit", logger.Int("cached", len(found)))
	return found, true
}

func publish(ctx context.Context, p drepo.ZonePublisher, found []models.Zone, log *logger.Logger) {
	if p == nil || len(found) == 0 {
		return
	}
	if err := p.PublishZones(ctx, found); err != nil {
		log.Warn("zone publish failed", logger.Int("zones", len(found)), logger.Error(err))
	}
}

func recordAccepted(m drepo.Metrics, tf string, found []models.Zone) {
	byPattern := make(map[models.Pattern]int)
	for _, z := range found {
		byPattern[z.Pattern]++
	}
	for p, n := range byPattern {
		m.RecordZonesAccepted(tf, string(p), n)
	}
}
