package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ZoneScan/internal/domain/models"
	drepo "ZoneScan/internal/domain/repository"
	"ZoneScan/internal/services/zones"
	"ZoneScan/pkg/logger"
	"ZoneScan/pkg/retry"
	"ZoneScan/pkg/util"
)

// ScannerConfig tunes the daily batch scan.
type ScannerConfig struct {
	BatchSize    int
	BatchDelay   time.Duration
	LookbackDays int
	MinCandles   int
	CacheMode    string
}

func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		BatchSize:    5,
		BatchDelay:   time.Second,
		LookbackDays: 10,
		MinCandles:   3,
		CacheMode:    CacheModeStrict,
	}
}

// DailyScanner looks for zones whose leg-out candle closes on a given day,
// across a whole ticker universe.
type DailyScanner struct {
	source    drepo.CandleSource
	freshness Freshness
	store     drepo.ZoneStore
	publisher drepo.ZonePublisher
	metrics   drepo.Metrics
	log       *logger.Logger
	cfg       ScannerConfig
	universe  []string
	group     singleflight.Group
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewDailyScanner builds a scanner over the given default universe. publisher may be nil.
func NewDailyScanner(source drepo.CandleSource, freshness Freshness, store drepo.ZoneStore, publisher drepo.ZonePublisher, metrics drepo.Metrics, log *logger.Logger, cfg ScannerConfig, universe []string) *DailyScanner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	return &DailyScanner{
		source:    source,
		freshness: freshness,
		store:     store,
		publisher: publisher,
		metrics:   orNoopMetrics(metrics),
		log:       orNopLogger(log),
		cfg:       cfg,
		universe:  universe,
		now:       time.Now,
		sleep:     retry.Sleep,
	}
}

// Universe returns the default ticker list.
func (s *DailyScanner) Universe() []string { return s.universe }

// ScanDay finds zones with a leg-out on target. Empty tickers means the configured
// universe; a zero target means today (IST). Failures of single tickers are logged
// and skipped. Identical concurrent calls share one run.
func (s *DailyScanner) ScanDay(ctx context.Context, tf drepo.TimeFrame, tickers []string, target time.Time) (*models.ScanResult, error) {
	if err := drepo.ValidateTimeFrame(tf); err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		tickers = s.universe
	}
	if target.IsZero() {
		target = util.Today(s.now())
	} else {
		target = util.StartOfDay(target)
	}
	tickers = dedupe(tickers)

	v, _, err := doOwned(ctx, &s.group, scanDayKey(tf, tickers, target), func() (interface{}, error) {
		return s.scanDay(ctx, tf, tickers, target)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.ScanResult), nil
}

func (s *DailyScanner) scanDay(ctx context.Context, tf drepo.TimeFrame, tickers []string, target time.Time) (*models.ScanResult, error) {
	start := time.Now()
	log := s.log.With(
		logger.String("time_frame", string(tf)),
		logger.String("target", target.Format(util.DateLayout)),
	)

	cached, todo := s.splitCached(ctx, tf, tickers, target, log)

	computed, owned, err := s.runBatches(ctx, tf, todo, target, log)
	if err != nil {
		return nil, err
	}

	// Zones computed by an overlapping scan are stored by that scan.
	if len(owned) > 0 {
		if err := s.store.InsertMany(ctx, owned); err != nil {
			s.metrics.RecordError("store_insert")
			return nil, fmt.Errorf("insert scanned zones: %w", err)
		}
		publish(ctx, s.publisher, owned, log)
	}
	recordAccepted(s.metrics, string(tf), owned)

	all := append(cached, computed...)
	s.metrics.RecordLatency("scan_day", time.Since(start).Seconds())
	log.Info("day scan finished",
		logger.Int("tickers", len(tickers)),
		logger.Int("cached", len(cached)),
		logger.Int("computed", len(computed)),
		logger.Int("shared", len(computed)-len(owned)),
		logger.Duration("took_ms", time.Since(start)),
	)
	return models.NewScanResult(all), nil
}

func scanDayKey(tf drepo.TimeFrame, tickers []string, target time.Time) string {
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	return fmt.Sprintf("scanday:%s:%s:%s", tf, target.Format(util.DateLayout), strings.Join(sorted, ","))
}

// splitCached returns zones already stored for target and the tickers that still
// need scanning. In recompute mode every ticker is rescanned.
func (s *DailyScanner) splitCached(ctx context.Context, tf drepo.TimeFrame, tickers []string, target time.Time, log *logger.Logger) ([]models.Zone, []string) {
	found, err := s.store.Find(ctx, drepo.ZoneFilter{
		Tickers:    tickers,
		TimeFrame:  tf,
		Type:       models.ZoneDemand,
		Source:     models.SourceDayScan,
		LegOutFrom: target,
		LegOutTo:   target.AddDate(0, 0, 1),
	})
	if err != nil {
		log.Warn("zone cache lookup failed", logger.Error(err))
		return nil, tickers
	}
	if len(found) == 0 {
		return nil, tickers
	}
	if s.cfg.CacheMode == CacheModeRecompute {
		log.Info("zone cache hit, recomputing", logger.Int("cached", len(found)))
		return nil, tickers
	}

	hit := make(map[string]bool, len(found))
	for _, z := range found {
		hit[z.Ticker] = true
	}
	todo := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if !hit[t] {
			todo = append(todo, t)
		}
	}
	log.Debug("zone cache hit", logger.Int("cached", len(found)), logger.Int("remaining", len(todo)))
	return found, todo
}

type tickerResult struct {
	zones []models.Zone
	owned bool
}

// runBatches scans tickers in fixed-size concurrent batches with a pause between
// batches. Results are appended only once a batch has fully settled. owned holds
// the zones this call computed itself.
func (s *DailyScanner) runBatches(ctx context.Context, tf drepo.TimeFrame, tickers []string, target time.Time, log *logger.Logger) (all, owned []models.Zone, err error) {
	all = make([]models.Zone, 0)
	for startIdx := 0; startIdx < len(tickers); startIdx += s.cfg.BatchSize {
		if startIdx > 0 {
			if err := s.sleep(ctx, s.cfg.BatchDelay); err != nil {
				return nil, nil, fmt.Errorf("scan interrupted: %w", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("scan interrupted: %w", err)
		}

		end := startIdx + s.cfg.BatchSize
		if end > len(tickers) {
			end = len(tickers)
		}
		batch := tickers[startIdx:end]

		slots := make([]tickerResult, len(batch))
		var wg sync.WaitGroup
		for i, ticker := range batch {
			wg.Add(1)
			go func(i int, ticker string) {
				defer wg.Done()
				slots[i] = s.scanTickerShared(ctx, tf, ticker, target, log)
			}(i, ticker)
		}
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("scan interrupted: %w", err)
		}

		for _, r := range slots {
			all = append(all, r.zones...)
			if r.owned {
				owned = append(owned, r.zones...)
			}
		}
	}
	return all, owned, nil
}

// scanTickerShared coalesces concurrent scans of the same ticker and day. Only the
// caller that ran the scan owns its zones.
func (s *DailyScanner) scanTickerShared(ctx context.Context, tf drepo.TimeFrame, ticker string, target time.Time, log *logger.Logger) tickerResult {
	key := fmt.Sprintf("scan:%s:%s:%s", ticker, tf, target.Format(util.DateLayout))
	v, owned, _ := doOwned(ctx, &s.group, key, func() (interface{}, error) {
		zs, err := s.scanTicker(ctx, tf, ticker, target)
		s.recordOutcome(tf, ticker, err, log)
		if err != nil {
			return []models.Zone(nil), nil
		}
		return zs, nil
	})
	zs, _ := v.([]models.Zone)
	return tickerResult{zones: zs, owned: owned}
}

func (s *DailyScanner) scanTicker(ctx context.Context, tf drepo.TimeFrame, ticker string, target time.Time) ([]models.Zone, error) {
	from := target.AddDate(0, 0, -s.cfg.LookbackDays)
	to := target.AddDate(0, 0, 2)
	candles, err := s.source.FetchCandles(ctx, ticker, tf, from, to)
	if err != nil {
		return nil, err
	}
	if err := RequireCandles(ticker, candles, s.cfg.MinCandles); err != nil {
		return nil, err
	}

	idx, ok := zones.FindDay(candles, target)
	if !ok {
		return nil, nil
	}
	draft, ok := zones.ScanBackward(candles, idx)
	if !ok {
		return nil, nil
	}

	fresh := s.freshness.Evaluate(ctx, ticker, tf, draft.ProximalLine, draft.DistalLine, draft.LegOutDate)
	z, ok := draft.Zone(ticker, string(tf), fresh, s.now())
	if !ok {
		return nil, nil
	}
	z.Source = models.SourceDayScan
	return []models.Zone{z}, nil
}

func (s *DailyScanner) recordOutcome(tf drepo.TimeFrame, ticker string, err error, log *logger.Logger) {
	switch {
	case err == nil:
		s.metrics.RecordTickerScan(string(tf), "ok")
	case models.IsInsufficientData(err):
		s.metrics.RecordTickerScan(string(tf), "insufficient")
		log.Debug("ticker skipped", logger.String("ticker", ticker), logger.Error(err))
	case models.IsValidation(err):
		s.metrics.RecordTickerScan(string(tf), "invalid")
		log.Warn("ticker rejected", logger.String("ticker", ticker), logger.Error(err))
	case errors.Is(err, context.Canceled):
		s.metrics.RecordTickerScan(string(tf), "cancelled")
	default:
		s.metrics.RecordTickerScan(string(tf), "failed")
		log.Error("ticker scan failed", logger.String("ticker", ticker), logger.Error(err))
	}
}

func dedupe(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

var _ DayScanner = (*DailyScanner)(nil)
