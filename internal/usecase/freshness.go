package usecase

import (
	"context"
	"time"

	drepo "ZoneScan/internal/domain/repository"
	"ZoneScan/internal/services/zones"
	"ZoneScan/pkg/logger"
	"ZoneScan/pkg/util"
)

// FreshnessEvaluator scores how untouched a zone has stayed since its leg-out.
type FreshnessEvaluator struct {
	source drepo.CandleSource
	log    *logger.Logger
	now    func() time.Time
}

func NewFreshnessEvaluator(source drepo.CandleSource, log *logger.Logger) *FreshnessEvaluator {
	return &FreshnessEvaluator{source: source, log: orNopLogger(log), now: time.Now}
}

// Evaluate returns 0, 1.5 or 3. Fetch failures and empty history count as fresh.
func (e *FreshnessEvaluator) Evaluate(ctx context.Context, ticker string, tf drepo.TimeFrame, proximal, distal float64, origin time.Time) float64 {
	to := util.StartOfDay(e.now()).AddDate(0, 0, 1)
	if !origin.Before(to) {
		return zones.FreshnessFresh
	}

	candles, err := e.source.FetchCandles(ctx, ticker, tf, origin, to)
	if err != nil {
		e.log.Warn("freshness fetch failed, assuming fresh",
			logger.String("ticker", ticker),
			logger.String("time_frame", string(tf)),
			logger.Error(err),
		)
		return zones.FreshnessFresh
	}
	if len(candles) == 0 {
		return zones.FreshnessFresh
	}

	approaches, breached := zones.Touches(candles, proximal, distal, origin)
	return zones.FreshnessScore(approaches, breached)
}
