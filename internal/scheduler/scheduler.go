package scheduler

import (
	"context"
	"fmt"
	"time"

	drepo "ZoneScan/internal/domain/repository"
	"ZoneScan/internal/usecase"
	"ZoneScan/pkg/logger"
	"ZoneScan/pkg/util"

	"github.com/robfig/cron/v3"
)

// Locker guards a scheduled run across replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Scheduler runs the end-of-day scan on a cron schedule in IST.
type Scheduler struct {
	cron       *cron.Cron
	scanner    usecase.DayScanner
	locker     Locker
	metrics    drepo.Metrics
	log        *logger.Logger
	timeFrames []drepo.TimeFrame
	lockTTL    time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	now        func() time.Time
}

// New builds a scheduler. locker may be nil for single-replica deployments.
func New(scanner usecase.DayScanner, locker Locker, metrics drepo.Metrics, log *logger.Logger, timeFrames []drepo.TimeFrame, lockTTL time.Duration) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(util.IST)),
		scanner:    scanner,
		locker:     locker,
		metrics:    metrics,
		log:        log.With(logger.String("component", "scheduler")),
		timeFrames: timeFrames,
		lockTTL:    lockTTL,
		ctx:        ctx,
		cancel:     cancel,
		now:        time.Now,
	}
}

// Register adds the daily scan under a standard 5-field cron spec.
func (s *Scheduler) Register(dailyCron string) error {
	if _, err := s.cron.AddFunc(dailyCron, func() { s.RunDaily(s.ctx) }); err != nil {
		return fmt.Errorf("register daily scan: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop cancels running scans and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunDaily scans today's session for every configured time frame.
func (s *Scheduler) RunDaily(ctx context.Context) {
	today := util.Today(s.now())
	for _, tf := range s.timeFrames {
		if ctx.Err() != nil {
			return
		}
		s.runOne(ctx, tf, today)
	}
}

func (s *Scheduler) runOne(ctx context.Context, tf drepo.TimeFrame, day time.Time) {
	log := s.log.With(logger.String("time_frame", string(tf)), logger.String("date", day.Format(util.DateLayout)))
	key := fmt.Sprintf("lock:scan:%s:%s", tf, day.Format(util.DateLayout))

	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
		if err != nil {
			log.Error("scan lock failed", logger.Error(err))
			s.recordError()
			return
		}
		if !ok {
			log.Info("scan already claimed by another replica")
			return
		}
	}

	start := time.Now()
	res, err := s.scanner.ScanDay(ctx, tf, nil, day)
	if s.metrics != nil {
		s.metrics.RecordLatency("scheduled_scan", time.Since(start).Seconds())
	}
	if err != nil {
		log.Error("scheduled scan failed", logger.Error(err))
		s.recordError()
		// release so a later trigger can retry the day
		if s.locker != nil {
			if uerr := s.locker.Unlock(context.Background(), key); uerr != nil {
				log.Warn("scan unlock failed", logger.Error(uerr))
			}
		}
		return
	}
	log.Info("scheduled scan finished", logger.Int("zones", res.Total), logger.Duration("elapsed_ms", time.Since(start)))
}

func (s *Scheduler) recordError() {
	if s.metrics != nil {
		s.metrics.RecordError("scheduled_scan")
	}
}
