package usecase

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"ZoneScan/internal/domain/models"
	drepo "ZoneScan/internal/domain/repository"
	xhttp "ZoneScan/pkg/http"
)

type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

type scannerFixture struct {
	market  *fakeMarket
	store   *fakeStore
	sleeper *recordingSleep
	scanner *DailyScanner
}

func newScannerFixture(cfg ScannerConfig, universe []string, now time.Time) *scannerFixture {
	fx := &scannerFixture{
		market:  newFakeMarket(),
		store:   &fakeStore{},
		sleeper: &recordingSleep{},
	}
	source := NewCandleFetcher(fx.market, nil, nil, nil, testSourceConfig())
	fresh := NewFreshnessEvaluator(source, nil)
	fresh.now = func() time.Time { return now }
	fx.scanner = NewDailyScanner(source, fresh, fx.store, nil, nil, nil, cfg, universe)
	fx.scanner.now = func() time.Time { return now }
	fx.scanner.sleep = fx.sleeper.sleep
	return fx
}

// targetDay is the leg-out day of dbrBars(5): 2024-01-09.
const targetDay = 8

func targetDate() time.Time { return time.Date(2024, 1, 9, 0, 0, 0, 0, ist) }

func zoneBars() []drepo.Bar { return append(filler(0, 5), dbrBars(5)...) }

func TestScanDay_ScenarioD(t *testing.T) {
	tickers := []string{"A1.NS", "A2.NS", "A3.NS", "A4.NS", "A5.NS", "A6.NS", "A7.NS"}
	fx := newScannerFixture(DefaultScannerConfig(), nil, at(targetDay))
	for _, tk := range tickers {
		fx.market.bars[tk] = zoneBars()
	}
	fx.market.failAlways["A3.NS"] = &xhttp.StatusError{StatusCode: 504}

	res, err := fx.scanner.ScanDay(context.Background(), drepo.TFDaily, tickers, targetDate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fx.sleeper.waits) != 1 || fx.sleeper.waits[0] != time.Second {
		t.Fatalf("expected exactly one 1s pause between 2 batches, got %v", fx.sleeper.waits)
	}
	if res.Total != 6 || len(res.Data) != 6 {
		t.Fatalf("expected 6 zones, got total=%d len=%d", res.Total, len(res.Data))
	}

	got := make([]string, 0, len(res.Data))
	for _, z := range res.Data {
		got = append(got, z.Ticker)
		if !z.LegOutDate.Equal(targetDate()) {
			t.Fatalf("%s: leg-out %v is not the target day", z.Ticker, z.LegOutDate)
		}
		if z.Pattern != models.PatternDBR || z.ProximalLine != 92 || z.DistalLine != 89 || z.TradeScore != 7 {
			t.Fatalf("%s: unexpected zone %+v", z.Ticker, z)
		}
		if z.Source != models.SourceDayScan {
			t.Fatalf("%s: expected source %q, got %q", z.Ticker, models.SourceDayScan, z.Source)
		}
	}
	sort.Strings(got)
	want := []string{"A1.NS", "A2.NS", "A4.NS", "A5.NS", "A6.NS", "A7.NS"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected tickers %v, got %v", want, got)
		}
	}

	if fx.market.callCount("A3.NS") != 3 {
		t.Fatalf("failing ticker should exhaust its retries, got %d calls", fx.market.callCount("A3.NS"))
	}
	if fx.store.count() != 6 || fx.store.inserts != 1 {
		t.Fatalf("expected one bulk insert of 6 zones, got %d inserts / %d zones", fx.store.inserts, fx.store.count())
	}
}

func TestScanDay_DefaultsToUniverseAndToday(t *testing.T) {
	fx := newScannerFixture(DefaultScannerConfig(), []string{"TCS.NS", "INFY.NS"}, at(targetDay))
	fx.market.bars["TCS.NS"] = zoneBars()
	fx.market.bars["INFY.NS"] = filler(0, 10)

	res, err := fx.scanner.ScanDay(context.Background(), drepo.TFDaily, nil, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 1 || res.Data[0].Ticker != "TCS.NS" {
		t.Fatalf("expected one TCS zone, got %+v", res)
	}
	if fx.market.callCount("INFY.NS") == 0 {
		t.Fatalf("universe ticker was not scanned")
	}
	if len(fx.sleeper.waits) != 0 {
		t.Fatalf("a single batch must not pause")
	}
}

func TestScanDay_SkipsInsufficientAndInvalid(t *testing.T) {
	fx := newScannerFixture(DefaultScannerConfig(), nil, at(targetDay))
	fx.market.bars["TCS.NS"] = zoneBars()
	fx.market.bars["TINY.NS"] = filler(7, 2)

	res, err := fx.scanner.ScanDay(context.Background(), drepo.TFDaily, []string{"bad", "TINY.NS", "TCS.NS"}, targetDate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("expected 1 zone, got %d", res.Total)
	}
}

func TestScanDay_EmptyResult(t *testing.T) {
	fx := newScannerFixture(DefaultScannerConfig(), nil, at(targetDay))
	fx.market.bars["TCS.NS"] = filler(0, 10)

	res, err := fx.scanner.ScanDay(context.Background(), drepo.TFDaily, []string{"TCS.NS"}, targetDate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 0 || res.Data == nil {
		t.Fatalf("expected empty non-nil data, got %+v", res)
	}
	if fx.store.inserts != 0 {
		t.Fatalf("nothing to insert")
	}
}

func TestScanDay_StrictCacheSkipsStoredTickers(t *testing.T) {
	fx := newScannerFixture(DefaultScannerConfig(), nil, at(targetDay))
	fx.market.bars["TCS.NS"] = zoneBars()
	fx.market.bars["INFY.NS"] = zoneBars()
	fx.store.zones = []models.Zone{{
		Ticker: "TCS.NS", TimeFrame: "1d", Type: models.ZoneDemand, Pattern: models.PatternRBR,
		ProximalLine: 50, DistalLine: 45, TradeScore: 6, LegOutDate: targetDate(), Source: models.SourceDayScan,
	}, {
		// Rows from a full detection do not answer a day scan.
		Ticker: "INFY.NS", TimeFrame: "1d", Type: models.ZoneDemand, Pattern: models.PatternDBR,
		ProximalLine: 92, DistalLine: 89, TradeScore: 7, LegOutDate: targetDate(), Source: models.SourceDetect,
	}}

	res, err := fx.scanner.ScanDay(context.Background(), drepo.TFDaily, []string{"TCS.NS", "INFY.NS"}, targetDate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("expected cached + computed zone, got %+v", res)
	}
	if fx.market.callCount("TCS.NS") != 0 {
		t.Fatalf("cached ticker should not be fetched")
	}
	if fx.market.callCount("INFY.NS") == 0 {
		t.Fatalf("a detect row must not count as a day-scan hit")
	}
	if fx.store.count() != 3 {
		t.Fatalf("only the computed zone should be inserted, store has %d", fx.store.count())
	}
}

func TestScanDay_RecomputeModeRescans(t *testing.T) {
	cfg := DefaultScannerConfig()
	cfg.CacheMode = CacheModeRecompute
	fx := newScannerFixture(cfg, nil, at(targetDay))
	fx.market.bars["TCS.NS"] = zoneBars()
	fx.store.zones = []models.Zone{{Ticker: "TCS.NS", TimeFrame: "1d", Type: models.ZoneDemand, LegOutDate: targetDate(), Source: models.SourceDayScan}}

	res, err := fx.scanner.ScanDay(context.Background(), drepo.TFDaily, []string{"TCS.NS"}, targetDate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 1 || res.Data[0].ProximalLine != 92 {
		t.Fatalf("expected freshly computed zone, got %+v", res)
	}
	if fx.market.callCount("TCS.NS") == 0 {
		t.Fatalf("recompute mode must fetch")
	}
}

func TestScanDay_CancelStopsBetweenBatches(t *testing.T) {
	cfg := DefaultScannerConfig()
	cfg.BatchSize = 1
	fx := newScannerFixture(cfg, nil, at(targetDay))
	fx.market.bars["TCS.NS"] = zoneBars()
	fx.market.bars["INFY.NS"] = zoneBars()

	ctx, cancel := context.WithCancel(context.Background())
	fx.scanner.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := fx.scanner.ScanDay(ctx, drepo.TFDaily, []string{"TCS.NS", "INFY.NS"}, targetDate())
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if fx.market.callCount("INFY.NS") != 0 {
		t.Fatalf("second batch must not run after cancellation")
	}
	if fx.store.inserts != 0 {
		t.Fatalf("cancelled scan must not insert")
	}
}

func TestScanDay_InsertFailurePropagates(t *testing.T) {
	fx := newScannerFixture(DefaultScannerConfig(), nil, at(targetDay))
	fx.market.bars["TCS.NS"] = zoneBars()
	fx.store.insertErr = errBoom

	if _, err := fx.scanner.ScanDay(context.Background(), drepo.TFDaily, []string{"TCS.NS"}, targetDate()); err == nil {
		t.Fatalf("expected insert error")
	}
}

func TestScanDay_ConcurrentIdenticalScansStoreOnce(t *testing.T) {
	fx := newScannerFixture(DefaultScannerConfig(), nil, at(targetDay))
	fx.market.bars["A1.NS"] = zoneBars()
	release := fx.market.hold()

	results := make([]*models.ScanResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	run := func(i int) {
		defer wg.Done()
		results[i], errs[i] = fx.scanner.ScanDay(context.Background(), drepo.TFDaily, []string{"A1.NS"}, targetDate())
	}

	wg.Add(1)
	go run(0)
	<-fx.market.entered
	wg.Add(1)
	go run(1)
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i].Total != 1 {
			t.Fatalf("caller %d: expected 1 zone, got %+v", i, results[i])
		}
	}
	if fx.store.count() != 1 || fx.store.inserts != 1 {
		t.Fatalf("identical concurrent scans stored %d zones in %d inserts", fx.store.count(), fx.store.inserts)
	}
}

func TestScanDay_OverlappingScansStoreEachZoneOnce(t *testing.T) {
	fx := newScannerFixture(DefaultScannerConfig(), nil, at(targetDay))
	fx.market.bars["A1.NS"] = zoneBars()
	fx.market.bars["A2.NS"] = zoneBars()
	release := fx.market.hold()

	var (
		wg           sync.WaitGroup
		narrow, wide *models.ScanResult
		errN, errW   error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		narrow, errN = fx.scanner.ScanDay(context.Background(), drepo.TFDaily, []string{"A1.NS"}, targetDate())
	}()
	<-fx.market.entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		wide, errW = fx.scanner.ScanDay(context.Background(), drepo.TFDaily, []string{"A1.NS", "A2.NS"}, targetDate())
	}()
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	if errN != nil || errW != nil {
		t.Fatalf("unexpected errors: %v / %v", errN, errW)
	}
	if narrow.Total != 1 || wide.Total != 2 {
		t.Fatalf("expected 1 and 2 zones, got %d and %d", narrow.Total, wide.Total)
	}

	stored := map[string]int{}
	for _, z := range fx.store.zones {
		stored[z.Ticker]++
	}
	if fx.store.count() != 2 || stored["A1.NS"] != 1 || stored["A2.NS"] != 1 {
		t.Fatalf("expected each zone stored once, got %v", stored)
	}
}
