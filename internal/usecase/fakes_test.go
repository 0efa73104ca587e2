package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"ZoneScan/internal/domain/models"
	drepo "ZoneScan/internal/domain/repository"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

// at returns 09:15 IST on the given 2024-01 day offset, the way the provider stamps daily bars.
func at(day int) time.Time {
	return time.Date(2024, 1, 1, 9, 15, 0, 0, ist).AddDate(0, 0, day)
}

func mkBar(day int, o, h, l, c float64) drepo.Bar {
	return drepo.Bar{Timestamp: at(day), Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

// dbrBars is a red leg-in, two bases and a green leg-out closing above the leg-in high.
func dbrBars(start int) []drepo.Bar {
	return []drepo.Bar{
		mkBar(start, 100, 102, 89, 90),
		mkBar(start+1, 91, 94, 89, 92),
		mkBar(start+2, 92, 93.5, 90, 91.5),
		mkBar(start+3, 95, 104, 94, 103),
	}
}

// filler returns n small bars that do not form any pattern and never touch the 89-92 band.
func filler(start, n int) []drepo.Bar {
	out := make([]drepo.Bar, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, mkBar(start+i, 110, 111, 109, 110.2))
	}
	return out
}

type fakeMarket struct {
	mu         sync.Mutex
	bars       map[string][]drepo.Bar
	queued     map[string][]error
	failAlways map[string]error
	calls      map[string]int

	// When gate is set, every call signals entered (non-blocking) and waits for gate to close.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		bars:       map[string][]drepo.Bar{},
		queued:     map[string][]error{},
		failAlways: map[string]error{},
		calls:      map[string]int{},
	}
}

// hold makes provider calls block until the returned release func is called.
func (m *fakeMarket) hold() (release func()) {
	m.gate = make(chan struct{})
	m.entered = make(chan struct{}, 1)
	return func() { close(m.gate) }
}

func (m *fakeMarket) Historical(ctx context.Context, ticker string, from, to time.Time, _ drepo.TimeFrame) ([]drepo.Bar, error) {
	if m.gate != nil {
		select {
		case m.entered <- struct{}{}:
		default:
		}
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[ticker]++

	if q := m.queued[ticker]; len(q) > 0 {
		m.queued[ticker] = q[1:]
		return nil, q[0]
	}
	if err, ok := m.failAlways[ticker]; ok {
		return nil, err
	}

	var out []drepo.Bar
	for _, b := range m.bars[ticker] {
		if !b.Timestamp.Before(from) && b.Timestamp.Before(to) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, drepo.ErrNoData
	}
	return out, nil
}

func (m *fakeMarket) callCount(ticker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[ticker]
}

func (m *fakeMarket) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

type fakeStore struct {
	mu        sync.Mutex
	zones     []models.Zone
	inserts   int
	insertErr error
	findErr   error
}

func (s *fakeStore) Find(_ context.Context, f drepo.ZoneFilter) ([]models.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}

	var out []models.Zone
	for _, z := range s.zones {
		if f.Matches(z) {
			out = append(out, z)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LegOutDate.Before(out[j].LegOutDate) })
	return out, nil
}

func (s *fakeStore) InsertMany(_ context.Context, zones []models.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.insertErr != nil {
		return s.insertErr
	}
	s.zones = append(s.zones, zones...)
	return nil
}

func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.zones)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []models.Zone
	err       error
}

func (p *fakePublisher) PublishZones(_ context.Context, zones []models.Zone) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, zones...)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeMetrics struct {
	mu       sync.Mutex
	retries  map[string]int
	errors   map[string]int
	scans    map[string]int
	accepted int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{retries: map[string]int{}, errors: map[string]int{}, scans: map[string]int{}}
}

func (m *fakeMetrics) RecordZonesAccepted(_, _ string, n int) {
	m.mu.Lock()
	m.accepted += n
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordTickerScan(_, result string) {
	m.mu.Lock()
	m.scans[result]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordRetry(op string) {
	m.mu.Lock()
	m.retries[op]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

var errBoom = errors.New("boom")

func testSourceConfig() CandleSourceConfig {
	return CandleSourceConfig{MaxAttempts: 3, RetryDelay: 0, FetchTimeout: time.Second}
}
