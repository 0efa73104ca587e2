package usecase

import (
	"context"
	"testing"
	"time"

	drepo "ZoneScan/internal/domain/repository"
	"ZoneScan/internal/services/zones"
	xhttp "ZoneScan/pkg/http"
)

func newTestFreshness(market *fakeMarket, now time.Time) *FreshnessEvaluator {
	e := NewFreshnessEvaluator(NewCandleFetcher(market, nil, nil, nil, testSourceConfig()), nil)
	e.now = func() time.Time { return now }
	return e
}

func TestFreshness_Scores(t *testing.T) {
	origin := at(3)
	now := at(20)

	cases := []struct {
		name string
		bars []drepo.Bar
		want float64
	}{
		{
			name: "untouched",
			bars: append([]drepo.Bar{mkBar(3, 95, 104, 94, 103)}, filler(4, 5)...),
			want: zones.FreshnessFresh,
		},
		{
			name: "two approaches",
			bars: []drepo.Bar{
				mkBar(3, 95, 104, 94, 103),
				mkBar(4, 96, 97, 91, 95),
				mkBar(5, 99, 100, 95, 99.5),
				mkBar(6, 95, 96, 90, 94),
			},
			want: zones.FreshnessTested,
		},
		{
			name: "three approaches",
			bars: []drepo.Bar{
				mkBar(3, 95, 104, 94, 103),
				mkBar(4, 96, 97, 91, 95),
				mkBar(5, 95, 96, 90, 94),
				mkBar(6, 94, 95, 89.5, 93),
			},
			want: zones.FreshnessStale,
		},
		{
			name: "breached",
			bars: []drepo.Bar{
				mkBar(3, 95, 104, 94, 103),
				mkBar(4, 93, 94, 87, 88),
			},
			want: zones.FreshnessStale,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			market := newFakeMarket()
			market.bars["TCS.NS"] = tc.bars
			e := newTestFreshness(market, now)

			got := e.Evaluate(context.Background(), "TCS.NS", drepo.TFDaily, 92, 89, origin)
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestFreshness_FailuresDefaultToFresh(t *testing.T) {
	market := newFakeMarket()
	market.failAlways["DOWN.NS"] = &xhttp.StatusError{StatusCode: 503}
	e := newTestFreshness(market, at(20))

	if got := e.Evaluate(context.Background(), "DOWN.NS", drepo.TFDaily, 92, 89, at(3)); got != zones.FreshnessFresh {
		t.Fatalf("fetch failure: expected 3, got %v", got)
	}
	if got := e.Evaluate(context.Background(), "NONE.NS", drepo.TFDaily, 92, 89, at(3)); got != zones.FreshnessFresh {
		t.Fatalf("no data: expected 3, got %v", got)
	}
}
