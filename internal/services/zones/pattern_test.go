package zones

import (
	"testing"
	"time"

	"ZoneScan/internal/domain/models"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("IST", 5*3600+30*60))

func bar(day int, o, h, l, c float64) models.Candle {
	return models.Candle{Date: day0.AddDate(0, 0, day), Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

// dbrSeries is a red leg-in, two base candles and a green leg-out above the leg-in high.
func dbrSeries(start int) []models.Candle {
	return []models.Candle{
		bar(start, 100, 102, 89, 90),
		bar(start+1, 91, 94, 89, 92),
		bar(start+2, 92, 93.5, 90, 91.5),
		bar(start+3, 95, 104, 94, 103),
	}
}

func TestBodyRatioFlatCandle(t *testing.T) {
	flat := bar(0, 10, 10, 10, 10)
	if _, ok := BodyRatio(flat); ok {
		t.Fatalf("expected flat candle to be non-qualifying")
	}
	if IsLegIn(flat) || IsBase(flat) {
		t.Fatalf("flat candle must not be leg-in or base")
	}
}

func TestClassifyDropBaseRally(t *testing.T) {
	cs := dbrSeries(0)
	d, ok := Classify(cs, 0, 3)
	if !ok {
		t.Fatalf("expected a zone")
	}
	if d.Pattern != models.PatternDBR {
		t.Fatalf("pattern=%s", d.Pattern)
	}
	if d.ProximalLine != 92 || d.DistalLine != 89 {
		t.Fatalf("lines proximal=%v distal=%v", d.ProximalLine, d.DistalLine)
	}
	if d.Strength != 2 || d.TimeAtBase != 2 || d.BaseCount != 2 {
		t.Fatalf("strength=%d timeAtBase=%d bases=%d", d.Strength, d.TimeAtBase, d.BaseCount)
	}
	if !d.LegOutDate.Equal(cs[3].Date) {
		t.Fatalf("legOutDate=%v", d.LegOutDate)
	}
	z, ok := d.Zone("RELIANCE.NS", "1d", FreshnessFresh, day0)
	if !ok {
		t.Fatalf("expected zone above threshold")
	}
	if z.TradeScore != 7 || z.TradeScore != z.Freshness+float64(z.Strength+z.TimeAtBase) {
		t.Fatalf("tradeScore=%v", z.TradeScore)
	}
	if z.DistalLine > z.ProximalLine {
		t.Fatalf("distal above proximal")
	}
}

func TestClassifyRallyBaseRally(t *testing.T) {
	cs := []models.Candle{
		bar(0, 90, 101, 89, 100),
		bar(1, 100, 102, 98, 100.5),
		bar(2, 101, 109, 100, 108),
	}
	d, ok := Classify(cs, 0, 2)
	if !ok || d.Pattern != models.PatternRBR {
		t.Fatalf("expected RBR, got ok=%v pattern=%s", ok, d.Pattern)
	}
	if d.ProximalLine != 100.5 || d.DistalLine != 98 {
		t.Fatalf("lines proximal=%v distal=%v", d.ProximalLine, d.DistalLine)
	}
}

func TestClassifyRejects(t *testing.T) {
	cases := map[string][]models.Candle{
		"red leg-out": {
			bar(0, 100, 102, 89, 90),
			bar(1, 91, 94, 89, 92),
			bar(2, 110, 111, 100, 105),
		},
		"leg-out below leg-in high": {
			bar(0, 100, 102, 89, 90),
			bar(1, 91, 94, 89, 92),
			bar(2, 95, 103, 94, 101),
		},
		"weak leg-in": {
			bar(0, 100, 110, 89, 98),
			bar(1, 91, 94, 89, 92),
			bar(2, 95, 114, 94, 113),
		},
	}
	for name, cs := range cases {
		if _, ok := Classify(cs, 0, len(cs)-1); ok {
			t.Errorf("%s: expected rejection", name)
		}
	}
}

func TestTimeAtBaseScore(t *testing.T) {
	want := map[int]int{1: 2, 3: 2, 4: 1, 5: 1, 6: 0}
	for n, w := range want {
		if got := TimeAtBaseScore(n); got != w {
			t.Errorf("TimeAtBaseScore(%d)=%d want %d", n, got, w)
		}
	}
}

func TestFreshnessScore(t *testing.T) {
	tests := []struct {
		approaches int
		breached   bool
		want       float64
	}{
		{0, false, 3},
		{1, false, 1.5},
		{2, false, 1.5},
		{3, false, 0},
		{0, true, 0},
		{1, true, 0},
	}
	for _, tt := range tests {
		if got := FreshnessScore(tt.approaches, tt.breached); got != tt.want {
			t.Errorf("FreshnessScore(%d,%v)=%v want %v", tt.approaches, tt.breached, got, tt.want)
		}
	}
}

func TestZoneBelowThresholdDropped(t *testing.T) {
	d := Draft{Pattern: models.PatternDBR, Strength: 1, TimeAtBase: 2}
	if _, ok := d.Zone("TCS.NS", "1d", FreshnessStale, day0); ok {
		t.Fatalf("score 3 must be rejected")
	}
	if z, ok := d.Zone("TCS.NS", "1d", FreshnessTested, day0); !ok || z.TradeScore != 4.5 {
		t.Fatalf("score 4.5 must be accepted")
	}
}

func TestScanForwardFindsSequentialZones(t *testing.T) {
	cs := []models.Candle{bar(0, 50, 50, 50, 50)} // flat candle is skipped
	cs = append(cs, dbrSeries(1)...)
	cs = append(cs, bar(5, 103, 105, 102, 104)) // weak candle between windows
	cs = append(cs, dbrSeries(6)...)

	drafts := ScanForward(cs)
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
	if drafts[0].LegInIndex != 1 || drafts[0].LegOutIndex != 4 {
		t.Fatalf("first window %d..%d", drafts[0].LegInIndex, drafts[0].LegOutIndex)
	}
	if drafts[1].LegInIndex != 6 || drafts[1].LegOutIndex != 9 {
		t.Fatalf("second window %d..%d", drafts[1].LegInIndex, drafts[1].LegOutIndex)
	}
	if !drafts[0].LegOutDate.Before(drafts[1].LegOutDate) {
		t.Fatalf("drafts must be in ascending date order")
	}
}

func TestScanForwardLegInWithoutBase(t *testing.T) {
	cs := []models.Candle{
		bar(0, 100, 102, 89, 90), // leg-in followed by another strong candle
	}
	cs = append(cs, dbrSeries(1)...)
	drafts := ScanForward(cs)
	if len(drafts) != 1 || drafts[0].LegInIndex != 1 {
		t.Fatalf("expected scan to resume right after the baseless leg-in, got %+v", drafts)
	}
}

func TestScanBackwardOnTargetDay(t *testing.T) {
	cs := append([]models.Candle{bar(-1, 97, 99, 96, 98)}, dbrSeries(0)...)
	idx, ok := FindDay(cs, day0.AddDate(0, 0, 3))
	if !ok || idx != 4 {
		t.Fatalf("FindDay idx=%d ok=%v", idx, ok)
	}
	d, ok := ScanBackward(cs, idx)
	if !ok {
		t.Fatalf("expected zone ending on target day")
	}
	if d.LegInIndex != 1 || d.BaseCount != 2 || d.Pattern != models.PatternDBR {
		t.Fatalf("unexpected draft %+v", d)
	}
	fwd := ScanForward(cs)
	if len(fwd) != 1 || fwd[0].ProximalLine != d.ProximalLine || fwd[0].DistalLine != d.DistalLine {
		t.Fatalf("forward and backward scans disagree: %+v vs %+v", fwd, d)
	}
}

func TestFindDayMissing(t *testing.T) {
	if _, ok := FindDay(dbrSeries(0), day0.AddDate(0, 0, 30)); ok {
		t.Fatalf("expected no candle for day")
	}
}

func TestTouches(t *testing.T) {
	origin := day0
	cs := []models.Candle{
		bar(0, 95, 104, 94, 103), // origin, overlaps but skipped
		bar(1, 100, 101, 95, 99), // above the zone
		bar(2, 96, 97, 91, 95),   // dips into the zone
		bar(3, 95, 96, 88.5, 93), // wicks through distal, closes inside
		bar(4, 93, 94, 87, 88),   // closes below distal
		bar(5, 88, 92, 85, 90),   // never reached
	}

	approaches, breached := Touches(cs, 92, 89, origin)
	if !breached {
		t.Fatalf("expected breach")
	}
	if approaches != 2 {
		t.Fatalf("expected 2 approaches before breach, got %d", approaches)
	}

	approaches, breached = Touches(cs[:4], 92, 89, origin)
	if breached || approaches != 2 {
		t.Fatalf("expected 2 approaches without breach, got %d %v", approaches, breached)
	}
	if FreshnessScore(approaches, breached) != FreshnessTested {
		t.Fatalf("expected tested score")
	}
}
