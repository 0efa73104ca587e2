// Package zones holds the pure candlestick classification and scoring rules
// shared by the forward detector and the date-targeted day scanner.
package zones

import (
	"time"

	"ZoneScan/internal/domain/models"
	"ZoneScan/pkg/util"
)

const (
	// LegInRatio is the body/range ratio a leg-in candle must exceed.
	LegInRatio = 0.5
	// BaseRatio is the body/range ratio a base candle must stay below.
	BaseRatio = 0.5
	// MaxBaseCandles caps the base run.
	MaxBaseCandles = 5
	// AcceptScore is the minimum trade score for a zone to be kept.
	AcceptScore = 4.0
)

// Freshness scores.
const (
	FreshnessFresh  = 3.0
	FreshnessTested = 1.5
	FreshnessStale  = 0.0
)

// BodyRatio returns |close-open| / (high-low). ok is false for flat candles.
func BodyRatio(c models.Candle) (ratio float64, ok bool) {
	r := c.Range()
	if r <= 0 {
		return 0, false
	}
	return c.Body() / r, true
}

// IsLegIn reports a strong directional candle.
func IsLegIn(c models.Candle) bool {
	r, ok := BodyRatio(c)
	return ok && r > LegInRatio
}

// IsBase reports an indecision/consolidation candle.
func IsBase(c models.Candle) bool {
	r, ok := BodyRatio(c)
	return ok && r < BaseRatio
}

// Draft is a classified candidate before freshness is known.
type Draft struct {
	Pattern      models.Pattern
	ProximalLine float64
	DistalLine   float64
	Strength     int
	TimeAtBase   int
	BaseCount    int
	LegInIndex   int
	LegOutIndex  int
	LegOutDate   time.Time
}

// Classify checks the structure candles[legIn], candles[legIn+1:legOut] (base),
// candles[legOut] and, when it is a demand zone, returns its boundaries and the
// freshness-independent score terms.
func Classify(candles []models.Candle, legIn, legOut int) (Draft, bool) {
	if legIn < 0 || legOut >= len(candles) || legOut-legIn < 2 {
		return Draft{}, false
	}
	baseCount := legOut - legIn - 1
	if baseCount > MaxBaseCandles {
		return Draft{}, false
	}

	in := candles[legIn]
	out := candles[legOut]
	if !IsLegIn(in) {
		return Draft{}, false
	}
	if !out.IsGreen() || out.Close <= in.High {
		return Draft{}, false
	}

	var pattern models.Pattern
	switch {
	case in.IsRed():
		pattern = models.PatternDBR
	case in.IsGreen():
		pattern = models.PatternRBR
	default:
		return Draft{}, false
	}

	base := candles[legIn+1 : legOut]
	proximal, distal := bodyTop(base[0]), base[0].Low
	for _, c := range base {
		if !IsBase(c) {
			return Draft{}, false
		}
		if top := bodyTop(c); top > proximal {
			proximal = top
		}
		if c.Low < distal {
			distal = c.Low
		}
	}
	if !out.Date.After(base[len(base)-1].Date) {
		return Draft{}, false
	}

	return Draft{
		Pattern:      pattern,
		ProximalLine: proximal,
		DistalLine:   distal,
		Strength:     StrengthScore(out, base[len(base)-1]),
		TimeAtBase:   TimeAtBaseScore(baseCount),
		BaseCount:    baseCount,
		LegInIndex:   legIn,
		LegOutIndex:  legOut,
		LegOutDate:   out.Date,
	}, true
}

// StrengthScore is 2 when the leg-out range exceeds twice the last base range.
func StrengthScore(legOut, lastBase models.Candle) int {
	if legOut.Range() > 2*lastBase.Range() {
		return 2
	}
	return 1
}

// TimeAtBaseScore rewards short consolidations.
func TimeAtBaseScore(baseCount int) int {
	switch {
	case baseCount <= 3:
		return 2
	case baseCount <= 5:
		return 1
	default:
		return 0
	}
}

// Touches counts candles after origin whose range overlaps [distal, proximal].
// A close below distal marks the zone breached and ends the walk.
func Touches(candles []models.Candle, proximal, distal float64, origin time.Time) (approaches int, breached bool) {
	for _, c := range candles {
		if !c.Date.After(origin) {
			continue
		}
		if c.Close < distal {
			return approaches, true
		}
		if c.Low <= proximal && c.High >= distal {
			approaches++
		}
	}
	return approaches, false
}

// FreshnessScore maps the approach count and breach flag to a freshness score.
func FreshnessScore(approaches int, breached bool) float64 {
	switch {
	case breached:
		return FreshnessStale
	case approaches == 0:
		return FreshnessFresh
	case approaches <= 2:
		return FreshnessTested
	default:
		return FreshnessStale
	}
}

// Zone completes a draft with its freshness. ok is false below AcceptScore.
func (d Draft) Zone(ticker, timeFrame string, freshness float64, createdAt time.Time) (models.Zone, bool) {
	score := freshness + float64(d.Strength) + float64(d.TimeAtBase)
	if score < AcceptScore {
		return models.Zone{}, false
	}
	return models.Zone{
		Ticker:       ticker,
		TimeFrame:    timeFrame,
		Type:         models.ZoneDemand,
		Pattern:      d.Pattern,
		ProximalLine: d.ProximalLine,
		DistalLine:   d.DistalLine,
		TradeScore:   score,
		Freshness:    freshness,
		Strength:     d.Strength,
		TimeAtBase:   d.TimeAtBase,
		LegOutDate:   d.LegOutDate,
		CreatedAt:    createdAt,
	}, true
}

// ScanForward walks candles left to right and returns every structurally valid
// draft, in ascending date order. Windows never overlap.
func ScanForward(candles []models.Candle) []Draft {
	var drafts []Draft
	n := len(candles)
	i := 0
	for i < n {
		if !IsLegIn(candles[i]) {
			i++
			continue
		}
		j := i + 1
		for j < n && j-(i+1) < MaxBaseCandles && IsBase(candles[j]) {
			j++
		}
		if j == i+1 {
			i++
			continue
		}
		if j >= n {
			break
		}
		d, ok := Classify(candles, i, j)
		if !ok {
			i = j
			continue
		}
		drafts = append(drafts, d)
		i = j + 1
	}
	return drafts
}

// LegOutLookback is how many prior candles the leg-out must clear on a day scan.
const LegOutLookback = 3

// ScanBackward looks for a pattern whose leg-out is candles[legOut], walking the
// base backwards from it.
func ScanBackward(candles []models.Candle, legOut int) (Draft, bool) {
	if legOut < 2 || legOut >= len(candles) {
		return Draft{}, false
	}
	out := candles[legOut]
	if !out.IsGreen() {
		return Draft{}, false
	}
	priorHigh := 0.0
	for k := legOut - 1; k >= 0 && k >= legOut-LegOutLookback; k-- {
		if candles[k].High > priorHigh {
			priorHigh = candles[k].High
		}
	}
	if out.Close <= priorHigh {
		return Draft{}, false
	}

	j := legOut - 1
	for j >= 0 && legOut-1-j < MaxBaseCandles && IsBase(candles[j]) {
		j--
	}
	if j == legOut-1 || j < 0 {
		return Draft{}, false
	}
	return Classify(candles, j, legOut)
}

// FindDay returns the index of the last candle dated within [day, day+1d).
func FindDay(candles []models.Candle, day time.Time) (int, bool) {
	for i := len(candles) - 1; i >= 0; i-- {
		if util.SameDay(candles[i].Date, day) {
			return i, true
		}
	}
	return -1, false
}

func bodyTop(c models.Candle) float64 {
	if c.Close > c.Open {
		return c.Close
	}
	return c.Open
}
