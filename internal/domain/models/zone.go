package models

import "time"

// ZoneType is the side of a zone.
type ZoneType string

const (
	ZoneDemand ZoneType = "demand"
	ZoneSupply ZoneType = "supply"
)

// Pattern names the leg-in/base/leg-out structure of a zone.
type Pattern string

const (
	PatternDBR Pattern = "DBR" // drop-base-rally
	PatternRBR Pattern = "RBR" // rally-base-rally
	PatternRBD Pattern = "RBD" // rally-base-drop
	PatternDBD Pattern = "DBD" // drop-base-drop
)

// ZoneSource records which scan produced a zone. A full-history detection and a
// target-day scan can both emit the same zone, and each reads back only its own rows.
type ZoneSource string

const (
	SourceDetect  ZoneSource = "detect"
	SourceDayScan ZoneSource = "day_scan"
)

// Zone is a scored price area derived from a base between two strong candles.
// Zones are append-only: created once by a scan and expired by the store TTL.
type Zone struct {
	Ticker       string     `json:"ticker"`
	TimeFrame    string     `json:"timeFrame"`
	Type         ZoneType   `json:"type"`
	Pattern      Pattern    `json:"pattern"`
	ProximalLine float64    `json:"proximalLine"`
	DistalLine   float64    `json:"distalLine"`
	TradeScore   float64    `json:"tradeScore"`
	Freshness    float64    `json:"freshness"`
	Strength     int        `json:"strength"`
	TimeAtBase   int        `json:"timeAtBase"`
	LegOutDate   time.Time  `json:"legOutDate"`
	CreatedAt    time.Time  `json:"createdAt"`
	Source       ZoneSource `json:"source"`
}

// ScanResult is the aggregated output of a day scan.
type ScanResult struct {
	Total int    `json:"total"`
	Data  []Zone `json:"data"`
}

// NewScanResult wraps zones, never returning a nil data slice.
func NewScanResult(zones []Zone) *ScanResult {
	if zones == nil {
		zones = []Zone{}
	}
	return &ScanResult{Total: len(zones), Data: zones}
}
