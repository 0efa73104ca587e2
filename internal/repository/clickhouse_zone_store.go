package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ZoneScan/internal/domain/models"
	drepo "ZoneScan/internal/domain/repository"
	pkgch "ZoneScan/pkg/clickhouse"
	applogger "ZoneScan/pkg/logger"
)

const (
	// DefaultZoneTable holds detected zones.
	DefaultZoneTable = "zones"
	// ZoneTTLDays is how long a zone lives after it was created.
	ZoneTTLDays = 90

	insertChunkSize = 1000
	defaultLimit    = 5000
)

const zoneColumns = "ticker, time_frame, type, pattern, proximal_line, distal_line, trade_score, freshness, strength, time_at_base, leg_out_date, created_at, source"

// ZoneSchema returns the DDL for the zones table.
func ZoneSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            ticker        LowCardinality(String),
            time_frame    LowCardinality(String),
            type          LowCardinality(String),
            pattern       LowCardinality(String),
            proximal_line Float64,
            distal_line   Float64,
            trade_score   Float64,
            freshness     Float64,
            strength      UInt8,
            time_at_base  UInt8,
            leg_out_date  DateTime('Asia/Kolkata'),
            created_at    DateTime64(3, 'UTC'),
            source        LowCardinality(String)
        )
        ENGINE = MergeTree
        ORDER BY (ticker, time_frame, type, leg_out_date)
        TTL toDateTime(created_at) + INTERVAL %d DAY
    `, table, ZoneTTLDays)}
}

// CHZoneStore implements ZoneStore backed by ClickHouse.
type CHZoneStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHZoneStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHZoneStore {
	if table == "" {
		table = DefaultZoneTable
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHZoneStore{db: ch.DB(), table: table, l: l}
}

// InsertMany writes zones in chunks. A failure mid-way leaves earlier chunks written.
func (s *CHZoneStore) InsertMany(ctx context.Context, zones []models.Zone) error {
	start := time.Now()
	for _, stmt := range buildInserts(s.table, zones, insertChunkSize) {
		if _, err := s.db.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			s.l.Error("clickhouse insert_zones error",
				applogger.String("table", s.table),
				applogger.Int("rows", len(zones)),
				applogger.Error(err),
			)
			return fmt.Errorf("insert zones: %w", err)
		}
	}
	s.l.Debug("clickhouse insert_zones ok",
		applogger.Int("rows", len(zones)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHZoneStore) Find(ctx context.Context, f drepo.ZoneFilter) ([]models.Zone, error) {
	q, args := buildFind(s.table, f)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse find_zones query error", applogger.String("table", s.table), applogger.Error(err))
		return nil, fmt.Errorf("find zones: %w", err)
	}
	defer rows.Close()

	out := make([]models.Zone, 0)
	for rows.Next() {
		var (
			z                 models.Zone
			zt, pattern, src  string
			strength, atBase  uint8
			legOut, createdAt time.Time
		)
		if err := rows.Scan(&z.Ticker, &z.TimeFrame, &zt, &pattern,
			&z.ProximalLine, &z.DistalLine, &z.TradeScore, &z.Freshness,
			&strength, &atBase, &legOut, &createdAt, &src); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		z.Type = models.ZoneType(zt)
		z.Pattern = models.Pattern(pattern)
		z.Strength = int(strength)
		z.TimeAtBase = int(atBase)
		z.LegOutDate = legOut
		z.CreatedAt = createdAt
		z.Source = models.ZoneSource(src)
		out = append(out, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHZoneStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHZoneStore) Close() error {
	return nil // pool owned by pkg/clickhouse
}

type statement struct {
	query string
	args  []interface{}
}

func buildInserts(table string, zones []models.Zone, chunk int) []statement {
	if chunk <= 0 {
		chunk = insertChunkSize
	}
	var out []statement
	for start := 0; start < len(zones); start += chunk {
		end := start + chunk
		if end > len(zones) {
			end = len(zones)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*13)
		for _, z := range zones[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				z.Ticker, z.TimeFrame, string(z.Type), string(z.Pattern),
				z.ProximalLine, z.DistalLine, z.TradeScore, z.Freshness,
				uint8(z.Strength), uint8(z.TimeAtBase), z.LegOutDate, z.CreatedAt,
				string(z.Source),
			)
		}
		out = append(out, statement{
			query: fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, zoneColumns, strings.Join(values, ", ")),
			args:  args,
		})
	}
	return out
}

func buildFind(table string, f drepo.ZoneFilter) (string, []interface{}) {
	var where []string
	var args []interface{}

	if f.Ticker != "" {
		where = append(where, "ticker = ?")
		args = append(args, f.Ticker)
	}
	if len(f.Tickers) > 0 {
		marks := make([]string, len(f.Tickers))
		for i, t := range f.Tickers {
			marks[i] = "?"
			args = append(args, t)
		}
		where = append(where, "ticker IN ("+strings.Join(marks, ", ")+")")
	}
	if f.TimeFrame != "" {
		where = append(where, "time_frame = ?")
		args = append(args, string(f.TimeFrame))
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, string(f.Source))
	}
	if !f.LegOutFrom.IsZero() {
		where = append(where, "leg_out_date >= ?")
		args = append(args, f.LegOutFrom)
	}
	if !f.LegOutTo.IsZero() {
		where = append(where, "leg_out_date < ?")
		args = append(args, f.LegOutTo)
	}
	if !f.CreatedAfter.IsZero() {
		where = append(where, "created_at > ?")
		args = append(args, f.CreatedAfter)
	}

	limit := f.Limit
	if limit <= 0 || limit > defaultLimit {
		limit = defaultLimit
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", zoneColumns, table)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY leg_out_date ASC, ticker ASC LIMIT %d", limit)
	return b.String(), args
}

var _ drepo.ZoneStore = (*CHZoneStore)(nil)
