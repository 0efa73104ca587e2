package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimal = `
store:
  backend: memory
scanner:
  tickers: [RELIANCE.NS, TCS.NS]
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.Cache.Mode != "strict" {
		t.Fatalf("cache.mode = %q, want strict", c.Cache.Mode)
	}
	if c.Provider.MaxAttempts != 3 || c.Provider.RetryDelay != time.Second {
		t.Fatalf("provider defaults = %d/%s", c.Provider.MaxAttempts, c.Provider.RetryDelay)
	}
	if c.Scanner.BatchSize != 5 || c.Scanner.LookbackDays != 10 || c.Detector.LookbackDays != 365 || c.Detector.Timeout != 2*time.Minute {
		t.Fatalf("scan defaults not applied: %+v %+v", c.Scanner, c.Detector)
	}
	if c.Scheduler.TimeFrames[0] != "1d" {
		t.Fatalf("scheduler.time_frames = %v", c.Scheduler.TimeFrames)
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatal(err)
	}
	env := map[string]string{
		"YAHOO_BASE_URL":  "http://fake",
		"CLICKHOUSE_HOST": "ch",
		"REDIS_ADDR":      "redis:6379",
		"KAFKA_BROKERS":   "k1:9092, k2:9092",
		"SCAN_TICKERS":    "INFY.NS,,ITC.NS",
		"LOG_LEVEL":       "DEBUG",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	if c.Provider.BaseURL != "http://fake" || c.ClickHouse.Host != "ch" {
		t.Fatalf("overrides not applied: %s %s", c.Provider.BaseURL, c.ClickHouse.Host)
	}
	if !c.Redis.Enabled || c.Redis.Addr != "redis:6379" {
		t.Fatalf("redis = %+v", c.Redis)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if strings.Join(c.Scanner.Tickers, ",") != "INFY.NS,ITC.NS" {
		t.Fatalf("tickers = %v", c.Scanner.Tickers)
	}
	if c.Log.Level != "debug" {
		t.Fatalf("log.level = %q", c.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad cache mode", minimal + "cache:\n  mode: lazy\n", "cache.mode"},
		{"bad backend", "store:\n  backend: mongo\nscanner:\n  tickers: [A.NS]\n", "store.backend"},
		{"clickhouse without host", "scanner:\n  tickers: [A.NS]\n", "clickhouse.host"},
		{"no tickers", "store:\n  backend: memory\n", "scanner.tickers"},
		{"kafka without brokers", minimal + "kafka:\n  enabled: true\n", "kafka.brokers"},
		{"bad time frame", minimal + "scheduler:\n  time_frames: [4h]\n", "scheduler.time_frames"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Parse([]byte(tc.yaml))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			err = c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadShippedConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Scanner.Tickers) == 0 || c.Store.Backend != "clickhouse" {
		t.Fatalf("unexpected shipped config: backend=%s tickers=%d", c.Store.Backend, len(c.Scanner.Tickers))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
