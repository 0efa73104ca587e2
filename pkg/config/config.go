package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"ZoneScan/pkg/util"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SlowThreshold   time.Duration `yaml:"slow_threshold"`
		ScanRateLimit   struct {
			Burst     float64 `yaml:"burst"`
			PerSecond float64 `yaml:"per_second"`
		} `yaml:"scan_rate_limit"`
	} `yaml:"server"`
	Provider struct {
		BaseURL      string        `yaml:"base_url"`
		Timeout      time.Duration `yaml:"timeout"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
		MaxAttempts  int           `yaml:"max_attempts"`
		RetryDelay   time.Duration `yaml:"retry_delay"`
	} `yaml:"provider"`
	Cache struct {
		Mode       string        `yaml:"mode"`
		CandleTTL  time.Duration `yaml:"candle_ttl"`
		ZoneMaxAge time.Duration `yaml:"zone_max_age"`
		MemorySize int           `yaml:"memory_size"`
	} `yaml:"cache"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		PoolSize int           `yaml:"pool_size"`
		MinIdle  int           `yaml:"min_idle"`
		Timeout  time.Duration `yaml:"timeout"`
		Prefix   string        `yaml:"prefix"`
	} `yaml:"redis"`
	Store struct {
		Backend string `yaml:"backend"`
		Table   string `yaml:"table"`
	} `yaml:"store"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		ZonesTopic    string   `yaml:"zones_topic"`
		CommandsTopic string   `yaml:"commands_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Detector struct {
		LookbackDays int           `yaml:"lookback_days"`
		MinCandles   int           `yaml:"min_candles"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"detector"`
	Scanner struct {
		Tickers      []string      `yaml:"tickers"`
		BatchSize    int           `yaml:"batch_size"`
		BatchDelay   time.Duration `yaml:"batch_delay"`
		LookbackDays int           `yaml:"lookback_days"`
		MinCandles   int           `yaml:"min_candles"`
	} `yaml:"scanner"`
	Scheduler struct {
		Enabled       bool          `yaml:"enabled"`
		DailyScanCron string        `yaml:"daily_scan_cron"`
		TimeFrames    []string      `yaml:"time_frames"`
		LockTTL       time.Duration `yaml:"lock_ttl"`
	} `yaml:"scheduler"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Parse decodes YAML and fills unset fields with defaults.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

// LoadWithEnv loads an optional .env file, the YAML config, and then applies
// environment overrides before validating.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("YAHOO_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitTrim(v, ",")
	}
	if v := getenv("SCAN_TICKERS"); v != "" {
		c.Scanner.Tickers = util.SplitTrim(v, ",")
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://query1.finance.yahoo.com"
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 20 * time.Second
	}
	if c.Provider.FetchTimeout == 0 {
		c.Provider.FetchTimeout = 15 * time.Second
	}
	if c.Provider.MaxAttempts == 0 {
		c.Provider.MaxAttempts = 3
	}
	if c.Provider.RetryDelay == 0 {
		c.Provider.RetryDelay = time.Second
	}
	if c.Cache.Mode == "" {
		c.Cache.Mode = "strict"
	}
	if c.Cache.CandleTTL == 0 {
		c.Cache.CandleTTL = 15 * time.Minute
	}
	if c.Cache.ZoneMaxAge == 0 {
		c.Cache.ZoneMaxAge = 24 * time.Hour
	}
	if c.Cache.MemorySize == 0 {
		c.Cache.MemorySize = 2000
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "clickhouse"
	}
	if c.Store.Table == "" {
		c.Store.Table = "zones"
	}
	if c.Kafka.ZonesTopic == "" {
		c.Kafka.ZonesTopic = "zones.accepted"
	}
	if c.Kafka.CommandsTopic == "" {
		c.Kafka.CommandsTopic = "zones.commands"
	}
	if c.Detector.LookbackDays == 0 {
		c.Detector.LookbackDays = 365
	}
	if c.Detector.MinCandles == 0 {
		c.Detector.MinCandles = 10
	}
	if c.Detector.Timeout == 0 {
		c.Detector.Timeout = 2 * time.Minute
	}
	if c.Scanner.BatchSize == 0 {
		c.Scanner.BatchSize = 5
	}
	if c.Scanner.BatchDelay == 0 {
		c.Scanner.BatchDelay = time.Second
	}
	if c.Scanner.LookbackDays == 0 {
		c.Scanner.LookbackDays = 10
	}
	if c.Scanner.MinCandles == 0 {
		c.Scanner.MinCandles = 3
	}
	if c.Scheduler.DailyScanCron == "" {
		c.Scheduler.DailyScanCron = "30 16 * * 1-5"
	}
	if len(c.Scheduler.TimeFrames) == 0 {
		c.Scheduler.TimeFrames = []string{"1d"}
	}
	if c.Scheduler.LockTTL == 0 {
		c.Scheduler.LockTTL = 30 * time.Minute
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Cache.Mode != "strict" && c.Cache.Mode != "recompute" {
		return fmt.Errorf("cache.mode must be 'strict' or 'recompute', got '%s'", c.Cache.Mode)
	}
	switch c.Store.Backend {
	case "memory":
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for the clickhouse store")
		}
		if c.ClickHouse.Database == "" {
			return fmt.Errorf("clickhouse.database is required for the clickhouse store")
		}
	default:
		return fmt.Errorf("store.backend must be 'clickhouse' or 'memory', got '%s'", c.Store.Backend)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if len(c.Scanner.Tickers) == 0 {
		return fmt.Errorf("scanner.tickers cannot be empty")
	}
	if c.Provider.MaxAttempts < 1 {
		return fmt.Errorf("provider.max_attempts must be at least 1")
	}
	for _, tf := range c.Scheduler.TimeFrames {
		if tf != "1d" && tf != "1wk" && tf != "1mo" {
			return fmt.Errorf("scheduler.time_frames: unsupported time frame '%s'", tf)
		}
	}
	return nil
}
