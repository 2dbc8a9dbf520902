package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/vmanilo/paralimni/internal/platform/ss58"
)

const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	TestToken   string `env:"TEST_TOKEN"`

	RedisBreakerFailures int           `env:"REDIS_BREAKER_FAILURES" default:"5"`
	RedisBreakerDelay    time.Duration `env:"REDIS_BREAKER_DELAY" default:"30s"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" default:"100"`

	DefaultNetUID int    `env:"DEFAULT_NETUID" default:"-1"`
	DefaultHotkey string `env:"DEFAULT_HOTKEY"`

	CacheBackend        string        `env:"CACHE_BACKEND" default:"redis"`
	DividendCacheTTL    time.Duration `env:"DIVIDEND_CACHE_TTL" default:"2m"`
	DividendNegativeTTL time.Duration `env:"DIVIDEND_NEGATIVE_TTL" default:"0s"`
	ResolverDedupe      bool          `env:"RESOLVER_DEDUPE" default:"true"`

	ChainURL            string        `env:"CHAIN_URL"`
	LedgerMaxConcurrent int           `env:"LEDGER_MAX_CONCURRENT" default:"10"`
	LedgerMaxRetries    int           `env:"LEDGER_MAX_RETRIES" default:"3"`
	LedgerRetryBackoff  time.Duration `env:"LEDGER_RETRY_BACKOFF" default:"1s"`
	LedgerDialTimeout   time.Duration `env:"LEDGER_DIAL_TIMEOUT" default:"5s"`
	LedgerCallTimeout   time.Duration `env:"LEDGER_CALL_TIMEOUT" default:"10s"`

	DaturaAPIKey   string `env:"DATURA_API_KEY"`
	DaturaBaseURL  string `env:"DATURA_BASE_URL" default:"https://apis.datura.ai"`
	TweetDaysRange int    `env:"TWEET_DAYS_RANGE" default:"10"`
	TweetLimit     int    `env:"TWEET_LIMIT" default:"10"`

	ChutesAPIToken      string  `env:"CHUTES_API_TOKEN"`
	ChutesBaseURL       string  `env:"CHUTES_BASE_URL" default:"https://llm.chutes.ai/v1"`
	ChutesModel         string  `env:"CHUTES_MODEL" default:"unsloth/Llama-3.2-3B-Instruct"`
	ChutesMaxConcurrent int     `env:"CHUTES_MAX_CONCURRENT" default:"5"`
	ChutesMaxTokens     int     `env:"CHUTES_MAX_TOKENS" default:"64"`
	ChutesTemperature   float64 `env:"CHUTES_TEMPERATURE" default:"0.1"`

	KafkaBrokers      string `env:"KAFKA_BROKERS"`
	KafkaGroupID      string `env:"KAFKA_GROUP_ID" default:"tao-trade-workers"`
	TradeJobsTopic    string `env:"TRADE_JOBS_TOPIC" default:"tao.trade-jobs"`
	StakeActionsTopic string `env:"STAKE_ACTIONS_TOPIC" default:"tao.stake-actions"`
	LocalQueueSize    int    `env:"LOCAL_QUEUE_SIZE" default:"100"`
	TradeWorkers      int    `env:"TRADE_WORKERS" default:"2"`

	StakeUnitRao int64 `env:"STAKE_UNIT_RAO" default:"1000000"`
}

// Load reads .env (if present) and the environment, then validates the settings every binary needs.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// KafkaBrokerList splits KAFKA_BROKERS on commas. Empty means the in-process queue is used.
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for b := range strings.SplitSeq(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// ValidateServer checks the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	required := map[string]string{
		"DATABASE_URL":     c.DatabaseURL,
		"DATURA_API_KEY":   c.DaturaAPIKey,
		"CHUTES_API_TOKEN": c.ChutesAPIToken,
	}
	if c.CacheBackend == CacheBackendRedis {
		required["REDIS_URL"] = c.RedisURL
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if c.AppEnv == "production" {
		if mode := sslMode(c.DatabaseURL); mode == "disable" || mode == "allow" {
			return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
		}
	}

	return nil
}

// ValidateSentiment checks the settings needed to run the sentiment pipeline.
func (c *Config) ValidateSentiment() error {
	if c.DaturaAPIKey == "" {
		return errors.New("DATURA_API_KEY is required")
	}
	if c.ChutesAPIToken == "" {
		return errors.New("CHUTES_API_TOKEN is required")
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.ChainURL == "" {
		return errors.New("CHAIN_URL is required")
	}
	if cfg.DefaultHotkey == "" {
		return errors.New("DEFAULT_HOTKEY is required")
	}
	if !ss58.Valid(cfg.DefaultHotkey) {
		return errors.New("DEFAULT_HOTKEY must be a valid SS58 address")
	}
	if cfg.DefaultNetUID < 0 || cfg.DefaultNetUID > 65535 {
		return errors.New("DEFAULT_NETUID is required and must be between 0 and 65535")
	}

	if cfg.CacheBackend != CacheBackendRedis && cfg.CacheBackend != CacheBackendMemory {
		return fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheBackendRedis, CacheBackendMemory, cfg.CacheBackend)
	}
	if cfg.DividendCacheTTL <= 0 {
		return errors.New("DIVIDEND_CACHE_TTL must be positive")
	}
	if cfg.DividendNegativeTTL < 0 {
		return errors.New("DIVIDEND_NEGATIVE_TTL must not be negative")
	}
	if cfg.RedisBreakerDelay <= 0 {
		return errors.New("REDIS_BREAKER_DELAY must be positive")
	}

	positive := map[string]int{
		"LEDGER_MAX_CONCURRENT":  cfg.LedgerMaxConcurrent,
		"LEDGER_MAX_RETRIES":     cfg.LedgerMaxRetries,
		"CHUTES_MAX_CONCURRENT":  cfg.ChutesMaxConcurrent,
		"CHUTES_MAX_TOKENS":      cfg.ChutesMaxTokens,
		"TWEET_DAYS_RANGE":       cfg.TweetDaysRange,
		"TWEET_LIMIT":            cfg.TweetLimit,
		"LOCAL_QUEUE_SIZE":       cfg.LocalQueueSize,
		"TRADE_WORKERS":          cfg.TradeWorkers,
		"REDIS_BREAKER_FAILURES": cfg.RedisBreakerFailures,
	}
	for name, value := range positive {
		if value < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, value)
		}
	}

	if cfg.ChutesTemperature < 0 || cfg.ChutesTemperature > 2 {
		return fmt.Errorf("CHUTES_TEMPERATURE must be between 0 and 2, got %v", cfg.ChutesTemperature)
	}
	if cfg.StakeUnitRao < 0 {
		return errors.New("STAKE_UNIT_RAO must not be negative")
	}

	return nil
}

func sslMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Query().Get("sslmode"))
}
