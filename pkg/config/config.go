package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	xutil "ZeroDTE/pkg/util"
)

// AllowedSigmaMultipliers are the multipliers a recommendation may be asked for.
var AllowedSigmaMultipliers = []float64{1.1, 1.3, 1.5}

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Logging     LoggingConfig    `yaml:"logging"`
	Trading     TradingConfig    `yaml:"trading"`
	MarketData  MarketDataConfig `yaml:"market_data"`
	Calendar    CalendarConfig   `yaml:"calendar"`
	Finnhub     FinnhubConfig    `yaml:"finnhub"`
	Redis       RedisConfig      `yaml:"redis"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	// per client address, applied to /api routes
	RequestsPerMinute int `yaml:"requests_per_minute" default:"60" validate:"gte=0"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" default:"/metrics"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
	// aggregate error lines and ship them to kafka.topics.logs
	Collect           bool          `yaml:"collect"`
	CollectorInterval time.Duration `yaml:"collector_interval" default:"30s"`
}

type TradingConfig struct {
	Capital         float64  `yaml:"capital" default:"10000" validate:"gt=0"`
	SigmaMultiplier float64  `yaml:"sigma_multiplier" default:"1.3"`
	Timezone        string   `yaml:"timezone" default:"Europe/Madrid" validate:"required"`
	EventKeywords   []string `yaml:"event_keywords"`
}

// Location loads the trading timezone.
func (t TradingConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, fmt.Errorf("trading.timezone %q: %w", t.Timezone, err)
	}
	return loc, nil
}

type MarketDataConfig struct {
	Backend           string            `yaml:"backend" default:"yahoo" validate:"oneof=yahoo clickhouse"`
	BaseURL           string            `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"url"`
	Timeout           time.Duration     `yaml:"timeout" default:"10s"`
	RequestsPerSecond float64           `yaml:"requests_per_second" default:"5" validate:"gt=0"`
	Burst             int               `yaml:"burst" default:"5" validate:"gt=0"`
	BreakerFailures   uint32            `yaml:"breaker_failures" default:"5" validate:"gt=0"`
	BreakerCooldown   time.Duration     `yaml:"breaker_cooldown" default:"30s"`
	Tickers           map[string]string `yaml:"tickers"` // instrument -> provider ticker overrides
	// live tape overlays Last with ticks fresher than this
	TapeMaxAge time.Duration `yaml:"tape_max_age" default:"15s"`
}

type CalendarConfig struct {
	Disabled bool          `yaml:"disabled"` // no feed means no event gate
	BaseURL  string        `yaml:"base_url" default:"https://finnhub.io/api/v1" validate:"url"`
	Timeout  time.Duration `yaml:"timeout" default:"5s"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"15m"`
}

type FinnhubConfig struct {
	APIKey         string        `yaml:"api_key"`
	StreamEnabled  bool          `yaml:"stream_enabled"`
	WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
	StreamSymbols  []string      `yaml:"stream_symbols"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"zerodte"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	RequiredAcks int      `yaml:"required_acks" default:"1"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Topics       struct {
		Requests string `yaml:"requests" default:"zerodte.analysis.requests"`
		Results  string `yaml:"results" default:"zerodte.analysis.results"`
		Logs     string `yaml:"logs" default:"zerodte.logs"`
	} `yaml:"topics"`
	Producer struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"zerodte-desk"`
		Workers    int           `yaml:"workers" default:"2" validate:"gt=0"`
		BufferSize int           `yaml:"buffer_size" default:"32"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Host        string        `yaml:"host" default:"localhost"`
	Port        int           `yaml:"port" default:"9000"`
	Database    string        `yaml:"database" default:"market"`
	User        string        `yaml:"user" default:"default"`
	Password    string        `yaml:"password"`
	Table       string        `yaml:"table" default:"bars"`
	UseHTTP     bool          `yaml:"use_http"`
	DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout time.Duration `yaml:"read_timeout" default:"30s"`
	// closes used for the regime and RSI series
	Lookback int `yaml:"lookback" default:"390" validate:"gt=0"`
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment lookups.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := getenv("TRADING_CAPITAL"); v != "" {
		c.Trading.Capital = xutil.ParseFloatDefault(v, c.Trading.Capital)
	}
	if v := getenv("SIGMA_MULTIPLIER"); v != "" {
		c.Trading.SigmaMultiplier = xutil.ParseFloatDefault(v, c.Trading.SigmaMultiplier)
	}
	if v := getenv("TRADING_TIMEZONE"); v != "" {
		c.Trading.Timezone = v
	}
	if v := getenv("MARKET_DATA_BACKEND"); v != "" {
		c.MarketData.Backend = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = xutil.SplitCSV(v)
		c.Kafka.Enabled = len(c.Kafka.Brokers) > 0
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		c.Server.Port = xutil.ParseIntDefault(v, c.Server.Port)
	}
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if !ValidSigmaMultiplier(c.Trading.SigmaMultiplier) {
		return fmt.Errorf("trading.sigma_multiplier must be one of %v, got %v", AllowedSigmaMultipliers, c.Trading.SigmaMultiplier)
	}
	if _, err := c.Trading.Location(); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Finnhub.StreamEnabled && c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required for the live stream")
	}
	return nil
}

// ValidSigmaMultiplier reports whether m is one of the allowed multipliers.
func ValidSigmaMultiplier(m float64) bool {
	for _, a := range AllowedSigmaMultipliers {
		if m == a {
			return true
		}
	}
	return false
}
