package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Sink names accepted in SDG_SINKS.
const (
	SinkConsole  = "console"
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	MetadataURL string
	DataURL     string
	TierFilter  string
	HTTPTimeout time.Duration

	// TolerateMissingPath lets indicators without a "series" array (and
	// responses without "data") contribute zero rows instead of failing.
	TolerateMissingPath bool

	// CodesFromTierFilter extracts series codes from the tier-filtered table
	// instead of the full metadata table.
	CodesFromTierFilter bool

	Sinks          []string
	ConsoleMaxRows int

	KafkaBrokers     []string
	KafkaTopicPrefix string

	PostgresDSN string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	PullInterval   time.Duration
	PullMaxBackoff time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	httpTimeout, err := parsePositiveDuration("SDG_HTTP_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	pullInterval, err := parsePositiveDuration("PULL_INTERVAL", "24h")
	if err != nil {
		return nil, err
	}
	pullMaxBackoff, err := parsePositiveDuration("PULL_MAX_BACKOFF", "5m")
	if err != nil {
		return nil, err
	}

	tolerate, err := parseBool("SDG_TOLERATE_MISSING_PATH", true)
	if err != nil {
		return nil, err
	}
	codesFromTier, err := parseBool("SDG_CODES_FROM_TIER_FILTER", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		MetadataURL:         sharedcfg.EnvOrDefault("SDG_METADATA_URL", "https://unstats.un.org/SDGAPI/v1/sdg/Indicator/List"),
		DataURL:             sharedcfg.EnvOrDefault("SDG_DATA_URL", "https://unstats.un.org/SDGAPI/v1/sdg/Series/Data"),
		TierFilter:          sharedcfg.EnvOrDefault("SDG_TIER_FILTER", "1"),
		HTTPTimeout:         httpTimeout,
		TolerateMissingPath: tolerate,
		CodesFromTierFilter: codesFromTier,
		Sinks:               ParseList(sharedcfg.EnvOrDefault("SDG_SINKS", SinkConsole)),
		ConsoleMaxRows:      parseConsoleMaxRows(),
		KafkaBrokers:        ParseList(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopicPrefix:    sharedcfg.EnvOrDefault("KAFKA_TOPIC_PREFIX", "sdg."),
		PostgresDSN:         os.Getenv("POSTGRES_DSN"),
		HTTPAddr:            sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:            sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:     shutdownTimeout,
		PullInterval:        pullInterval,
		PullMaxBackoff:      pullMaxBackoff,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. Callers that override fields after
// Load (CLI flags) should call it again.
func (c *Config) Validate() error {
	if c.MetadataURL == "" {
		return errors.New("SDG_METADATA_URL is required")
	}
	if c.DataURL == "" {
		return errors.New("SDG_DATA_URL is required")
	}
	if len(c.Sinks) == 0 {
		return errors.New("SDG_SINKS is required")
	}
	for _, s := range c.Sinks {
		switch s {
		case SinkConsole:
		case SinkKafka:
			if len(c.KafkaBrokers) == 0 {
				return errors.New("KAFKA_BROKERS is required for the kafka sink")
			}
		case SinkPostgres:
			if c.PostgresDSN == "" {
				return errors.New("POSTGRES_DSN is required for the postgres sink")
			}
		default:
			return errors.New("invalid SDG_SINKS entry: " + s)
		}
	}
	return nil
}

// ParseList splits a comma-separated value, dropping blanks.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New("invalid " + key)
	}
	return b, nil
}

func parseConsoleMaxRows() int {
	if s := os.Getenv("CONSOLE_MAX_ROWS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 20
}
