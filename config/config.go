// Package config loads and validates the platform's static configuration:
// plan/WAL directory layout, WAL segment sizing, the set of engine
// bindings persisters apply trains to, and the retry policy those
// persisters use. Grounded on the teacher's config package (Config,
// SafeConfig, security validation), trimmed of its NATS KV dynamic-config
// machinery since this module's configuration is load-once-at-startup,
// and widened to load JSON, YAML, or TOML via viper instead of the
// teacher's hand-rolled JSON-only loader.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/data-tracks/DataTracks/errors"
	"github.com/data-tracks/DataTracks/pkg/retry"
)

// EngineBinding names one (engine_id, definition_id) persister's target
// store and connection string.
type EngineBinding struct {
	EngineID     string `mapstructure:"engine_id"`
	DefinitionID string `mapstructure:"definition_id"`
	Kind         string `mapstructure:"kind"` // "mongodb" | "postgres" | "neo4j" | "sqlite"
	DSN          string `mapstructure:"dsn"`
}

// WALConfig controls the write-ahead log's on-disk layout.
type WALConfig struct {
	Dir             string `mapstructure:"dir"`
	SegmentMaxBytes int64  `mapstructure:"segment_max_bytes"`
	DelayRingSize   int    `mapstructure:"delay_ring_size"`
}

// RetryConfig is the JSON/YAML/TOML-facing mirror of retry.Config (that
// package's Config has no struct tags of its own, since it is also used
// programmatically with Go literals).
type RetryConfig struct {
	MaxAttempts  int     `mapstructure:"max_attempts"`
	InitialDelay string  `mapstructure:"initial_delay"`
	MaxDelay     string  `mapstructure:"max_delay"`
	Multiplier   float64 `mapstructure:"multiplier"`
	AddJitter    bool    `mapstructure:"add_jitter"`
}

// ToRetryConfig parses the duration strings and returns the pkg/retry
// Config this platform's persister pool actually runs with.
func (r RetryConfig) ToRetryConfig() (retry.Config, error) {
	initial, err := time.ParseDuration(r.InitialDelay)
	if err != nil {
		return retry.Config{}, fmt.Errorf("config: retry.initial_delay: %w", err)
	}
	maxDelay, err := time.ParseDuration(r.MaxDelay)
	if err != nil {
		return retry.Config{}, fmt.Errorf("config: retry.max_delay: %w", err)
	}
	return retry.Config{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: initial,
		MaxDelay:     maxDelay,
		Multiplier:   r.Multiplier,
		AddJitter:    r.AddJitter,
	}, nil
}

// TelemetryConfig sizes the telemetry bus's per-subscriber buffers.
type TelemetryConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// IngressBinding attaches a WebSocket ingress driver to an ingress
// station's external source line.
type IngressBinding struct {
	StationID string `mapstructure:"station_id"`
	Path      string `mapstructure:"path"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// EgressBinding attaches a WebSocket egress driver broadcasting an
// egress station's emitted trains.
type EgressBinding struct {
	StationID string `mapstructure:"station_id"`
	Path      string `mapstructure:"path"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// Config is the complete static configuration for a datatracks process.
type Config struct {
	PlanDir     string           `mapstructure:"plan_dir"`
	OffsetsDB   string           `mapstructure:"offsets_db"`
	WAL         WALConfig        `mapstructure:"wal"`
	Engines     []EngineBinding  `mapstructure:"engines"`
	Ingress     []IngressBinding `mapstructure:"ingress"`
	Egress      []EgressBinding  `mapstructure:"egress"`
	Retry       RetryConfig      `mapstructure:"retry"`
	Telemetry   TelemetryConfig  `mapstructure:"telemetry"`
	LogLevel    string           `mapstructure:"log_level"`
	LogFormat   string           `mapstructure:"log_format"` // "json" | "text"
	MetricsPort int              `mapstructure:"metrics_port"`
}

// Default returns a Config with sane defaults for local development.
func Default() Config {
	return Config{
		PlanDir:   "./plans",
		OffsetsDB: "./offsets.db",
		WAL: WALConfig{
			Dir:             "./wal",
			SegmentMaxBytes: 64 << 20,
			DelayRingSize:   4096,
		},
		Retry: RetryConfig{
			MaxAttempts:  5,
			InitialDelay: "100ms",
			MaxDelay:     "30s",
			Multiplier:   2.0,
			AddJitter:    true,
		},
		Telemetry:   TelemetryConfig{BufferSize: 256},
		LogLevel:    "info",
		LogFormat:   "text",
		MetricsPort: 9090,
	}
}

// Load reads configuration from path (json/yaml/yml/toml, detected by
// extension) via viper, applies DATATRACKS_-prefixed environment
// variable overrides (e.g. DATATRACKS_WAL_DIR overrides wal.dir), merges
// onto Default(), and validates the result. An empty path loads
// Default() plus env overrides only.
func Load(path string) (Config, error) {
	if path != "" {
		if err := validateConfigPath(path); err != nil {
			return Config{}, errors.WrapInvalid(err, "config", "Load", "validate config path")
		}
	}

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("DATATRACKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.WrapInvalid(err, "config", "Load", "read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.WrapInvalid(err, "config", "Load", "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("plan_dir", d.PlanDir)
	v.SetDefault("offsets_db", d.OffsetsDB)
	v.SetDefault("wal.dir", d.WAL.Dir)
	v.SetDefault("wal.segment_max_bytes", d.WAL.SegmentMaxBytes)
	v.SetDefault("wal.delay_ring_size", d.WAL.DelayRingSize)
	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_delay", d.Retry.InitialDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("retry.multiplier", d.Retry.Multiplier)
	v.SetDefault("retry.add_jitter", d.Retry.AddJitter)
	v.SetDefault("telemetry.buffer_size", d.Telemetry.BufferSize)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("metrics_port", d.MetricsPort)
}

// Validate checks the configuration for internal consistency beyond
// what type-safe unmarshaling already guarantees.
func (c Config) Validate() error {
	if c.PlanDir == "" {
		return errors.WrapInvalid(fmt.Errorf("plan_dir is required"), "config", "Validate", "plan_dir")
	}
	if c.WAL.Dir == "" {
		return errors.WrapInvalid(fmt.Errorf("wal.dir is required"), "config", "Validate", "wal.dir")
	}
	if c.WAL.SegmentMaxBytes <= 0 {
		return errors.WrapInvalid(fmt.Errorf("wal.segment_max_bytes must be positive"), "config", "Validate", "wal.segment_max_bytes")
	}
	seen := map[string]bool{}
	for _, e := range c.Engines {
		if e.EngineID == "" || e.DefinitionID == "" {
			return errors.WrapInvalid(fmt.Errorf("engine binding missing engine_id/definition_id"), "config", "Validate", "engines")
		}
		key := e.EngineID + "/" + e.DefinitionID
		if seen[key] {
			return errors.WrapInvalid(fmt.Errorf("duplicate engine binding %s", key), "config", "Validate", "engines")
		}
		seen[key] = true
		switch e.Kind {
		case "mongodb", "postgres", "neo4j", "sqlite":
		default:
			return errors.WrapInvalid(fmt.Errorf("unknown engine kind %q for %s", e.Kind, key), "config", "Validate", "engines")
		}
	}
	if _, err := c.Retry.ToRetryConfig(); err != nil {
		return errors.WrapInvalid(err, "config", "Validate", "retry")
	}
	seenPorts := map[int]bool{}
	for _, i := range c.Ingress {
		if i.StationID == "" || i.Path == "" || i.HTTPPort <= 0 {
			return errors.WrapInvalid(fmt.Errorf("ingress binding missing station_id/path/http_port"), "config", "Validate", "ingress")
		}
		if seenPorts[i.HTTPPort] {
			return errors.WrapInvalid(fmt.Errorf("duplicate http_port %d across ingress/egress bindings", i.HTTPPort), "config", "Validate", "ingress")
		}
		seenPorts[i.HTTPPort] = true
	}
	for _, e := range c.Egress {
		if e.StationID == "" || e.Path == "" || e.HTTPPort <= 0 {
			return errors.WrapInvalid(fmt.Errorf("egress binding missing station_id/path/http_port"), "config", "Validate", "egress")
		}
		if seenPorts[e.HTTPPort] {
			return errors.WrapInvalid(fmt.Errorf("duplicate http_port %d across ingress/egress bindings", e.HTTPPort), "config", "Validate", "egress")
		}
		seenPorts[e.HTTPPort] = true
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return errors.WrapInvalid(fmt.Errorf("log_format must be json or text, got %q", c.LogFormat), "config", "Validate", "log_format")
	}
	return nil
}
