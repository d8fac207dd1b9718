// Package config manages the glossyd daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete glossyd configuration.
type Config struct {
	Node    NodeConfig    `koanf:"node"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Glossy  GlossyConfig  `koanf:"glossy"`
	Floods  []FloodConfig `koanf:"floods"`
}

// NodeConfig identifies this node within the deployment.
type NodeConfig struct {
	// ID is this node's 16-bit identifier. cmd/glossyd logs it at startup
	// and passes it as the initiator ID of every flood it starts.
	ID uint16 `koanf:"id"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// GlossyConfig holds the default flooding parameters, shared by every
// flood this node participates in unless a FloodConfig entry overrides
// them (glossy.Params in internal/glossy).
type GlossyConfig struct {
	// PayloadLen is the maximum payload size in bytes.
	PayloadLen int `koanf:"payload_len"`

	// HeaderTag is the deployment-wide 3-bit common-header tag (0-7).
	HeaderTag uint8 `koanf:"header_tag"`

	// AlwaysRelayCnt sends relay_cnt even on floods without sync.
	AlwaysRelayCnt bool `koanf:"always_relay_cnt"`

	// RetransmissionTimeout enables the timeout fallback.
	RetransmissionTimeout bool `koanf:"retransmission_timeout"`

	// CollectStats enables RSSI noise-floor sampling; the statistics
	// counters are kept whether or not it is set.
	CollectStats bool `koanf:"collect_stats"`

	// SlotDuration is the nominal flood slot length. It is loaded and
	// validated but not read by cmd/glossyd, which spaces floods by
	// FloodConfig.Period.
	SlotDuration time.Duration `koanf:"slot_duration"`
}

// FloodConfig describes one declarative, periodically repeated flood from
// the configuration file, analogous to the reference daemon's declarative
// session list: each entry starts a flood on daemon startup and again
// every Period thereafter.
type FloodConfig struct {
	// Name identifies the flood in logs and metrics labels.
	Name string `koanf:"name"`

	// Initiator selects whether this node originates this flood.
	Initiator bool `koanf:"initiator"`

	// WithSync enables time synchronization on this flood.
	WithSync bool `koanf:"with_sync"`

	// NTxMax bounds retransmissions per node; 0 means unbounded.
	NTxMax uint8 `koanf:"n_tx_max"`

	// PayloadLen overrides GlossyConfig.PayloadLen for this flood, if set.
	PayloadLen int `koanf:"payload_len"`

	// Period is how often this flood repeats. Zero means run once.
	Period time.Duration `koanf:"period"`

	// Duration bounds how long the flood stays active before Stop is
	// called.
	Duration time.Duration `koanf:"duration"`
}

// Key returns a unique identifier for the flood based on its name. Used
// by Validate to reject duplicate flood names.
func (fc FloodConfig) Key() string {
	return fc.Name
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults. Timing
// constants follow the reference cc430/rf1a configuration this package's
// sibling internal/glossy was validated against.
func DefaultConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Glossy: GlossyConfig{
			PayloadLen:            64,
			HeaderTag:             0x2,
			AlwaysRelayCnt:        false,
			RetransmissionTimeout: true,
			CollectStats:          true,
			SlotDuration:          50 * time.Millisecond,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for glossyd configuration.
// Variables are named GLOSSYD_<section>_<key>, e.g., GLOSSYD_METRICS_ADDR.
const envPrefix = "GLOSSYD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (GLOSSYD_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	GLOSSYD_NODE_ID       -> node.id
//	GLOSSYD_METRICS_ADDR  -> metrics.addr
//	GLOSSYD_METRICS_PATH  -> metrics.path
//	GLOSSYD_LOG_LEVEL     -> log.level
//	GLOSSYD_LOG_FORMAT    -> log.format
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms GLOSSYD_METRICS_ADDR -> metrics.addr.
// Strips the GLOSSYD_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"node.id":                       defaults.Node.ID,
		"metrics.addr":                  defaults.Metrics.Addr,
		"metrics.path":                  defaults.Metrics.Path,
		"log.level":                     defaults.Log.Level,
		"log.format":                    defaults.Log.Format,
		"glossy.payload_len":            defaults.Glossy.PayloadLen,
		"glossy.header_tag":             defaults.Glossy.HeaderTag,
		"glossy.always_relay_cnt":       defaults.Glossy.AlwaysRelayCnt,
		"glossy.retransmission_timeout": defaults.Glossy.RetransmissionTimeout,
		"glossy.collect_stats":          defaults.Glossy.CollectStats,
		"glossy.slot_duration":          defaults.Glossy.SlotDuration.String(),
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")

	// ErrInvalidPayloadLen indicates the payload length is not positive.
	ErrInvalidPayloadLen = errors.New("glossy.payload_len must be > 0")

	// ErrInvalidHeaderTag indicates the header tag exceeds its 3-bit range.
	ErrInvalidHeaderTag = errors.New("glossy.header_tag must be in [0,7]")

	// ErrInvalidSlotDuration indicates the slot duration is not positive.
	ErrInvalidSlotDuration = errors.New("glossy.slot_duration must be > 0")

	// ErrEmptyFloodName indicates a flood entry has no name.
	ErrEmptyFloodName = errors.New("flood name must not be empty")

	// ErrDuplicateFloodKey indicates two floods share the same name.
	ErrDuplicateFloodKey = errors.New("duplicate flood name")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}

	if cfg.Glossy.PayloadLen <= 0 {
		return ErrInvalidPayloadLen
	}

	if cfg.Glossy.HeaderTag > 0x07 {
		return ErrInvalidHeaderTag
	}

	if cfg.Glossy.SlotDuration <= 0 {
		return ErrInvalidSlotDuration
	}

	if err := validateFloods(cfg.Floods); err != nil {
		return err
	}

	return nil
}

// validateFloods checks each declarative flood entry for correctness.
func validateFloods(floods []FloodConfig) error {
	seen := make(map[string]struct{}, len(floods))

	for i, fc := range floods {
		if fc.Name == "" {
			return fmt.Errorf("floods[%d]: %w", i, ErrEmptyFloodName)
		}

		key := fc.Key()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("floods[%d] name %q: %w", i, key, ErrDuplicateFloodKey)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
