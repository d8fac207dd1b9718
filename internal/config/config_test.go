package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ystepanoff/glossy/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.Glossy.PayloadLen != 64 {
		t.Errorf("Glossy.PayloadLen = %d, want %d", cfg.Glossy.PayloadLen, 64)
	}

	if cfg.Glossy.SlotDuration != 50*time.Millisecond {
		t.Errorf("Glossy.SlotDuration = %v, want %v", cfg.Glossy.SlotDuration, 50*time.Millisecond)
	}

	// Defaults must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
node:
  id: 7
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
glossy:
  payload_len: 32
  header_tag: 3
  slot_duration: "100ms"
floods:
  - name: "beacon"
    initiator: true
    with_sync: true
    period: "1s"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Node.ID != 7 {
		t.Errorf("Node.ID = %d, want %d", cfg.Node.ID, 7)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Glossy.PayloadLen != 32 {
		t.Errorf("Glossy.PayloadLen = %d, want %d", cfg.Glossy.PayloadLen, 32)
	}

	if cfg.Glossy.HeaderTag != 3 {
		t.Errorf("Glossy.HeaderTag = %d, want %d", cfg.Glossy.HeaderTag, 3)
	}

	if cfg.Glossy.SlotDuration != 100*time.Millisecond {
		t.Errorf("Glossy.SlotDuration = %v, want %v", cfg.Glossy.SlotDuration, 100*time.Millisecond)
	}

	if len(cfg.Floods) != 1 || cfg.Floods[0].Name != "beacon" {
		t.Fatalf("Floods = %+v, want one entry named beacon", cfg.Floods)
	}

	if !cfg.Floods[0].Initiator || !cfg.Floods[0].WithSync {
		t.Errorf("Floods[0] = %+v, want initiator+with_sync", cfg.Floods[0])
	}

	if cfg.Floods[0].Period != time.Second {
		t.Errorf("Floods[0].Period = %v, want %v", cfg.Floods[0].Period, time.Second)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override node.id and log.level.
	// Everything else should inherit from defaults.
	yamlContent := `
node:
  id: 42
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	// Overridden values.
	if cfg.Node.ID != 42 {
		t.Errorf("Node.ID = %d, want %d", cfg.Node.ID, 42)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}

	if cfg.Glossy.PayloadLen != 64 {
		t.Errorf("Glossy.PayloadLen = %d, want default %d", cfg.Glossy.PayloadLen, 64)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty metrics addr",
			modify: func(cfg *config.Config) {
				cfg.Metrics.Addr = ""
			},
			wantErr: config.ErrEmptyMetricsAddr,
		},
		{
			name: "zero payload len",
			modify: func(cfg *config.Config) {
				cfg.Glossy.PayloadLen = 0
			},
			wantErr: config.ErrInvalidPayloadLen,
		},
		{
			name: "negative payload len",
			modify: func(cfg *config.Config) {
				cfg.Glossy.PayloadLen = -1
			},
			wantErr: config.ErrInvalidPayloadLen,
		},
		{
			name: "header tag out of range",
			modify: func(cfg *config.Config) {
				cfg.Glossy.HeaderTag = 8
			},
			wantErr: config.ErrInvalidHeaderTag,
		},
		{
			name: "zero slot duration",
			modify: func(cfg *config.Config) {
				cfg.Glossy.SlotDuration = 0
			},
			wantErr: config.ErrInvalidSlotDuration,
		},
		{
			name: "duplicate flood name",
			modify: func(cfg *config.Config) {
				cfg.Floods = []config.FloodConfig{
					{Name: "a"},
					{Name: "a"},
				}
			},
			wantErr: config.ErrDuplicateFloodKey,
		},
		{
			name: "empty flood name",
			modify: func(cfg *config.Config) {
				cfg.Floods = []config.FloodConfig{{Name: ""}}
			},
			wantErr: config.ErrEmptyFloodName,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "glossyd.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
