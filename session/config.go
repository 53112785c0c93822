package session

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Config is loaded from a TOML file, the format the teacher's own
// client config uses (katzenpost client2 is configured via
// mailproxy.toml-style files; BurntSushi/toml is the teacher's direct
// dependency for it, see DESIGN.md).
type Config struct {
	Transport TransportConfig
	Store     StoreConfig
	Delivery  DeliveryConfig
	Log       LogConfig
}

// TransportConfig selects and configures the underlying Transport.
type TransportConfig struct {
	// Kind is "tcp" or "ble". Only "tcp" is concretely wired by this
	// module (spec.md §9 excludes shipping a BLE driver).
	Kind string
	// Addr is the "host:port" dial target for Kind == "tcp".
	Addr string
	// CommandTimeout bounds every typed operation (spec.md §4.4's
	// "default 5s timeout").
	CommandTimeout time.Duration
	// PollInterval is loaded and defaulted here, but nothing in this
	// module reads it: the session does not poll the device.
	PollInterval time.Duration
}

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	// Path is the bbolt file path.
	Path string
}

// DeliveryConfig configures the reliable-delivery retry engine
// (spec.md §4.5 defaults).
type DeliveryConfig struct {
	DirectAttempts int           // N1, default 2
	FloodAttempts  int           // N2, default 2
	MinTimeout     time.Duration // default 8s
	Margin         time.Duration // default 2s
	AckRetention   time.Duration // default 5m
}

// LogConfig configures the charmbracelet/log root logger.
type LogConfig struct {
	Level           string
	ReportTimestamp bool
}

// DefaultConfig returns the spec.md §4.5-documented defaults, used
// when a field is left unset by the loaded TOML file.
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			Kind:           "tcp",
			CommandTimeout: 5 * time.Second,
			PollInterval:   30 * time.Second,
		},
		Store: StoreConfig{Path: "meshcore.db"},
		Delivery: DeliveryConfig{
			DirectAttempts: 2,
			FloodAttempts:  2,
			MinTimeout:     8 * time.Second,
			Margin:         2 * time.Second,
			AckRetention:   5 * time.Minute,
		},
		Log: LogConfig{Level: "info", ReportTimestamp: true},
	}
}

// LoadConfig reads and merges a TOML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
