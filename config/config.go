// Package config handles daemon configuration.
//
// Configuration is loaded with overlay semantics: built-in defaults
// (embedded from default.toml) are overlaid with values from the
// config file, and CLI flags override both at runtime. The TOML
// decoder only sets fields present in the file, so unspecified fields
// keep their defaults. An invalid config file is an error, not a
// silent fallback.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed default.toml
var defaultConfigTOML string

// DefaultConfigPath is the default path to the daemon config file.
const DefaultConfigPath = "/etc/bpfd/bpfd.toml"

// DefaultGRPCAddress is the loopback-only TCP endpoint the daemon
// listens on in addition to its unix socket.
const DefaultGRPCAddress = "[::1]:50051"

// Config is the top-level daemon configuration.
type Config struct {
	GRPC       GRPCConfig       `toml:"grpc"`
	Runtime    RuntimeConfig    `toml:"runtime"`
	Dispatcher DispatcherConfig `toml:"dispatcher"`
	Logging    LoggingConfig    `toml:"logging"`
	CSI        CSIConfig        `toml:"csi"`
}

// GRPCConfig controls the RPC endpoints.
type GRPCConfig struct {
	// Address is the TCP listen address. Empty disables TCP; the
	// unix socket is always served.
	Address string `toml:"address"`
}

// RuntimeConfig controls runtime paths.
type RuntimeConfig struct {
	// Dir is the runtime root (pin filesystems, database, socket).
	Dir string `toml:"dir"`
}

// DispatcherConfig locates the dispatcher bytecode template.
type DispatcherConfig struct {
	// BytecodePath is the compiled dispatcher object the daemon
	// instantiates per interface.
	BytecodePath string `toml:"bytecode_path"`
}

// LoggingConfig controls logging behaviour.
type LoggingConfig struct {
	// Level is a log spec (e.g. "info" or "info,manager=debug").
	Level string `toml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format"`
}

// CSIConfig controls the optional CSI map-export driver.
type CSIConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	var cfg Config
	// The embedded default must parse; a failure here is a build
	// defect.
	if err := toml.Unmarshal([]byte(defaultConfigTOML), &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded default.toml invalid: %v", err))
	}
	return cfg
}

// Load reads the config file at path over the built-in defaults. A
// missing file yields the defaults; an unreadable or invalid file is
// an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
