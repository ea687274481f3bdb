package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the ops-facing configuration file. Designer content lives in
// the hotspot catalog, not here.
type ServerConfig struct {
	ListenAddr  string        `yaml:"listenAddr"`
	CatalogPath string        `yaml:"catalogPath"`
	World       WorldConfig   `yaml:"world"`
	Logging     LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	Sinks       []string `yaml:"sinks"`
	JSONPath    string   `yaml:"jsonPath"`
	MinSeverity string   `yaml:"minSeverity"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:  ":8080",
		CatalogPath: "config/hotspots.json",
		World:       WorldConfig{}.normalized(),
		Logging: LoggingConfig{
			Sinks:       []string{"console"},
			MinSeverity: "info",
		},
	}
}

// LoadServerConfig reads the YAML config at path. A missing file yields the
// defaults; a present but malformed file is an error.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.World = cfg.World.normalized()
	return cfg, nil
}

func (c ServerConfig) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listenAddr must not be empty")
	}
	switch c.Logging.MinSeverity {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging severity %q", c.Logging.MinSeverity)
	}
	for _, sink := range c.Logging.Sinks {
		switch sink {
		case "console", "json":
		default:
			return fmt.Errorf("unknown logging sink %q", sink)
		}
	}
	if containsSink(c.Logging.Sinks, "json") && c.Logging.JSONPath == "" {
		return fmt.Errorf("json sink enabled without jsonPath")
	}
	return nil
}

func containsSink(sinks []string, name string) bool {
	for _, sink := range sinks {
		if sink == name {
			return true
		}
	}
	return false
}
