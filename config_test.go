package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServerConfigDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.World.Width != 800 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadServerConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
listenAddr: ":9090"
catalogPath: "zones.json"
world:
  width: 1024
  height: 768
  seed: "alpha"
logging:
  sinks: ["console", "json"]
  jsonPath: "events.jsonl"
  minSeverity: "debug"
`)
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9090" || cfg.CatalogPath != "zones.json" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.World.Seed != "alpha" || cfg.World.Width != 1024 {
		t.Fatalf("world config not applied: %+v", cfg.World)
	}
}

func TestLoadServerConfigRejections(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantSub string
	}{
		{"malformed yaml", "listenAddr: [", "parse"},
		{"bad severity", "logging:\n  minSeverity: \"loud\"\n", "severity"},
		{"bad sink", "logging:\n  sinks: [\"syslog\"]\n", "sink"},
		{"json sink without path", "logging:\n  sinks: [\"json\"]\n", "jsonPath"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadServerConfig(writeConfig(t, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected error containing %q, got %v", tc.wantSub, err)
			}
		})
	}
}
