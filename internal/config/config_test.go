package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.RuntimeName != "narrata-runtime" {
		t.Errorf("runtime_name = %q", cfg.RuntimeName)
	}
	if cfg.Session.MaxInputChars != 20000 {
		t.Errorf("max_input_chars = %d, want 20000", cfg.Session.MaxInputChars)
	}
	if cfg.Session.ChunkChars != 3000 {
		t.Errorf("chunk_chars = %d, want 3000", cfg.Session.ChunkChars)
	}
	if cfg.Session.InterChunkDelayMS != 800 {
		t.Errorf("inter_chunk_delay_ms = %d, want 800", cfg.Session.InterChunkDelayMS)
	}
	if cfg.Synth.Mode != "mock" {
		t.Errorf("synth.mode = %q, want mock", cfg.Synth.Mode)
	}
	if cfg.Synth.SampleRate != 24000 {
		t.Errorf("synth.sample_rate = %d, want 24000", cfg.Synth.SampleRate)
	}
	if cfg.Bus.Enabled || cfg.Archive.Enabled {
		t.Error("bus and archive must default to disabled")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narrata.yaml")
	content := `
runtime_name: test-runtime
http:
  port: 9999
synth:
  mode: exec
  command: "say --wav"
session:
  chunk_chars: 500
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RuntimeName != "test-runtime" {
		t.Errorf("runtime_name = %q", cfg.RuntimeName)
	}
	if cfg.HTTP.Port != 9999 {
		t.Errorf("http.port = %d", cfg.HTTP.Port)
	}
	if cfg.Synth.Mode != "exec" || cfg.Synth.Command != "say --wav" {
		t.Errorf("synth not loaded: %+v", cfg.Synth)
	}
	if cfg.Session.ChunkChars != 500 {
		t.Errorf("chunk_chars = %d, want 500", cfg.Session.ChunkChars)
	}
	// Untouched fields keep their defaults.
	if cfg.Session.MaxInputChars != 20000 {
		t.Errorf("max_input_chars = %d, want default 20000", cfg.Session.MaxInputChars)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NARRATA_HTTP_PORT", "7070")
	t.Setenv("NARRATA_SYNTH_MODE", "openai")
	t.Setenv("NARRATA_SYNTH_API_KEY", "sk-test")
	t.Setenv("NARRATA_SESSION_CHUNK_CHARS", "1500")
	t.Setenv("NARRATA_HISTORY_RETENTION_DAYS", "14")
	t.Setenv("NARRATA_BUS_SERVERS", "nats://one:4222, nats://two:4222")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 7070 {
		t.Errorf("http.port = %d", cfg.HTTP.Port)
	}
	if cfg.Synth.Mode != "openai" || cfg.Synth.APIKey != "sk-test" {
		t.Errorf("synth override failed: mode=%q", cfg.Synth.Mode)
	}
	if cfg.Session.ChunkChars != 1500 {
		t.Errorf("chunk_chars = %d", cfg.Session.ChunkChars)
	}
	if cfg.History.RetentionDays != 14 {
		t.Errorf("retention_days = %d", cfg.History.RetentionDays)
	}
	if len(cfg.Bus.Servers) != 2 || cfg.Bus.Servers[1] != "nats://two:4222" {
		t.Errorf("bus.servers = %v", cfg.Bus.Servers)
	}
}

func TestOpenAIKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Synth.APIKey != "sk-fallback" {
		t.Errorf("api_key = %q, want fallback", cfg.Synth.APIKey)
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad synth mode", func(c *Config) { c.Synth.Mode = "festival" }},
		{"exec without command", func(c *Config) { c.Synth.Mode = "exec"; c.Synth.Command = "" }},
		{"zero chunk chars", func(c *Config) { c.Session.ChunkChars = 0 }},
		{"chunk larger than input limit", func(c *Config) { c.Session.ChunkChars = c.Session.MaxInputChars + 1 }},
		{"negative delay", func(c *Config) { c.Session.InterChunkDelayMS = -1 }},
		{"bad http port", func(c *Config) { c.HTTP.Port = 0 }},
		{"empty history path", func(c *Config) { c.History.Path = "" }},
		{"archive enabled without bucket", func(c *Config) { c.Archive.Enabled = true; c.Archive.Bucket = "" }},
		{"bus without servers", func(c *Config) { c.Bus.Enabled = true; c.Bus.Embedded = false; c.Bus.Servers = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
