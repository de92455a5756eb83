package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type SynthConfig struct {
	Mode       string  `yaml:"mode"` // mock, exec, openai
	Command    string  `yaml:"command"`
	Model      string  `yaml:"model"`
	APIKey     string  `yaml:"api_key"`
	Voice      string  `yaml:"voice"`
	SampleRate int     `yaml:"sample_rate"`
	Speed      float64 `yaml:"speed"`
}

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxItems      int    `yaml:"max_items"`
	PruneSchedule string `yaml:"prune_schedule"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type SessionConfig struct {
	MaxInputChars     int `yaml:"max_input_chars"`
	ChunkChars        int `yaml:"chunk_chars"`
	InterChunkDelayMS int `yaml:"inter_chunk_delay_ms"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type ArchiveConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	Bucket         string `yaml:"bucket"`
	URLExpiryHours int    `yaml:"url_expiry_hours"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Synth       SynthConfig     `yaml:"synth"`
	History     HistoryConfig   `yaml:"history"`
	Session     SessionConfig   `yaml:"session"`
	Bus         BusConfig       `yaml:"bus"`
	Archive     ArchiveConfig   `yaml:"archive"`
}

func Default() Config {
	return Config{
		RuntimeName: "narrata-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Synth: SynthConfig{
			Mode:       "mock",
			Model:      "tts-1",
			Voice:      "alloy",
			SampleRate: 24000,
			Speed:      1.0,
		},
		History: HistoryConfig{
			Path:          "./data/narrata-history.db",
			RetentionDays: 0,
			MaxItems:      0,
			PruneSchedule: "0 0 3 * * *",
		},
		Session: SessionConfig{
			MaxInputChars:     20000,
			ChunkChars:        3000,
			InterChunkDelayMS: 800,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Bucket:         "narrata-audio",
			URLExpiryHours: 168,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "NARRATA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "NARRATA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "NARRATA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "NARRATA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "NARRATA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "NARRATA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "NARRATA_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "NARRATA_TELEMETRY_PROMETHEUS_BIND")
	overrideString(&cfg.Synth.Mode, "NARRATA_SYNTH_MODE")
	overrideString(&cfg.Synth.Command, "NARRATA_SYNTH_COMMAND")
	overrideString(&cfg.Synth.Model, "NARRATA_SYNTH_MODEL")
	overrideString(&cfg.Synth.APIKey, "NARRATA_SYNTH_API_KEY")
	overrideString(&cfg.Synth.Voice, "NARRATA_SYNTH_VOICE")
	overrideInt(&cfg.Synth.SampleRate, "NARRATA_SYNTH_SAMPLE_RATE")
	overrideFloat(&cfg.Synth.Speed, "NARRATA_SYNTH_SPEED")
	overrideString(&cfg.History.Path, "NARRATA_HISTORY_PATH")
	overrideInt(&cfg.History.RetentionDays, "NARRATA_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxItems, "NARRATA_HISTORY_MAX_ITEMS")
	overrideString(&cfg.History.PruneSchedule, "NARRATA_HISTORY_PRUNE_SCHEDULE")
	overrideBool(&cfg.History.VacuumOnStart, "NARRATA_HISTORY_VACUUM_ON_START")
	overrideInt(&cfg.Session.MaxInputChars, "NARRATA_SESSION_MAX_INPUT_CHARS")
	overrideInt(&cfg.Session.ChunkChars, "NARRATA_SESSION_CHUNK_CHARS")
	overrideInt(&cfg.Session.InterChunkDelayMS, "NARRATA_SESSION_INTER_CHUNK_DELAY_MS")
	overrideBool(&cfg.Bus.Enabled, "NARRATA_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "NARRATA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "NARRATA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "NARRATA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "NARRATA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "NARRATA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "NARRATA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "NARRATA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "NARRATA_BUS_CONNECT_TIMEOUT_MS")
	overrideBool(&cfg.Archive.Enabled, "NARRATA_ARCHIVE_ENABLED")
	overrideString(&cfg.Archive.Endpoint, "NARRATA_ARCHIVE_ENDPOINT")
	overrideString(&cfg.Archive.AccessKey, "NARRATA_ARCHIVE_ACCESS_KEY")
	overrideString(&cfg.Archive.SecretKey, "NARRATA_ARCHIVE_SECRET_KEY")
	overrideString(&cfg.Archive.Bucket, "NARRATA_ARCHIVE_BUCKET")
	overrideInt(&cfg.Archive.URLExpiryHours, "NARRATA_ARCHIVE_URL_EXPIRY_HOURS")

	if cfg.Synth.APIKey == "" {
		overrideString(&cfg.Synth.APIKey, "OPENAI_API_KEY")
	}
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch cfg.Synth.Mode {
	case "mock", "exec", "openai":
		// ok
	default:
		return errors.New("synth.mode must be one of mock|exec|openai")
	}
	if cfg.Synth.Mode == "exec" && cfg.Synth.Command == "" {
		return errors.New("synth.command must be set when mode=exec")
	}
	if cfg.Synth.SampleRate <= 0 {
		return errors.New("synth.sample_rate must be positive")
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	if cfg.History.MaxItems < 0 {
		return errors.New("history.max_items must be >= 0")
	}
	if cfg.Session.MaxInputChars <= 0 {
		return errors.New("session.max_input_chars must be positive")
	}
	if cfg.Session.ChunkChars <= 0 {
		return errors.New("session.chunk_chars must be positive")
	}
	if cfg.Session.ChunkChars > cfg.Session.MaxInputChars {
		return errors.New("session.chunk_chars must not exceed session.max_input_chars")
	}
	if cfg.Session.InterChunkDelayMS < 0 {
		return errors.New("session.inter_chunk_delay_ms must be >= 0")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Archive.Enabled {
		if cfg.Archive.Endpoint == "" {
			return errors.New("archive.endpoint must not be empty when archive is enabled")
		}
		if cfg.Archive.Bucket == "" {
			return errors.New("archive.bucket must not be empty when archive is enabled")
		}
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
