// Package config provides Viper-based configuration loading for the kater host.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// TickSample caps identical entries per second from the tick-driven
	// engine and loop loggers; 0 disables sampling.
	TickSample int `mapstructure:"tick_sample"`
}

// EngineConfig holds the global tunables handed to the engine.
type EngineConfig struct {
	EnergyCap             int `mapstructure:"energy_cap"`
	HitpointsCap          int `mapstructure:"hitpoints_cap"`
	EnergyRegenPerTick    int `mapstructure:"energy_regen_per_tick"`
	HitpointsRegenPerTick int `mapstructure:"hitpoints_regen_per_tick"`
	// RegenIntervalMs is the period between regeneration steps.
	RegenIntervalMs    int `mapstructure:"regen_interval_ms"`
	InventoryCapacity  int `mapstructure:"inventory_capacity"`
	TickIntervalMs     int `mapstructure:"tick_interval_ms"`
	AutosaveIntervalMs int `mapstructure:"autosave_interval_ms"`
}

// RegenInterval returns RegenIntervalMs as a duration.
func (e EngineConfig) RegenInterval() time.Duration {
	return time.Duration(e.RegenIntervalMs) * time.Millisecond
}

// TickInterval returns TickIntervalMs as a duration.
func (e EngineConfig) TickInterval() time.Duration {
	return time.Duration(e.TickIntervalMs) * time.Millisecond
}

// AutosaveInterval returns AutosaveIntervalMs as a duration; zero disables autosave.
func (e EngineConfig) AutosaveInterval() time.Duration {
	return time.Duration(e.AutosaveIntervalMs) * time.Millisecond
}

// CatalogConfig locates the action catalog document.
type CatalogConfig struct {
	// Path is the YAML catalog file; empty selects the built-in catalog.
	Path string `mapstructure:"path"`
}

// StorageConfig selects where save records live.
type StorageConfig struct {
	// Backend is "file" or "postgres".
	Backend string `mapstructure:"backend"`
	// Dir is the save directory for the file backend.
	Dir string `mapstructure:"dir"`
	// PlayerID identifies the save record of the hosted player.
	PlayerID  string        `mapstructure:"player_id"`
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// Player returns the parsed PlayerID.
//
// Precondition: Validate has accepted the configuration.
func (s StorageConfig) Player() uuid.UUID {
	return uuid.MustParse(s.PlayerID)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// HTTPConfig holds the presentation API listener settings.
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// ScriptingConfig holds Lua reward hook settings.
type ScriptingConfig struct {
	// Dir holds *.lua scripts; empty disables scripting.
	Dir string `mapstructure:"dir"`
	// InstructionLimit bounds each hook invocation; 0 selects the default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

// Validate checks all configuration invariants. The database section is only
// checked when the postgres storage backend is selected.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateEngine(c.Engine); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateStorage(c.Storage); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Storage.Backend == "postgres" {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateHTTP(c.HTTP); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	if l.TickSample < 0 {
		return fmt.Errorf("logging.tick_sample must be >= 0, got %d", l.TickSample)
	}
	return nil
}

func validateEngine(e EngineConfig) error {
	var errs []string
	nonNegative := []struct {
		key string
		v   int
	}{
		{"engine.energy_cap", e.EnergyCap},
		{"engine.hitpoints_cap", e.HitpointsCap},
		{"engine.energy_regen_per_tick", e.EnergyRegenPerTick},
		{"engine.hitpoints_regen_per_tick", e.HitpointsRegenPerTick},
		{"engine.regen_interval_ms", e.RegenIntervalMs},
		{"engine.inventory_capacity", e.InventoryCapacity},
		{"engine.autosave_interval_ms", e.AutosaveIntervalMs},
	}
	for _, f := range nonNegative {
		if f.v < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0, got %d", f.key, f.v))
		}
	}
	if e.TickIntervalMs < 1 {
		errs = append(errs, fmt.Sprintf("engine.tick_interval_ms must be >= 1, got %d", e.TickIntervalMs))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	var errs []string
	switch s.Backend {
	case "file":
		if s.Dir == "" {
			errs = append(errs, "storage.dir must not be empty for the file backend")
		}
	case "postgres":
	default:
		errs = append(errs, fmt.Sprintf("storage.backend must be one of [file, postgres], got %q", s.Backend))
	}
	if _, err := uuid.Parse(s.PlayerID); err != nil {
		errs = append(errs, fmt.Sprintf("storage.player_id must be a UUID, got %q", s.PlayerID))
	}
	if s.CacheSize < 0 {
		errs = append(errs, fmt.Sprintf("storage.cache_size must be >= 0, got %d", s.CacheSize))
	}
	if s.CacheTTL < 0 {
		errs = append(errs, "storage.cache_ttl must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHTTP(h HTTPConfig) error {
	if h.Port < 0 || h.Port > 65535 {
		return fmt.Errorf("http.port must be 0-65535, got %d", h.Port)
	}
	if h.Host == "" {
		return errors.New("http.host must not be empty")
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with KATER_ prefix
	v.SetEnvPrefix("KATER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
// Unset keys take their defaults.
//
// Precondition: v must be non-nil.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultPlayerID is the save record used when storage.player_id is unset.
const DefaultPlayerID = "00000000-0000-0000-0000-00000000ca7e"

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.tick_sample", 20)

	v.SetDefault("engine.energy_cap", 100)
	v.SetDefault("engine.hitpoints_cap", 100)
	v.SetDefault("engine.energy_regen_per_tick", 1)
	v.SetDefault("engine.hitpoints_regen_per_tick", 1)
	v.SetDefault("engine.regen_interval_ms", 1000)
	v.SetDefault("engine.inventory_capacity", 12)
	v.SetDefault("engine.tick_interval_ms", 50)
	v.SetDefault("engine.autosave_interval_ms", 60000)

	v.SetDefault("catalog.path", "")

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.dir", "saves")
	v.SetDefault("storage.player_id", DefaultPlayerID)
	v.SetDefault("storage.cache_size", 64)
	v.SetDefault("storage.cache_ttl", "10m")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "kater")
	v.SetDefault("database.password", "kater")
	v.SetDefault("database.name", "kater")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", 8080)

	v.SetDefault("scripting.dir", "")
	v.SetDefault("scripting.instruction_limit", 0)
}
