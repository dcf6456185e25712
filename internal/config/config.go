// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package config loads the server configuration from defaults, an optional
// YAML file and command-line flags, in that order of precedence.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/crypt"
	"github.com/gatehouse/gatehouse/internal/geo"
)

// Config is the full server configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Crypt    CryptConfig    `koanf:"crypt"`
	Policy   PolicyConfig   `koanf:"policy"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	AntiBot  AntiBotConfig  `koanf:"antibot"`
	Session  SessionConfig  `koanf:"session"`
	Geo      GeoConfig      `koanf:"geo"`
}

// DatabaseConfig points at the credential database.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig configures the observability endpoint.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// CryptConfig selects and parameterizes the hashing method.
type CryptConfig struct {
	Algorithm        string `koanf:"algorithm"`
	BCryptCost       int    `koanf:"bcrypt_cost"`
	PBKDF2Iterations int    `koanf:"pbkdf2_iterations"`
}

// PolicyConfig configures password and email validation.
type PolicyConfig struct {
	MinPasswordLength int      `koanf:"min_password_length"`
	MaxPasswordLength int      `koanf:"max_password_length"`
	UnsafePasswords   []string `koanf:"unsafe_passwords"`
}

// PipelineConfig configures the join verification checks.
type PipelineConfig struct {
	MinNameLength       int      `koanf:"min_name_length"`
	MaxNameLength       int      `koanf:"max_name_length"`
	NamePattern         string   `koanf:"name_pattern"`
	RequireRegistration bool     `koanf:"require_registration"`
	EnforceNameCase     bool     `koanf:"enforce_name_case"`
	CountryProtection   bool     `koanf:"country_protection"`
	AdmittedCountries   []string `koanf:"admitted_countries"`
	SingleSession       bool     `koanf:"single_session"`
	MaxPlayers          int      `koanf:"max_players"`
}

// AntiBotConfig configures the join-rate monitor.
type AntiBotConfig struct {
	Enabled        bool          `koanf:"enabled"`
	JoinsPerSecond float64       `koanf:"joins_per_second"`
	JoinBurst      int           `koanf:"join_burst"`
	ActiveDuration time.Duration `koanf:"active_duration"`
}

// SessionConfig configures the engine's holding windows and messages.
type SessionConfig struct {
	ForceRegistration  bool          `koanf:"force_registration"`
	AuthTimeout        time.Duration `koanf:"auth_timeout"`
	RegistrationWindow time.Duration `koanf:"registration_window"`
	ReminderInterval   time.Duration `koanf:"reminder_interval"`
}

// GeoConfig configures the static country resolver. Prefixes maps CIDR
// blocks to ISO country codes.
type GeoConfig struct {
	Prefixes      map[string]string `koanf:"prefixes"`
	LookupTimeout time.Duration     `koanf:"lookup_timeout"`
}

// defaults are the baseline configuration, overridden by file then flags.
func defaults() map[string]any {
	return map[string]any{
		"database.url":                  "",
		"log.format":                    "json",
		"log.level":                     "info",
		"metrics.addr":                  "127.0.0.1:9100",
		"crypt.algorithm":               crypt.NameArgon2id,
		"crypt.bcrypt_cost":             10,
		"crypt.pbkdf2_iterations":       10000,
		"policy.min_password_length":    5,
		"policy.max_password_length":    64,
		"pipeline.min_name_length":      3,
		"pipeline.max_name_length":      16,
		"pipeline.name_pattern":         `[a-zA-Z0-9_]+`,
		"pipeline.require_registration": false,
		"pipeline.enforce_name_case":    true,
		"pipeline.single_session":       true,
		"pipeline.max_players":          100,
		"antibot.enabled":               false,
		"antibot.joins_per_second":      4.0,
		"antibot.join_burst":            12,
		"antibot.active_duration":       10 * time.Minute,
		"session.force_registration":    true,
		"session.auth_timeout":          30 * time.Second,
		"session.registration_window":   2 * time.Minute,
		"session.reminder_interval":     10 * time.Second,
		"geo.lookup_timeout":            geo.DefaultLookupTimeout,
	}
}

// Load builds the configuration. path may be empty (no file); flags may be
// nil (no flag overrides).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_DEFAULTS_FAILED").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}
	return &cfg, nil
}

// CryptSettings maps the config to crypt method parameters.
func (c *Config) CryptSettings() crypt.Settings {
	return crypt.Settings{
		BCryptCost:       c.Crypt.BCryptCost,
		PBKDF2Iterations: c.Crypt.PBKDF2Iterations,
	}
}

// PolicySettings maps the config to the password policy.
func (c *Config) PolicySettings() auth.PolicySettings {
	return auth.PolicySettings{
		MinPasswordLength: c.Policy.MinPasswordLength,
		MaxPasswordLength: c.Policy.MaxPasswordLength,
		UnsafePasswords:   c.Policy.UnsafePasswords,
	}
}

// PipelineSettings maps the config to the join pipeline.
func (c *Config) PipelineSettings() auth.PipelineSettings {
	return auth.PipelineSettings{
		MinNameLength:       c.Pipeline.MinNameLength,
		MaxNameLength:       c.Pipeline.MaxNameLength,
		NamePattern:         c.Pipeline.NamePattern,
		RequireRegistration: c.Pipeline.RequireRegistration,
		EnforceNameCase:     c.Pipeline.EnforceNameCase,
		CountryProtection:   c.Pipeline.CountryProtection,
		AdmittedCountries:   c.Pipeline.AdmittedCountries,
		SingleSession:       c.Pipeline.SingleSession,
		MaxPlayers:          c.Pipeline.MaxPlayers,
	}
}

// AntiBotSettings maps the config to the join-rate monitor.
func (c *Config) AntiBotSettings() auth.AntiBotSettings {
	return auth.AntiBotSettings{
		Enabled:        c.AntiBot.Enabled,
		JoinsPerSecond: c.AntiBot.JoinsPerSecond,
		JoinBurst:      c.AntiBot.JoinBurst,
		ActiveDuration: c.AntiBot.ActiveDuration,
	}
}

// EngineSettings maps the config to the state engine.
func (c *Config) EngineSettings() auth.EngineSettings {
	return auth.EngineSettings{
		ForceRegistration:  c.Session.ForceRegistration,
		AuthTimeout:        c.Session.AuthTimeout,
		RegistrationWindow: c.Session.RegistrationWindow,
		ReminderInterval:   c.Session.ReminderInterval,
	}
}

// Resolver builds the country resolver from the prefix table, bounded by
// the configured lookup timeout. Returns nil when no prefixes are
// configured.
func (c *Config) Resolver() (geo.Resolver, error) {
	if len(c.Geo.Prefixes) == 0 {
		return nil, nil
	}
	static, err := geo.NewStaticResolver(c.Geo.Prefixes)
	if err != nil {
		return nil, err
	}
	return geo.NewBounded(static, c.Geo.LookupTimeout), nil
}
