// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/crypt"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatehouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, crypt.NameArgon2id, cfg.Crypt.Algorithm)
	assert.Equal(t, 10, cfg.Crypt.BCryptCost)
	assert.Equal(t, 3, cfg.Pipeline.MinNameLength)
	assert.Equal(t, 16, cfg.Pipeline.MaxNameLength)
	assert.True(t, cfg.Pipeline.SingleSession)
	assert.True(t, cfg.Session.ForceRegistration)
	assert.Equal(t, 30*time.Second, cfg.Session.AuthTimeout)
	assert.False(t, cfg.AntiBot.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://gatehouse@localhost/gatehouse
log:
  level: debug
crypt:
  algorithm: bcrypt
  bcrypt_cost: 12
pipeline:
  require_registration: true
  admitted_countries: [DE, FR]
  country_protection: true
antibot:
  enabled: true
  joins_per_second: 8
geo:
  prefixes:
    203.0.113.0/24: DE
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "postgres://gatehouse@localhost/gatehouse", cfg.Database.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "bcrypt", cfg.Crypt.Algorithm)
	assert.Equal(t, 12, cfg.Crypt.BCryptCost)
	assert.True(t, cfg.Pipeline.RequireRegistration)
	assert.Equal(t, []string{"DE", "FR"}, cfg.Pipeline.AdmittedCountries)
	assert.True(t, cfg.AntiBot.Enabled)
	assert.InDelta(t, 8.0, cfg.AntiBot.JoinsPerSecond, 0.001)

	// defaults survive under partial files
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 16, cfg.Pipeline.MaxNameLength)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load("/does/not/exist.yaml", nil)
	assert.Error(t, err)
}

func TestLoadFlagOverrides(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log.level", "info", "")
	flags.String("database.url", "", "")
	require.NoError(t, flags.Parse([]string{
		"--log.level=warn",
		"--database.url=postgres://flag@localhost/db",
	}))

	cfg, err := config.Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "postgres://flag@localhost/db", cfg.Database.URL)
}

func TestSettingsMapping(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	pipeline := cfg.PipelineSettings()
	assert.Equal(t, cfg.Pipeline.NamePattern, pipeline.NamePattern)
	assert.Equal(t, cfg.Pipeline.MaxPlayers, pipeline.MaxPlayers)

	engine := cfg.EngineSettings()
	assert.Equal(t, cfg.Session.RegistrationWindow, engine.RegistrationWindow)

	cs := cfg.CryptSettings()
	assert.Equal(t, cfg.Crypt.BCryptCost, cs.BCryptCost)
	assert.Equal(t, cfg.Crypt.PBKDF2Iterations, cs.PBKDF2Iterations)
}

func TestResolver(t *testing.T) {
	t.Run("nil without prefixes", func(t *testing.T) {
		cfg, err := config.Load("", nil)
		require.NoError(t, err)

		resolver, err := cfg.Resolver()
		require.NoError(t, err)
		assert.Nil(t, resolver)
	})

	t.Run("bounded resolver from prefix table", func(t *testing.T) {
		path := writeConfig(t, `
geo:
  prefixes:
    203.0.113.0/24: DE
`)
		cfg, err := config.Load(path, nil)
		require.NoError(t, err)

		resolver, err := cfg.Resolver()
		require.NoError(t, err)
		require.NotNil(t, resolver)

		code, err := resolver.CountryCode(t.Context(), "203.0.113.7")
		require.NoError(t, err)
		assert.Equal(t, "DE", code)
	})

	t.Run("bad prefix is an error", func(t *testing.T) {
		path := writeConfig(t, `
geo:
  prefixes:
    bogus: DE
`)
		cfg, err := config.Load(path, nil)
		require.NoError(t, err)

		_, err = cfg.Resolver()
		assert.Error(t, err)
	})
}
