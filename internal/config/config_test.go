package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidManager(t *testing.T) *Manager {
	t.Helper()

	// No config file is present in the test working directory, so the
	// manager starts from defaults plus environment overrides.
	t.Setenv("HELIXMIND_AUTH_SECRET", "test-secret")

	m, err := NewManager()
	require.NoError(t, err)
	return m
}

func TestNewManager_Defaults(t *testing.T) {
	m := newValidManager(t)
	cfg := m.GetConfig()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "data/helixmind.db", cfg.Storage.SQLite.Path)
	assert.Equal(t, "models/model.json", cfg.Model.Path)
	assert.Equal(t, 2, cfg.Worker.Count)
	assert.Equal(t, 64, cfg.Worker.QueueSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, int64(100*1024*1024), cfg.Upload.MaxFileSize)
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	t.Setenv("HELIXMIND_SERVER_PORT", "9000")
	t.Setenv("HELIXMIND_STORAGE_BACKEND", "memory")
	t.Setenv("HELIXMIND_LOGGING_LEVEL", "debug")

	m := newValidManager(t)
	cfg := m.GetConfig()

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate_DefaultsWithSecret(t *testing.T) {
	m := newValidManager(t)
	assert.NoError(t, m.Validate())
}

func TestValidate_MissingSecret(t *testing.T) {
	t.Setenv("HELIXMIND_AUTH_SECRET", "")

	m, err := NewManager()
	require.NoError(t, err)

	err = m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth secret")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{"bad port", func(cfg *Config) { cfg.Server.Port = -1 }, "server port"},
		{"unknown backend", func(cfg *Config) { cfg.Storage.Backend = "etcd" }, "storage backend"},
		{"sqlite without path", func(cfg *Config) { cfg.Storage.SQLite.Path = "" }, "sqlite path"},
		{"postgres without host", func(cfg *Config) {
			cfg.Storage.Backend = "postgres"
			cfg.Storage.Postgres.Host = ""
		}, "postgres host"},
		{"missing model path", func(cfg *Config) { cfg.Model.Path = "" }, "model artifact"},
		{"zero workers", func(cfg *Config) { cfg.Worker.Count = 0 }, "worker count"},
		{"bad log level", func(cfg *Config) { cfg.Logging.Level = "loud" }, "log level"},
		{"non-positive token ttl", func(cfg *Config) { cfg.Auth.TokenTTL = 0 }, "token TTL"},
		{"non-positive upload limit", func(cfg *Config) { cfg.Upload.MaxFileSize = 0 }, "file size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newValidManager(t)
			tt.mutate(m.GetConfig())

			err := m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
