// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/erasure")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	setRequiredEnv(t)

	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 720*time.Hour, c.Deletion.GracePeriod)
	assert.Equal(t, 5*time.Minute, c.Deletion.FinalWarningDelay)
	assert.Equal(t, 2*time.Minute, c.Deletion.PurgeTimeout)
	assert.Equal(t, 8, c.Scheduler.Workers)
	assert.Equal(t, "erasure:jobs", c.Scheduler.Key)
	assert.Equal(t, 3, c.Notify.MaxAttempts)
	assert.True(t, c.Database.AutoMigrate)
	assert.Same(t, c, Get())
}

func TestLoadFileThenEnv(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	setRequiredEnv(t)
	t.Setenv("DELETION_GRACE_PERIOD", "48h")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
deletion:
  grace_period: 240h
  purge_timeout: 30s
  purge_tables:
    - table: posts
      column: author_id
scheduler:
  workers: 2
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, c.Deletion.GracePeriod)
	assert.Equal(t, 30*time.Second, c.Deletion.PurgeTimeout)
	assert.Equal(t, 2, c.Scheduler.Workers)
	require.Len(t, c.Deletion.PurgeTables, 1)
	assert.Equal(t, PurgeTable{Table: "posts", Column: "author_id"}, c.Deletion.PurgeTables[0])
}

func TestValidateDeletion(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "zero grace period",
			mutate: func(c *Config) { c.Deletion.GracePeriod = 0 },
			errMsg: "deletion.grace_period",
		},
		{
			name:   "zero final warning",
			mutate: func(c *Config) { c.Deletion.FinalWarningDelay = 0 },
			errMsg: "deletion.final_warning_delay",
		},
		{
			name:   "stale window inside purge timeout",
			mutate: func(c *Config) { c.Deletion.StalePurgeAfter = c.Deletion.PurgeTimeout },
			errMsg: "deletion.stale_purge_after",
		},
		{
			name:   "negative sweep interval",
			mutate: func(c *Config) { c.Deletion.SweepInterval = -time.Second },
			errMsg: "deletion.sweep_interval",
		},
		{
			name:   "purge table without column",
			mutate: func(c *Config) { c.Deletion.PurgeTables = []PurgeTable{{Table: "posts"}} },
			errMsg: "purge_tables[0]",
		},
		{
			name:   "no workers",
			mutate: func(c *Config) { c.Scheduler.Workers = 0 },
			errMsg: "scheduler.workers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := validate(c)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	require.NoError(t, validate(validConfig()))
}

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{URL: "postgres://x"},
		Redis:    RedisConfig{URL: "redis://x"},
		JWT:      JWTConfig{PrivateKeyPath: "k", PublicKeyPath: "p"},
		Server:   ServerConfig{ReadTimeout: time.Second, WriteTimeout: time.Second},
		Deletion: DeletionConfig{
			GracePeriod:       time.Hour,
			FinalWarningDelay: time.Minute,
			PurgeTimeout:      time.Minute,
			StalePurgeAfter:   30 * time.Minute,
			SweepBatchSize:    10,
		},
		Scheduler: SchedulerConfig{Workers: 1, PollInterval: time.Second, Key: "k"},
		Notify:    NotifyConfig{MaxAttempts: 1},
	}
}
