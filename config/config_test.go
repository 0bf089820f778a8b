package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 600, cfg.Cache.KeyExpireSeconds)
	assert.Equal(t, 100000, cfg.Cache.ChunkSize)
	assert.Equal(t, 8, cfg.API.MaxConcurrent)
	assert.False(t, cfg.Dump.Enabled())
	assert.NotEmpty(t, cfg.Record.IdentityFields)
}

func TestCacheActiveRequiresEndpoint(t *testing.T) {
	c := CacheConfig{Enabled: true}
	assert.False(t, c.Active(), "enabled without endpoint must stay inactive")

	c.RedisHost = "localhost"
	c.RedisPort = 6379
	assert.True(t, c.Active())
	assert.Equal(t, "localhost:6379", c.Addr())

	c.Enabled = false
	assert.False(t, c.Active(), "operator opt-out wins over configured endpoint")
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RESULT_CACHING", "false")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_KEY_EXPIRE_TIME", "120")
	t.Setenv("DUMP_RECORDS_PATH", "/tmp/records")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "cache.internal:6380", cfg.Cache.Addr())
	assert.Equal(t, 120, cfg.Cache.KeyExpireSeconds)
	assert.True(t, cfg.Dump.Enabled())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("REDIS_KEY_EXPIRE_TIME", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRecordConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.yaml")
	content := []byte("identity_fields:\n  - subject\n  - object\n  - predicate\ncurated_apis:\n  - CTD API\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg := &Config{Record: DefaultRecordConfig()}
	require.NoError(t, cfg.LoadRecordConfig(path))

	assert.Equal(t, []string{"subject", "object", "predicate"}, cfg.Record.IdentityFields)
	assert.True(t, cfg.Record.IsCurated("CTD API"))
	assert.False(t, cfg.Record.IsCurated("Automat API"))
}

func TestLoadRecordConfigMissingFile(t *testing.T) {
	cfg := &Config{Record: DefaultRecordConfig()}
	err := cfg.LoadRecordConfig("/nonexistent/records.yaml")
	assert.Error(t, err)

	// Empty path is a no-op and keeps defaults
	cfg2 := &Config{Record: DefaultRecordConfig()}
	require.NoError(t, cfg2.LoadRecordConfig(""))
	assert.Equal(t, DefaultRecordConfig().IdentityFields, cfg2.Record.IdentityFields)
}
