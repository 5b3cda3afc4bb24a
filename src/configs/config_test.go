package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, ".appdata", c.AppDataPath)
	assert.Equal(t, "appdata.json", c.Storage.FlatStoreFile)
	assert.Equal(t, "appdata.db", c.Storage.StructStoreFile)
	assert.Equal(t, 256, c.Storage.CacheSize)
}

func TestConfig_Verify(t *testing.T) {
	var cfg *Config
	assert.Error(t, cfg.Verify())

	cfg = NewConfig()
	cfg.Log.OutPutFolder = os.TempDir()
	assert.NoError(t, cfg.Verify())

	cfg.Log.OutPutFolder = "foobar"
	assert.Error(t, cfg.Verify())

	cfg.Log.OutPutFolder = os.TempDir()
	cfg.Sentry.Enable = true
	assert.Error(t, cfg.Verify())
	cfg.Sentry.DSN = "https://foo@bar.ingest.sentry.io/1"
	assert.NoError(t, cfg.Verify())
}

func TestNewConfigWithBytes(t *testing.T) {
	yml := `
debug: true
app_data_path: /tmp/momentum
storage:
  flat_store_file: data.json
`
	cfg, err := NewConfigWithBytes([]byte(yml))
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "/tmp/momentum", cfg.AppDataPath)
	assert.Equal(t, "data.json", cfg.Storage.FlatStoreFile)
	// 未指定的字段应回退到默认值
	assert.Equal(t, "appdata.db", cfg.Storage.StructStoreFile)
	assert.Equal(t, 256, cfg.Storage.CacheSize)
	assert.Equal(t, filepath.Join("/tmp/momentum", "data.json"), cfg.FlatStorePath())
}

func TestNewConfigWithFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(file, []byte("debug: true\n"), 0644))

	cfg, err := NewConfigWithFile(file)
	require.NoError(t, err)
	assert.Equal(t, file, cfg.File)
	assert.True(t, cfg.Debug)

	_, err = NewConfigWithFile(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}
