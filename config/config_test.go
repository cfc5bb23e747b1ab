package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, "sqlite", cfg.Database.Type)
	require.Equal(t, 0.25, cfg.DefaultConf)
	require.Equal(t, 20, cfg.MaxUploadMB)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9000"
default_conf: 0.4
database:
  type: postgres
  dsn: "host=db user=odh dbname=odh"
transcode:
  timeout: 90s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddr)
	require.Equal(t, 0.4, cfg.DefaultConf)
	require.Equal(t, "postgres", cfg.Database.Type)
	require.Equal(t, 90*time.Second, cfg.Transcode.Timeout)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ODH_LISTEN_ADDR", ":7777")
	t.Setenv("ODH_DEFAULT_CONF", "0.55")
	t.Setenv("ODH_TRANSCODE_TIMEOUT", "30s")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":7777", cfg.ListenAddr)
	require.Equal(t, 0.55, cfg.DefaultConf)
	require.Equal(t, 30*time.Second, cfg.Transcode.Timeout)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: [oops"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
