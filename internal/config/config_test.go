package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BILLDECK_CONFIG", "")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8787/api", c.Remote.BaseURL)
	require.Equal(t, 0.85, c.Extract.AutoThreshold)
	require.Equal(t, 50, c.Extract.MaxResults)
	require.Equal(t, 30, c.Extract.DaysBack)
	require.Equal(t, 10, c.Undo.WindowSeconds)
	require.Equal(t, "info", c.Log.Level)
	require.Contains(t, c.Database.Path, "billdeck.db")
}

func TestLoadFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[remote]
base_url = "https://bills.example.com/api"

[extract]
auto_threshold = 0.9
days_back = 14

[undo]
window_seconds = 5
`), 0o644))
	t.Setenv("BILLDECK_CONFIG", path)
	t.Setenv("HOME", dir)

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://bills.example.com/api", c.Remote.BaseURL)
	require.Equal(t, 0.9, c.Extract.AutoThreshold)
	require.Equal(t, 14, c.Extract.DaysBack)
	require.Equal(t, 5, c.Undo.WindowSeconds)
	require.Equal(t, 50, c.Extract.MaxResults, "unset keys keep their defaults")
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[extract]
auto_threshold = 1.5
`), 0o644))
	t.Setenv("BILLDECK_CONFIG", path)
	t.Setenv("HOME", dir)

	_, err := Load()
	require.Error(t, err)
}

func TestTokenResolution(t *testing.T) {
	t.Setenv("MY_TOKEN_VAR", "s3cret")
	c := Config{}
	c.Remote.AuthTokenEnv = "MY_TOKEN_VAR"
	require.Equal(t, "s3cret", c.RemoteToken())

	c.Extract.AuthTokenEnv = "UNSET_TOKEN_VAR"
	require.Equal(t, "", c.ExtractToken())
}
