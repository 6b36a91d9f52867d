package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih-ucgun/pldownloader/internal/core"
	"github.com/melih-ucgun/pldownloader/internal/crypto"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pldownloader.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func withMasterKey(t *testing.T, key string) {
	t.Helper()
	prev := masterKey
	masterKey = func() string { return key }
	t.Cleanup(func() { masterKey = prev })
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PLD_TEST_ROOT", "/srv/files")

	path := writeConfig(t, `
app_id: com.example.notes
platform: desktop
log_level: debug
storage:
  private_root: ${PLD_TEST_ROOT}/private-data
  on_conflict: rename
download:
  enabled: true
  timeout: 15s
public_rules:
  - when: 'MimeType startsWith "image/"'
    subdir: Pictures
history:
  path: /tmp/history.db
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "com.example.notes", cfg.AppID)
	assert.Equal(t, "/srv/files/private-data", cfg.Storage.PrivateRoot)
	assert.Equal(t, "rename", cfg.Storage.OnConflict)
	assert.True(t, cfg.Download.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Download.Timeout)
	assert.Equal(t, "pldownloader", cfg.Download.UserAgent)
	assert.Len(t, cfg.PublicRules, 1)
	assert.Equal(t, core.FamilyDesktop, cfg.Family(core.FamilyMobile))
	assert.Equal(t, "DEBUG", cfg.SlogLevel().String())
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PLD_DOTENV_APP=com.from.env\n"), 0644))
	path := filepath.Join(dir, "pldownloader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app_id: ${PLD_DOTENV_APP}\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("PLD_DOTENV_APP") })

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "com.from.env", cfg.AppID)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "app_id: app\nstorage:\n  remote:\n    address: files.local\n    user: u\n"))
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.Platform)
	assert.Equal(t, "overwrite", cfg.Storage.OnConflict)
	assert.Equal(t, 22, cfg.Storage.Remote.Port)
	assert.Equal(t, 60*time.Second, cfg.Download.Timeout)
	assert.Equal(t, core.FamilyMobile, cfg.Family(core.FamilyMobile))
}

func TestLoadConfig_Encrypted(t *testing.T) {
	sealed, err := crypto.Encrypt("bridge-secret", "master")
	require.NoError(t, err)

	path := writeConfig(t, "app_id: app\nbridge:\n  address: localhost:7777\n  token: \""+sealed+"\"\n")

	withMasterKey(t, "master")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "bridge-secret", cfg.Bridge.Token)

	withMasterKey(t, "other")
	_, err = LoadConfig(path)
	assert.Error(t, err)

	withMasterKey(t, "")
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, MasterKeyEnv)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty app id", func(c *Config) { c.AppID = "" }},
		{"app id with separator", func(c *Config) { c.AppID = "a/b" }},
		{"unknown platform", func(c *Config) { c.Platform = "tv" }},
		{"unknown conflict policy", func(c *Config) { c.Storage.OnConflict = "merge" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"remote without address", func(c *Config) { c.Storage.Remote = &Remote{Port: 22} }},
		{"remote bad port", func(c *Config) { c.Storage.Remote = &Remote{Address: "h", Port: 70000} }},
		{"escaping subdir", func(c *Config) { c.PublicRules = []PublicRule{{When: "true", Subdir: "../etc"}} }},
		{"bad rule", func(c *Config) { c.PublicRules = []PublicRule{{When: "Size >", Subdir: "x"}} }},
		{"empty rule", func(c *Config) { c.PublicRules = []PublicRule{{Subdir: "x"}} }},
	}

	assert.NoError(t, Default().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRoots(t *testing.T) {
	ctx := &core.SystemContext{DataDir: "/home/u/.local/share", DownloadDir: "/home/u/Downloads"}

	cfg := Default()
	cfg.AppID = "com.example.app"
	data, public, err := cfg.Roots(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/u/.local/share", "com.example.app"), data)
	assert.Equal(t, "/home/u/Downloads", public)

	cfg.Storage.PrivateRoot = "/custom/data"
	cfg.Storage.PublicRoot = "/custom/public"
	data, public, err = cfg.Roots(&core.SystemContext{})
	require.NoError(t, err)
	assert.Equal(t, "/custom/data", data)
	assert.Equal(t, "/custom/public", public)

	_, _, err = Default().Roots(&core.SystemContext{})
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadOrDefault(DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, "pldownloader", cfg.AppID)

	_, err = LoadOrDefault("missing.yaml")
	assert.Error(t, err)
}
