package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.DataPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 300, cfg.SyncIntervalSec)
	assert.Empty(t, cfg.Accounts)
}

func TestLoadParsesAccounts(t *testing.T) {
	path := writeConfig(t, `
data_path: /tmp/gfmail/mirror.db
log_level: debug
sync_interval_sec: 120
accounts:
  - address: user@163.com
    display_name: Work
    watch: true
  - address: self@example.org
    imap_host: mail.example.org
    imap_port: 143
    encryption: starttls
    sync_enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/gfmail/mirror.db", cfg.DataPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 120, cfg.SyncIntervalSec)
	require.Len(t, cfg.Accounts, 2)

	first := cfg.Accounts[0]
	assert.Equal(t, "user@163.com", first.Address)
	assert.True(t, first.SyncEnabled, "sync defaults to enabled when unset")
	assert.True(t, first.Watch)

	second := cfg.Accounts[1]
	assert.Equal(t, "mail.example.org", second.IMAPHost)
	assert.Equal(t, 143, second.IMAPPort)
	assert.Equal(t, "starttls", second.Encryption)
	assert.False(t, second.SyncEnabled, "explicit false survives loading")
}

func TestLoadRejectsDuplicateAddresses(t *testing.T) {
	path := writeConfig(t, `
accounts:
  - address: user@example.org
  - address: user@example.org
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "configured twice")
}

func TestLoadRejectsBadEncryption(t *testing.T) {
	path := writeConfig(t, `
accounts:
  - address: user@example.org
    encryption: tls13
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown encryption")
}

func TestLoadRejectsTooShortInterval(t *testing.T) {
	path := writeConfig(t, `
sync_interval_sec: 5
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "sync_interval_sec")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	cfg.Accounts = append(cfg.Accounts, AccountConfig{
		Address:     "user@example.org",
		SyncEnabled: true,
		Watch:       true,
	})

	require.NoError(t, Save(path, cfg))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, reloaded.Accounts, 1)
	assert.Equal(t, "user@example.org", reloaded.Accounts[0].Address)
	assert.True(t, reloaded.Accounts[0].Watch)
}
