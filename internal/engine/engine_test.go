package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goforwarder2016/GfMail-sub000/internal/config"
	"github.com/goforwarder2016/GfMail-sub000/internal/notify"
	"github.com/goforwarder2016/GfMail-sub000/internal/provider"
	"github.com/goforwarder2016/GfMail-sub000/internal/secret"
	"github.com/goforwarder2016/GfMail-sub000/internal/store"
)

func testEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	st, err := store.Open(filepath.Join(t.TempDir(), "mirror.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	secrets := secret.NewStore(t.TempDir())
	return New(cfg, st, secrets, notify.NewHub(logger), logger)
}

func TestProfileForAppliesOverrides(t *testing.T) {
	cfg := &config.Config{
		Accounts: []config.AccountConfig{{
			Address:    "self@example.org",
			IMAPHost:   "mail.example.org",
			IMAPPort:   143,
			Encryption: "starttls",
		}},
	}

	profile := profileFor(cfg, "self@example.org")
	assert.Equal(t, "mail.example.org", profile.IMAPHost)
	assert.Equal(t, 143, profile.IMAPPort)
	assert.Equal(t, provider.EncryptionStartTLS, profile.IMAPEncryption)
}

func TestProfileForKeepsResolutionWithoutOverrides(t *testing.T) {
	cfg := &config.Config{
		Accounts: []config.AccountConfig{{Address: "user@163.com"}},
	}

	profile := profileFor(cfg, "user@163.com")
	assert.Equal(t, "imap.163.com", profile.IMAPHost)
	assert.True(t, profile.RequiresClientID)
}

func TestEnsureAccountsRegistersAndReconciles(t *testing.T) {
	cfg := &config.Config{
		SyncIntervalSec: 300,
		Accounts: []config.AccountConfig{
			{Address: "user@example.org", DisplayName: "Work", SyncEnabled: true},
			{Address: "off@example.org", SyncEnabled: false},
		},
	}
	e := testEngine(t, cfg)
	ctx := context.Background()

	require.NoError(t, e.EnsureAccounts(ctx))

	account, err := e.store.GetAccountByAddress(ctx, "user@example.org")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "Work", account.DisplayName)
	assert.True(t, account.SyncEnabled)

	disabled, err := e.store.GetAccountByAddress(ctx, "off@example.org")
	require.NoError(t, err)
	require.NotNil(t, disabled)
	assert.False(t, disabled.SyncEnabled)

	// a second pass is idempotent and picks up config toggles
	cfg.Accounts[1].SyncEnabled = true
	require.NoError(t, e.EnsureAccounts(ctx))

	reloaded, _ := e.store.GetAccountByAddress(ctx, "off@example.org")
	assert.True(t, reloaded.SyncEnabled)

	accounts, err := e.store.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestSyncAccountRejectsUnknownAddress(t *testing.T) {
	e := testEngine(t, &config.Config{SyncIntervalSec: 300})
	err := e.SyncAccount(context.Background(), "ghost@example.org")
	assert.ErrorContains(t, err, "not registered")
}
