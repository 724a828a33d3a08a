// Package engine wires configuration, storage, secrets and the sync machinery
// into the running daemon: it registers configured accounts, schedules
// periodic full syncs and runs the realtime watchers.
package engine

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/goforwarder2016/GfMail-sub000/internal/config"
	"github.com/goforwarder2016/GfMail-sub000/internal/imapx"
	"github.com/goforwarder2016/GfMail-sub000/internal/notify"
	"github.com/goforwarder2016/GfMail-sub000/internal/provider"
	"github.com/goforwarder2016/GfMail-sub000/internal/secret"
	"github.com/goforwarder2016/GfMail-sub000/internal/store"
	"github.com/goforwarder2016/GfMail-sub000/internal/sync"
	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

// Engine drives the daemon's sync lifecycle
type Engine struct {
	cfg          *config.Config
	store        *store.Store
	secrets      *secret.Store
	hub          *notify.Hub
	status       *sync.StatusRegistry
	orchestrator *sync.Orchestrator
	logger       *logrus.Logger
}

// New assembles the engine from its collaborators
func New(cfg *config.Config, st *store.Store, secrets *secret.Store, hub *notify.Hub, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}

	status := sync.NewStatusRegistry()
	sessions := sessionFactory(cfg, logger)
	orchestrator := sync.NewOrchestrator(st, st, st, secrets, hub, sessions, status, logger)

	return &Engine{
		cfg:          cfg,
		store:        st,
		secrets:      secrets,
		hub:          hub,
		status:       status,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// sessionFactory builds protocol sessions from provider resolution plus any
// per-account config overrides
func sessionFactory(cfg *config.Config, logger *logrus.Logger) sync.SessionFactory {
	return func(account types.Account) sync.ProtocolSession {
		profile := profileFor(cfg, account.Address)
		return imapx.NewSession(account.Address, profile, logger)
	}
}

// profileFor resolves the server profile for an address and applies the
// configured overrides, if any
func profileFor(cfg *config.Config, address string) provider.ServerProfile {
	profile := provider.Resolve(address)
	for i := range cfg.Accounts {
		acc := &cfg.Accounts[i]
		if acc.Address != address {
			continue
		}
		if acc.IMAPHost != "" {
			profile.IMAPHost = acc.IMAPHost
		}
		if acc.IMAPPort != 0 {
			profile.IMAPPort = acc.IMAPPort
		}
		if acc.Encryption != "" {
			profile.IMAPEncryption = provider.Encryption(acc.Encryption)
		}
		break
	}
	return profile
}

// EnsureAccounts registers configured accounts in the mirror database and
// reconciles their toggles with the configuration
func (e *Engine) EnsureAccounts(ctx context.Context) error {
	for i := range e.cfg.Accounts {
		acc := &e.cfg.Accounts[i]

		existing, err := e.store.GetAccountByAddress(ctx, acc.Address)
		if err != nil {
			return err
		}
		if existing == nil {
			account := types.Account{
				Address:     acc.Address,
				DisplayName: acc.DisplayName,
				Enabled:     true,
				SyncEnabled: acc.SyncEnabled,
			}
			if err := e.store.InsertAccount(ctx, &account); err != nil {
				return fmt.Errorf("registering account %q: %w", acc.Address, err)
			}
			e.logger.WithField("address", acc.Address).Info("Account registered")
			continue
		}

		if existing.SyncEnabled != acc.SyncEnabled {
			if err := e.store.SetSyncEnabled(ctx, existing.ID, acc.SyncEnabled); err != nil {
				return err
			}
		}
	}
	return nil
}

// Run blocks until ctx is cancelled: it performs an initial full sync, then
// keeps syncing on the configured interval while the watchers deliver inbox
// deltas in between.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.EnsureAccounts(ctx); err != nil {
		return err
	}

	var wg gosync.WaitGroup
	e.startWatchers(ctx, &wg)

	e.SyncAll(ctx)

	interval := time.Duration(e.cfg.SyncIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.orchestrator.Shutdown()
			wg.Wait()
			return nil
		case <-ticker.C:
			e.SyncAll(ctx)
		}
	}
}

// SyncAll starts a sync job for every enabled account
func (e *Engine) SyncAll(ctx context.Context) {
	accounts, err := e.store.ListAccounts(ctx)
	if err != nil {
		e.logger.WithError(err).Error("Failed to list accounts for sync round")
		return
	}
	for _, account := range accounts {
		if !account.Enabled || !account.SyncEnabled {
			continue
		}
		if err := e.orchestrator.StartSync(ctx, account.ID); err != nil {
			e.logger.WithError(err).WithField("address", account.Address).Warn("Failed to start sync")
		}
	}
}

// SyncAccount runs a full sync for one account and waits for it to finish
func (e *Engine) SyncAccount(ctx context.Context, address string) error {
	account, err := e.store.GetAccountByAddress(ctx, address)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("account %q not registered", address)
	}
	if err := e.orchestrator.StartSync(ctx, account.ID); err != nil {
		return err
	}
	e.orchestrator.Wait(account.ID)
	return nil
}

// startWatchers launches a realtime watcher per configured watch account
func (e *Engine) startWatchers(ctx context.Context, wg *gosync.WaitGroup) {
	for i := range e.cfg.Accounts {
		acc := e.cfg.Accounts[i]
		if !acc.Watch || !acc.SyncEnabled {
			continue
		}

		account, err := e.store.GetAccountByAddress(ctx, acc.Address)
		if err != nil || account == nil {
			e.logger.WithField("address", acc.Address).Warn("Watch account not registered, skipping watcher")
			continue
		}

		watcher := sync.NewWatcher(*account, sessionFactory(e.cfg, e.logger),
			e.secrets, e.store, e.store, e.hub, e.logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.Run(ctx)
		}()
		e.logger.WithField("address", acc.Address).Info("Watcher started")
	}
}

// Status returns a snapshot of every account's published sync state
func (e *Engine) Status() map[int64]types.SyncStatus {
	return e.status.Snapshot()
}
