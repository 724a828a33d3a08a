package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/goforwarder2016/GfMail-sub000/internal/imapx"
	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

// Orchestrator sequences full account syncs: connect, reconcile folders,
// fetch incremental messages per folder. It enforces the single-active-job
// invariant per account and is the only writer of account sync status.
type Orchestrator struct {
	accounts AccountStore
	folders  FolderStore
	messages MessageStore
	secrets  SecretStore
	notifier NotificationSink
	sessions SessionFactory
	status   *StatusRegistry
	logger   *logrus.Logger

	mu   gosync.Mutex
	jobs map[int64]*job
}

// job is one in-flight account sync
type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOrchestrator wires the orchestrator to its collaborators
func NewOrchestrator(accounts AccountStore, folders FolderStore, messages MessageStore,
	secrets SecretStore, notifier NotificationSink, sessions SessionFactory,
	status *StatusRegistry, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		accounts: accounts,
		folders:  folders,
		messages: messages,
		secrets:  secrets,
		notifier: notifier,
		sessions: sessions,
		status:   status,
		logger:   logger,
		jobs:     make(map[int64]*job),
	}
}

// StartSync begins a full sync for the account, cancelling and awaiting any
// in-flight job for the same account first so that at most one job ever
// touches the account's session.
func (o *Orchestrator) StartSync(ctx context.Context, accountID int64) error {
	account, err := o.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("account %d: %w", accountID, err)
	}
	if account == nil {
		return fmt.Errorf("account %d not found", accountID)
	}
	if !account.Enabled || !account.SyncEnabled {
		return fmt.Errorf("account %d: sync disabled", accountID)
	}

	o.replaceJob(ctx, *account, "")
	return nil
}

// SyncFolder syncs a single folder of the account, replacing any running job
func (o *Orchestrator) SyncFolder(ctx context.Context, accountID int64, folderID string) error {
	account, err := o.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("account %d: %w", accountID, err)
	}
	if account == nil {
		return fmt.Errorf("account %d not found", accountID)
	}

	o.replaceJob(ctx, *account, folderID)
	return nil
}

// StopSync cancels the account's job, awaits its termination and resets the
// published state to idle
func (o *Orchestrator) StopSync(accountID int64) {
	o.cancelAndAwait(accountID)
	o.status.Set(accountID, types.SyncIdle, "")
}

// Wait blocks until the account's current job (if any) has terminated
func (o *Orchestrator) Wait(accountID int64) {
	o.mu.Lock()
	current := o.jobs[accountID]
	o.mu.Unlock()
	if current != nil {
		<-current.done
	}
}

// Shutdown stops every running job
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	ids := make([]int64, 0, len(o.jobs))
	for id := range o.jobs {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	for _, id := range ids {
		o.cancelAndAwait(id)
	}
}

// replaceJob installs a new job for the account after terminating the old one
func (o *Orchestrator) replaceJob(ctx context.Context, account types.Account, onlyFolderID string) {
	o.cancelAndAwait(account.ID)

	jobCtx, cancel := context.WithCancel(ctx)
	j := &job{cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	o.jobs[account.ID] = j
	o.mu.Unlock()

	go func() {
		defer close(j.done)
		defer cancel()
		o.runJob(jobCtx, account, onlyFolderID)
	}()
}

// cancelAndAwait terminates the account's running job, if any
func (o *Orchestrator) cancelAndAwait(accountID int64) {
	o.mu.Lock()
	current := o.jobs[accountID]
	delete(o.jobs, accountID)
	o.mu.Unlock()

	if current != nil {
		current.cancel()
		<-current.done
	}
}

// runJob executes the phases of one account sync
func (o *Orchestrator) runJob(ctx context.Context, account types.Account, onlyFolderID string) {
	log := o.logger.WithFields(logrus.Fields{
		"account_id": account.ID,
		"address":    account.Address,
	})

	o.status.Set(account.ID, types.SyncConnecting, "")

	secret, err := o.secrets.GetPassword(ctx, account)
	if err != nil {
		o.failAccount(ctx, account, fmt.Errorf("credentials unavailable: %w", err), log)
		return
	}

	session := o.sessions(account)
	defer func() {
		if err := session.Disconnect(); err != nil {
			log.WithError(err).Debug("Disconnect failed")
		}
	}()

	if err := session.Connect(ctx, secret); err != nil {
		o.failAccount(ctx, account, err, log)
		return
	}

	o.status.Set(account.ID, types.SyncSyncing, "")

	locals, err := o.reconcileFolders(ctx, session, account, log)
	if err != nil {
		o.failAccount(ctx, account, err, log)
		return
	}

	sortFoldersForSync(locals)

	for i := range locals {
		folder := locals[i]
		if !folder.CanHoldMessages {
			continue
		}
		if onlyFolderID != "" && folder.ID != onlyFolderID {
			continue
		}
		if err := ctx.Err(); err != nil {
			log.Debug("Sync cancelled between folders")
			return
		}

		if err := o.syncFolder(ctx, session, account, &folder, log); err != nil {
			if imapx.IsRestrictedAccess(err) {
				// Expected on providers that gate non-INBOX folders behind
				// their own authorization step; skip and keep going
				log.WithError(err).WithField("folder", folder.FullName).Info("Folder restricted by provider, skipped")
				continue
			}
			o.failAccount(ctx, account, fmt.Errorf("folder %s: %w", folder.FullName, err), log)
			return
		}
	}

	if err := ctx.Err(); err != nil {
		return
	}

	now := time.Now()
	if err := o.accounts.UpdateSyncStatus(ctx, account.ID, &now, ""); err != nil {
		log.WithError(err).Warn("Failed to record sync completion")
	}
	o.status.Set(account.ID, types.SyncCompleted, "")
	log.Info("Account sync completed")
}

// reconcileFolders refreshes the local folder mirror from the server listing
// and returns the post-reconciliation local set
func (o *Orchestrator) reconcileFolders(ctx context.Context, session ProtocolSession, account types.Account, log *logrus.Entry) ([]types.LocalFolder, error) {
	remote, err := session.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}

	locals, err := o.folders.GetFoldersByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("load local folders: %w", err)
	}

	result := Reconcile(account.ID, remote, locals)
	for i := range result.Inserts {
		if err := o.folders.InsertFolder(ctx, &result.Inserts[i]); err != nil {
			return nil, fmt.Errorf("insert folder %s: %w", result.Inserts[i].FullName, err)
		}
	}
	for i := range result.Updates {
		if err := o.folders.UpdateFolder(ctx, &result.Updates[i]); err != nil {
			return nil, fmt.Errorf("update folder %s: %w", result.Updates[i].FullName, err)
		}
	}
	for i := range result.Deletions {
		if err := o.folders.DeleteFolder(ctx, result.Deletions[i].ID); err != nil {
			return nil, fmt.Errorf("delete folder %s: %w", result.Deletions[i].FullName, err)
		}
	}

	log.WithFields(logrus.Fields{
		"inserted": len(result.Inserts),
		"updated":  len(result.Updates),
		"deleted":  len(result.Deletions),
	}).Debug("Folders reconciled")

	return o.folders.GetFoldersByAccount(ctx, account.ID)
}

// syncFolder fetches and persists the folder's missing messages
func (o *Orchestrator) syncFolder(ctx context.Context, session ProtocolSession, account types.Account, folder *types.LocalFolder, log *logrus.Entry) error {
	localCount, err := o.messages.GetMessageCountInFolder(ctx, folder.ID)
	if err != nil {
		return fmt.Errorf("local count: %w", err)
	}

	fetcher := NewFetcher(session, o.messages, o.logger)
	fetched, err := fetcher.FetchIncremental(ctx, *folder, folder.MessageCount, localCount)
	if err != nil {
		return err
	}

	var inserted []types.Message
	for i := range fetched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.messages.InsertMessage(ctx, &fetched[i]); err != nil {
			log.WithError(err).WithField("message_id", fetched[i].MessageID).Warn("Failed to store message")
			continue
		}
		inserted = append(inserted, fetched[i])
	}

	folder.EverSynced = true
	now := time.Now()
	folder.LastSynced = &now
	if err := o.folders.UpdateFolder(ctx, folder); err != nil {
		log.WithError(err).WithField("folder", folder.FullName).Warn("Failed to update folder bookkeeping")
	}

	if len(inserted) > 0 {
		o.notifier.NotifyNewMessages(account, inserted)
	}

	log.WithFields(logrus.Fields{
		"folder": folder.FullName,
		"new":    len(inserted),
	}).Info("Folder synced")
	return nil
}

// failAccount records a fatal sync error on the account and publishes it
func (o *Orchestrator) failAccount(ctx context.Context, account types.Account, err error, log *logrus.Entry) {
	if ctx.Err() != nil {
		// Cancellation is not a failure; the replacing job owns the status
		return
	}
	log.WithError(err).Error("Account sync failed")
	if updateErr := o.accounts.UpdateSyncStatus(ctx, account.ID, nil, err.Error()); updateErr != nil {
		log.WithError(updateErr).Warn("Failed to record sync error")
	}
	o.status.Set(account.ID, types.SyncError, err.Error())
	o.notifier.NotifySyncFailure(account.ID, err.Error())
}

// sortFoldersForSync orders INBOX first, then by full name for stable runs
func sortFoldersForSync(folders []types.LocalFolder) {
	sort.SliceStable(folders, func(i, j int) bool {
		if (folders[i].Type == types.FolderInbox) != (folders[j].Type == types.FolderInbox) {
			return folders[i].Type == types.FolderInbox
		}
		return folders[i].FullName < folders[j].FullName
	})
}
