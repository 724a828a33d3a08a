package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/goforwarder2016/GfMail-sub000/internal/imapx"
	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

const (
	defaultIdleTimeout  = 5 * time.Minute
	defaultPollInterval = 60 * time.Second
	defaultBackoffBase  = 2 * time.Second
	defaultBackoffMax   = 5 * time.Minute
	defaultMaxFailures  = 6
)

// Watcher is the per-account realtime loop. It holds its own session,
// preferring the server's long-poll primitive and falling back to fixed
// interval polling when that fails. Consecutive connection failures back off
// exponentially; past the failure cap the watcher parks with a persistent
// failure status instead of retrying forever, so a permanently broken
// account cannot starve shared resources.
type Watcher struct {
	account  types.Account
	sessions SessionFactory
	secrets  SecretStore
	folders  FolderStore
	messages MessageStore
	notifier NotificationSink
	logger   *logrus.Logger

	idleTimeout  time.Duration
	pollInterval time.Duration
	backoffBase  time.Duration
	backoffMax   time.Duration
	maxFailures  int
}

// NewWatcher creates a watcher for one account
func NewWatcher(account types.Account, sessions SessionFactory, secrets SecretStore,
	folders FolderStore, messages MessageStore, notifier NotificationSink,
	logger *logrus.Logger) *Watcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Watcher{
		account:      account,
		sessions:     sessions,
		secrets:      secrets,
		folders:      folders,
		messages:     messages,
		notifier:     notifier,
		logger:       logger,
		idleTimeout:  defaultIdleTimeout,
		pollInterval: defaultPollInterval,
		backoffBase:  defaultBackoffBase,
		backoffMax:   defaultBackoffMax,
		maxFailures:  defaultMaxFailures,
	}
}

// Run drives the watcher until ctx is cancelled or the failure cap is hit
func (w *Watcher) Run(ctx context.Context) {
	log := w.logger.WithFields(logrus.Fields{
		"account_id": w.account.ID,
		"address":    w.account.Address,
	})

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return
		}

		err := w.watchOnce(ctx, log, &failures)
		if err == nil || ctx.Err() != nil {
			return
		}

		failures++
		if failures >= w.maxFailures {
			reason := fmt.Sprintf("watcher gave up after %d consecutive failures: %v", failures, err)
			log.WithError(err).Error("Watcher reached failure cap, stopping")
			w.notifier.NotifySyncFailure(w.account.ID, reason)
			return
		}

		delay := backoffDelay(failures, w.backoffBase, w.backoffMax)
		log.WithError(err).WithFields(logrus.Fields{
			"failures": failures,
			"retry_in": delay,
		}).Warn("Watcher cycle failed, backing off")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// watchOnce connects and runs the wake/compare/fetch loop until an error or
// cancellation. A clean ctx cancellation returns nil.
func (w *Watcher) watchOnce(ctx context.Context, log *logrus.Entry, failures *int) error {
	secret, err := w.secrets.GetPassword(ctx, w.account)
	if err != nil {
		return fmt.Errorf("credentials unavailable: %w", err)
	}

	session := w.sessions(w.account)
	defer func() { _ = session.Disconnect() }()

	if err := session.Connect(ctx, secret); err != nil {
		return err
	}

	inbox, err := w.inboxFolder(ctx)
	if err != nil {
		return err
	}

	lastSeen, err := session.HighestUID(ctx, inbox.FullName)
	if err != nil {
		return fmt.Errorf("initial watermark: %w", err)
	}
	log.WithField("uid", lastSeen).Debug("Watcher baseline established")

	// A full cycle reaching this point resets the consecutive failure count
	*failures = 0

	usePolling := false
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if usePolling {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.pollInterval):
			}
		} else if err := session.IdleWait(ctx, w.idleTimeout); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Long-poll broke; degrade to interval polling on this connection
			log.WithError(err).Debug("Long-poll failed, switching to interval polling")
			usePolling = true
			continue
		}

		current, err := session.HighestUID(ctx, inbox.FullName)
		if err != nil {
			return fmt.Errorf("poll watermark: %w", err)
		}
		if current <= lastSeen {
			continue
		}

		if err := w.fetchDelta(ctx, session, inbox, log); err != nil {
			if imapx.IsRestrictedAccess(err) {
				log.WithError(err).Info("Watched folder became restricted")
				return nil
			}
			return err
		}
		lastSeen = current
	}
}

// fetchDelta pulls the messages the mirror is missing and emits the batch
func (w *Watcher) fetchDelta(ctx context.Context, session ProtocolSession, inbox types.LocalFolder, log *logrus.Entry) error {
	localCount, err := w.messages.GetMessageCountInFolder(ctx, inbox.ID)
	if err != nil {
		return fmt.Errorf("local count: %w", err)
	}
	remoteCount := session.MessageCount()

	fetcher := NewFetcher(session, w.messages, w.logger)
	fetched, err := fetcher.FetchIncremental(ctx, inbox, remoteCount, localCount)
	if err != nil {
		return err
	}

	var inserted []types.Message
	for i := range fetched {
		if err := w.messages.InsertMessage(ctx, &fetched[i]); err != nil {
			log.WithError(err).WithField("message_id", fetched[i].MessageID).Warn("Failed to store message")
			continue
		}
		inserted = append(inserted, fetched[i])
	}

	if len(inserted) > 0 {
		log.WithField("count", len(inserted)).Info("Watcher delivered new messages")
		w.notifier.NotifyNewMessages(w.account, inserted)
	}
	return nil
}

// inboxFolder finds the account's INBOX mirror record
func (w *Watcher) inboxFolder(ctx context.Context) (types.LocalFolder, error) {
	folders, err := w.folders.GetFoldersByAccount(ctx, w.account.ID)
	if err != nil {
		return types.LocalFolder{}, fmt.Errorf("load folders: %w", err)
	}
	for _, folder := range folders {
		if folder.Type == types.FolderInbox {
			return folder, nil
		}
	}
	return types.LocalFolder{}, fmt.Errorf("account %d has no inbox mirror yet", w.account.ID)
}

// backoffDelay returns the bounded exponential delay for the given attempt
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
