// Package sync implements the mailbox synchronization engine: folder
// reconciliation, incremental message fetch, the per-account sync
// orchestrator and the realtime watcher. Protocol mechanics live in
// internal/imapx; persistence belongs to the store collaborators declared
// here as interfaces.
package sync

import (
	"context"
	"time"

	"github.com/goforwarder2016/GfMail-sub000/internal/imapx"
	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

// ProtocolSession is the slice of imapx.Session the engine drives. A session
// is exclusively owned by one job or watcher loop at a time.
type ProtocolSession interface {
	Connect(ctx context.Context, secret string) error
	ListFolders(ctx context.Context) ([]types.RemoteFolder, error)
	OpenFolder(ctx context.Context, name string, mode imapx.Mode) error
	FetchRange(ctx context.Context, folder string, start, end uint32) ([]imapx.RawMessage, error)
	HighestUID(ctx context.Context, folder string) (uint32, error)
	MessageCount() int
	IdleWait(ctx context.Context, timeout time.Duration) error
	Disconnect() error
}

// SessionFactory builds a fresh session for an account. The orchestrator and
// the watcher each create their own; they never share one.
type SessionFactory func(account types.Account) ProtocolSession

// AccountStore provides account lookup and sync-status persistence
type AccountStore interface {
	GetAccountByID(ctx context.Context, id int64) (*types.Account, error)
	UpdateSyncStatus(ctx context.Context, id int64, lastSync *time.Time, syncErr string) error
}

// SecretStore retrieves account credentials; the engine never persists them
type SecretStore interface {
	GetPassword(ctx context.Context, account types.Account) (string, error)
}

// FolderStore persists the local folder mirror
type FolderStore interface {
	GetFoldersByAccount(ctx context.Context, accountID int64) ([]types.LocalFolder, error)
	InsertFolder(ctx context.Context, folder *types.LocalFolder) error
	UpdateFolder(ctx context.Context, folder *types.LocalFolder) error
	DeleteFolder(ctx context.Context, id string) error
}

// MessageStore persists mirrored messages
type MessageStore interface {
	GetMessageCountInFolder(ctx context.Context, folderID string) (int, error)
	HasMessage(ctx context.Context, accountID int64, messageID string) (bool, error)
	InsertMessage(ctx context.Context, msg *types.Message) error
}

// NotificationSink receives new-message batches and persistent failures
type NotificationSink interface {
	NotifyNewMessages(account types.Account, msgs []types.Message)
	NotifySyncFailure(accountID int64, reason string)
}
