package types

import "time"

// Account represents a mail account whose mailbox is mirrored locally
type Account struct {
	ID          int64      `json:"id" db:"id"`
	Address     string     `json:"address" db:"address"`
	DisplayName string     `json:"display_name" db:"display_name"`
	Enabled     bool       `json:"enabled" db:"enabled"`
	SyncEnabled bool       `json:"sync_enabled" db:"sync_enabled"`
	LastSync    *time.Time `json:"last_sync,omitempty" db:"last_sync"`
	LastError   string     `json:"last_error,omitempty" db:"last_error"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// FolderType classifies the role of a mailbox folder
type FolderType string

const (
	FolderInbox   FolderType = "inbox"
	FolderSent    FolderType = "sent"
	FolderDrafts  FolderType = "drafts"
	FolderTrash   FolderType = "trash"
	FolderSpam    FolderType = "spam"
	FolderArchive FolderType = "archive"
	FolderCustom  FolderType = "custom"
)

// RemoteFolder is a folder as reported by the server during a listing pass.
// It is ephemeral; LocalFolder is its persisted mirror.
type RemoteFolder struct {
	FullName        string     `json:"full_name"`
	DisplayName     string     `json:"display_name"`
	Type            FolderType `json:"type"`
	MessageCount    int        `json:"message_count"`
	UnreadCount     int        `json:"unread_count"`
	Subscribed      bool       `json:"subscribed"`
	CanHoldMessages bool       `json:"can_hold_messages"`
	Parent          string     `json:"parent,omitempty"`
}

// LocalFolder is the persisted mirror of a RemoteFolder, keyed by
// (account, full name). FullName is the join key between remote and local
// records; DisplayName and ID are fallbacks for providers that change the
// encoding of FullName between listing calls.
type LocalFolder struct {
	ID              string     `json:"id" db:"id"`
	AccountID       int64      `json:"account_id" db:"account_id"`
	FullName        string     `json:"full_name" db:"full_name"`
	DisplayName     string     `json:"display_name" db:"display_name"`
	Type            FolderType `json:"type" db:"type"`
	MessageCount    int        `json:"message_count" db:"message_count"`
	UnreadCount     int        `json:"unread_count" db:"unread_count"`
	Subscribed      bool       `json:"subscribed" db:"subscribed"`
	CanHoldMessages bool       `json:"can_hold_messages" db:"can_hold_messages"`
	Parent          string     `json:"parent,omitempty" db:"parent"`
	EverSynced      bool       `json:"ever_synced" db:"ever_synced"`
	LastSynced      *time.Time `json:"last_synced,omitempty" db:"last_synced"`
}

// Message represents one mirrored mail message
type Message struct {
	ID          int64     `json:"id" db:"id"`
	AccountID   int64     `json:"account_id" db:"account_id"`
	FolderID    string    `json:"folder_id" db:"folder_id"`
	UID         uint32    `json:"uid" db:"uid"`
	MessageID   string    `json:"message_id" db:"message_id"`
	Subject     string    `json:"subject" db:"subject"`
	FromName    string    `json:"from_name" db:"from_name"`
	FromAddress string    `json:"from_address" db:"from_address"`
	To          []string  `json:"to,omitempty"`
	Cc          []string  `json:"cc,omitempty"`
	Bcc         []string  `json:"bcc,omitempty"`
	Date        time.Time `json:"date" db:"date"`
	BodyText    string    `json:"body_text,omitempty" db:"body_text"`
	BodyHTML    string    `json:"body_html,omitempty" db:"body_html"`
	Read        bool      `json:"read" db:"read"`
	Starred     bool      `json:"starred" db:"starred"`
	Draft       bool      `json:"draft" db:"draft"`
	InReplyTo   string    `json:"in_reply_to,omitempty" db:"in_reply_to"`
	References  []string  `json:"references,omitempty"`
	ParseFailed bool      `json:"parse_failed,omitempty" db:"parse_failed"`
	CachedAt    time.Time `json:"cached_at" db:"cached_at"`
}

// SyncState describes where an account's sync job currently is
type SyncState string

const (
	SyncIdle       SyncState = "idle"
	SyncConnecting SyncState = "connecting"
	SyncSyncing    SyncState = "syncing"
	SyncCompleted  SyncState = "completed"
	SyncError      SyncState = "error"
)

// SyncStatus is the published per-account status entry. Overwritten on every
// transition, never historized.
type SyncStatus struct {
	AccountID int64      `json:"account_id"`
	State     SyncState  `json:"state"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
}
