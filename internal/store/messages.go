package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

// messageRow is the flat database shape of a message; address lists and the
// references chain are stored as JSON text columns.
type messageRow struct {
	ID          int64     `db:"id"`
	AccountID   int64     `db:"account_id"`
	FolderID    string    `db:"folder_id"`
	UID         uint32    `db:"uid"`
	MessageID   string    `db:"message_id"`
	Subject     string    `db:"subject"`
	FromName    string    `db:"from_name"`
	FromAddress string    `db:"from_address"`
	ToList      string    `db:"to_list"`
	CcList      string    `db:"cc_list"`
	BccList     string    `db:"bcc_list"`
	Date        time.Time `db:"date"`
	BodyText    string    `db:"body_text"`
	BodyHTML    string    `db:"body_html"`
	Read        bool      `db:"read"`
	Starred     bool      `db:"starred"`
	Draft       bool      `db:"draft"`
	InReplyTo   string    `db:"in_reply_to"`
	References  string    `db:"reference_list"`
	ParseFailed bool      `db:"parse_failed"`
	CachedAt    time.Time `db:"cached_at"`
}

func rowFromMessage(msg *types.Message) (*messageRow, error) {
	toJSON, err := json.Marshal(msg.To)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recipients: %w", err)
	}
	ccJSON, err := json.Marshal(msg.Cc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cc list: %w", err)
	}
	bccJSON, err := json.Marshal(msg.Bcc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bcc list: %w", err)
	}
	refsJSON, err := json.Marshal(msg.References)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal references: %w", err)
	}

	return &messageRow{
		ID:          msg.ID,
		AccountID:   msg.AccountID,
		FolderID:    msg.FolderID,
		UID:         msg.UID,
		MessageID:   msg.MessageID,
		Subject:     msg.Subject,
		FromName:    msg.FromName,
		FromAddress: msg.FromAddress,
		ToList:      string(toJSON),
		CcList:      string(ccJSON),
		BccList:     string(bccJSON),
		Date:        msg.Date,
		BodyText:    msg.BodyText,
		BodyHTML:    msg.BodyHTML,
		Read:        msg.Read,
		Starred:     msg.Starred,
		Draft:       msg.Draft,
		InReplyTo:   msg.InReplyTo,
		References:  string(refsJSON),
		ParseFailed: msg.ParseFailed,
		CachedAt:    msg.CachedAt,
	}, nil
}

func (r *messageRow) toMessage() (types.Message, error) {
	msg := types.Message{
		ID:          r.ID,
		AccountID:   r.AccountID,
		FolderID:    r.FolderID,
		UID:         r.UID,
		MessageID:   r.MessageID,
		Subject:     r.Subject,
		FromName:    r.FromName,
		FromAddress: r.FromAddress,
		Date:        r.Date,
		BodyText:    r.BodyText,
		BodyHTML:    r.BodyHTML,
		Read:        r.Read,
		Starred:     r.Starred,
		Draft:       r.Draft,
		InReplyTo:   r.InReplyTo,
		ParseFailed: r.ParseFailed,
		CachedAt:    r.CachedAt,
	}
	if err := json.Unmarshal([]byte(r.ToList), &msg.To); err != nil {
		return msg, fmt.Errorf("failed to unmarshal recipients: %w", err)
	}
	if err := json.Unmarshal([]byte(r.CcList), &msg.Cc); err != nil {
		return msg, fmt.Errorf("failed to unmarshal cc list: %w", err)
	}
	if err := json.Unmarshal([]byte(r.BccList), &msg.Bcc); err != nil {
		return msg, fmt.Errorf("failed to unmarshal bcc list: %w", err)
	}
	if err := json.Unmarshal([]byte(r.References), &msg.References); err != nil {
		return msg, fmt.Errorf("failed to unmarshal references: %w", err)
	}
	return msg, nil
}

// InsertMessage stores a new message and fills in its assigned ID. Inserting
// a message whose identity (account, Message-ID) is already mirrored fails.
func (s *Store) InsertMessage(ctx context.Context, msg *types.Message) error {
	if msg.CachedAt.IsZero() {
		msg.CachedAt = time.Now()
	}

	row, err := rowFromMessage(msg)
	if err != nil {
		return err
	}

	result, err := s.db.NamedExecContext(ctx, `
		INSERT INTO messages (account_id, folder_id, uid, message_id, subject, from_name,
		                      from_address, to_list, cc_list, bcc_list, date, body_text,
		                      body_html, read, starred, draft, in_reply_to, reference_list,
		                      parse_failed, cached_at)
		VALUES (:account_id, :folder_id, :uid, :message_id, :subject, :from_name,
		        :from_address, :to_list, :cc_list, :bcc_list, :date, :body_text,
		        :body_html, :read, :starred, :draft, :in_reply_to, :reference_list,
		        :parse_failed, :cached_at)`,
		row)
	if err != nil {
		return fmt.Errorf("failed to insert message %q: %w", msg.MessageID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read message id: %w", err)
	}
	msg.ID = id
	return nil
}

// HasMessage reports whether the account already mirrors the Message-ID
func (s *Store) HasMessage(ctx context.Context, accountID int64, messageID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages WHERE account_id = ? AND message_id = ?`,
		accountID, messageID)
	if err != nil {
		return false, fmt.Errorf("failed to check message %q: %w", messageID, err)
	}
	return count > 0, nil
}

// GetMessageCountInFolder returns the number of mirrored messages in the folder
func (s *Store) GetMessageCountInFolder(ctx context.Context, folderID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages WHERE folder_id = ?`, folderID)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages in folder %s: %w", folderID, err)
	}
	return count, nil
}

// GetMessageByIdentity returns the message or nil when it is not mirrored
func (s *Store) GetMessageByIdentity(ctx context.Context, accountID int64, messageID string) (*types.Message, error) {
	var row messageRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM messages WHERE account_id = ? AND message_id = ?`,
		accountID, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load message %q: %w", messageID, err)
	}
	msg, err := row.toMessage()
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessagesInFolder returns the folder's messages newest first
func (s *Store) ListMessagesInFolder(ctx context.Context, folderID string, limit, offset int) ([]types.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM messages WHERE folder_id = ? ORDER BY date DESC, uid DESC LIMIT ? OFFSET ?`,
		folderID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages in folder %s: %w", folderID, err)
	}

	out := make([]types.Message, 0, len(rows))
	for i := range rows {
		msg, err := rows[i].toMessage()
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// MarkMessageRead updates the local read flag of a mirrored message
func (s *Store) MarkMessageRead(ctx context.Context, accountID int64, messageID string, read bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET read = ? WHERE account_id = ? AND message_id = ?`,
		read, accountID, messageID)
	if err != nil {
		return fmt.Errorf("failed to mark message %q: %w", messageID, err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("message %q not mirrored for account %d", messageID, accountID)
	}
	return nil
}

// DeleteMessage removes a mirrored message
func (s *Store) DeleteMessage(ctx context.Context, accountID int64, messageID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE account_id = ? AND message_id = ?`,
		accountID, messageID); err != nil {
		return fmt.Errorf("failed to delete message %q: %w", messageID, err)
	}
	return nil
}
