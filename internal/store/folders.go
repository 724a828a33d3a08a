package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

// GetFoldersByAccount returns the account's mirrored folder records
func (s *Store) GetFoldersByAccount(ctx context.Context, accountID int64) ([]types.LocalFolder, error) {
	var folders []types.LocalFolder
	err := s.db.SelectContext(ctx, &folders,
		`SELECT * FROM folders WHERE account_id = ? ORDER BY full_name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders for account %d: %w", accountID, err)
	}
	return folders, nil
}

// GetFolderByID returns the folder or nil when it does not exist
func (s *Store) GetFolderByID(ctx context.Context, id string) (*types.LocalFolder, error) {
	var folder types.LocalFolder
	err := s.db.GetContext(ctx, &folder, `SELECT * FROM folders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load folder %s: %w", id, err)
	}
	return &folder, nil
}

// InsertFolder adds a new mirrored folder record
func (s *Store) InsertFolder(ctx context.Context, folder *types.LocalFolder) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO folders (id, account_id, full_name, display_name, type, message_count,
		                     unread_count, subscribed, can_hold_messages, parent, ever_synced, last_synced)
		VALUES (:id, :account_id, :full_name, :display_name, :type, :message_count,
		        :unread_count, :subscribed, :can_hold_messages, :parent, :ever_synced, :last_synced)`,
		folder)
	if err != nil {
		return fmt.Errorf("failed to insert folder %q: %w", folder.FullName, err)
	}
	return nil
}

// UpdateFolder overwrites the folder record identified by its ID
func (s *Store) UpdateFolder(ctx context.Context, folder *types.LocalFolder) error {
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE folders SET
			full_name = :full_name,
			display_name = :display_name,
			type = :type,
			message_count = :message_count,
			unread_count = :unread_count,
			subscribed = :subscribed,
			can_hold_messages = :can_hold_messages,
			parent = :parent,
			ever_synced = :ever_synced,
			last_synced = :last_synced
		WHERE id = :id`,
		folder)
	if err != nil {
		return fmt.Errorf("failed to update folder %q: %w", folder.FullName, err)
	}
	return nil
}

// DeleteFolder removes the folder; its cached messages cascade
func (s *Store) DeleteFolder(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete folder %s: %w", id, err)
	}
	return nil
}
