package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

// InsertAccount adds a new account and fills in its assigned ID
func (s *Store) InsertAccount(ctx context.Context, account *types.Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	result, err := s.db.NamedExecContext(ctx, `
		INSERT INTO accounts (address, display_name, enabled, sync_enabled, last_error, created_at)
		VALUES (:address, :display_name, :enabled, :sync_enabled, :last_error, :created_at)`,
		account)
	if err != nil {
		return fmt.Errorf("failed to insert account %q: %w", account.Address, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read account id: %w", err)
	}
	account.ID = id
	return nil
}

// GetAccountByID returns the account or nil when it does not exist
func (s *Store) GetAccountByID(ctx context.Context, id int64) (*types.Account, error) {
	var account types.Account
	err := s.db.GetContext(ctx, &account, `SELECT * FROM accounts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %d: %w", id, err)
	}
	return &account, nil
}

// GetAccountByAddress returns the account or nil when it does not exist
func (s *Store) GetAccountByAddress(ctx context.Context, address string) (*types.Account, error) {
	var account types.Account
	err := s.db.GetContext(ctx, &account, `SELECT * FROM accounts WHERE address = ?`, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %q: %w", address, err)
	}
	return &account, nil
}

// ListAccounts returns every configured account ordered by address
func (s *Store) ListAccounts(ctx context.Context) ([]types.Account, error) {
	var accounts []types.Account
	if err := s.db.SelectContext(ctx, &accounts, `SELECT * FROM accounts ORDER BY address`); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// UpdateSyncStatus records the outcome of a sync run. A nil lastSync leaves
// the previous completion timestamp untouched; syncErr is cleared on success.
func (s *Store) UpdateSyncStatus(ctx context.Context, id int64, lastSync *time.Time, syncErr string) error {
	var err error
	if lastSync != nil {
		_, err = s.db.ExecContext(ctx,
			`UPDATE accounts SET last_sync = ?, last_error = ? WHERE id = ?`,
			lastSync, syncErr, id)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE accounts SET last_error = ? WHERE id = ?`,
			syncErr, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update sync status for account %d: %w", id, err)
	}
	return nil
}

// SetSyncEnabled toggles background syncing for the account
func (s *Store) SetSyncEnabled(ctx context.Context, id int64, enabled bool) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET sync_enabled = ? WHERE id = ?`, enabled, id); err != nil {
		return fmt.Errorf("failed to toggle sync for account %d: %w", id, err)
	}
	return nil
}

// DeleteAccount removes the account; its folders and messages cascade
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete account %d: %w", id, err)
	}
	return nil
}
