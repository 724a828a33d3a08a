package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SearchOptions narrows a message search; nil fields are ignored
type SearchOptions struct {
	AccountID *int64
	FolderID  *string
	From      *string
	Recipient *string
	Subject   *string
	Body      *string
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
}

// SearchResult is the trimmed-down row returned by searches
type SearchResult struct {
	ID          int64     `db:"id"`
	AccountID   int64     `db:"account_id"`
	FolderID    string    `db:"folder_id"`
	MessageID   string    `db:"message_id"`
	Subject     string    `db:"subject"`
	FromName    string    `db:"from_name"`
	FromAddress string    `db:"from_address"`
	Date        time.Time `db:"date"`
	Snippet     string    `db:"-"`
	BodyText    string    `db:"body_text"`
}

const snippetLength = 200

// SearchMessages queries mirrored messages. Header fields use substring
// matching; the body condition goes through the full-text index.
func (s *Store) SearchMessages(ctx context.Context, opts SearchOptions) ([]SearchResult, error) {
	var conditions []string
	var args []interface{}

	if opts.AccountID != nil {
		conditions = append(conditions, "m.account_id = ?")
		args = append(args, *opts.AccountID)
	}
	if opts.FolderID != nil {
		conditions = append(conditions, "m.folder_id = ?")
		args = append(args, *opts.FolderID)
	}
	if opts.From != nil {
		conditions = append(conditions, "(m.from_address LIKE ? OR m.from_name LIKE ?)")
		term := "%" + *opts.From + "%"
		args = append(args, term, term)
	}
	if opts.Recipient != nil {
		conditions = append(conditions, "(m.to_list LIKE ? OR m.cc_list LIKE ?)")
		term := "%" + *opts.Recipient + "%"
		args = append(args, term, term)
	}
	if opts.Subject != nil {
		conditions = append(conditions, "m.subject LIKE ?")
		args = append(args, "%"+*opts.Subject+"%")
	}
	if opts.DateFrom != nil {
		conditions = append(conditions, "m.date >= ?")
		args = append(args, opts.DateFrom)
	}
	if opts.DateTo != nil {
		conditions = append(conditions, "m.date <= ?")
		args = append(args, opts.DateTo)
	}
	if opts.Body != nil {
		conditions = append(conditions, "m.id IN (SELECT rowid FROM messages_fts WHERE messages_fts MATCH ?)")
		args = append(args, escapeFTS(*opts.Body))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT m.id, m.account_id, m.folder_id, m.message_id, m.subject,
		       m.from_name, m.from_address, m.date, m.body_text
		FROM messages m
		%s
		ORDER BY m.date DESC
		LIMIT ?`, whereClause)

	var results []SearchResult
	if err := s.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	for i := range results {
		results[i].Snippet = snippet(results[i].BodyText)
		results[i].BodyText = ""
	}
	return results, nil
}

func snippet(body string) string {
	if len(body) > snippetLength {
		return body[:snippetLength] + "..."
	}
	return body
}

// escapeFTS quotes characters FTS5 treats as syntax
func escapeFTS(query string) string {
	query = strings.ReplaceAll(query, "\"", "\"\"")
	return strings.ReplaceAll(query, "'", "''")
}
