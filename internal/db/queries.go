package db

import (
	"context"
	"database/sql"

	"github.com/PlayerYK/TweetSift/internal/errors"
)

// OperationRow is a persisted operation-id capture.
type OperationRow struct {
	Name        string
	OperationID string
	CapturedAt  int64 // unix millis
	LastBody    *string
}

// LedgerRow records one archived post.
type LedgerRow struct {
	TweetID  string
	Category int
	FolderID string
	SavedAt  int64 // unix millis
}

// CheckpointRow is the resume point of one folder export.
type CheckpointRow struct {
	FolderID   string
	FolderName string
	Cursor     string
	Pages      int
	Done       bool
	UpdatedAt  int64
}

// GetState returns the raw JSON stored under key. ok is false when the key is absent.
func GetState(ctx context.Context, q Querier, key string) (value string, ok bool, err error) {
	err = q.QueryRowContext(ctx, `SELECT value_json FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	return value, true, nil
}

// PutState upserts the raw JSON stored under key.
func PutState(ctx context.Context, q Querier, key, value string, now int64) error {
	query := `
		INSERT INTO state (key, value_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at
	`
	if _, err := q.ExecContext(ctx, query, key, value, now); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetOperation retrieves an operation row by name.
func GetOperation(ctx context.Context, q Querier, name string) (*OperationRow, error) {
	var (
		row      OperationRow
		lastBody sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT name, operation_id, captured_at, last_body FROM operations WHERE name = ?`, name,
	).Scan(&row.Name, &row.OperationID, &row.CapturedAt, &lastBody)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(name)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	row.LastBody = fromNullString(lastBody)
	return &row, nil
}

// UpsertOperation stores or replaces the operation row for row.Name.
func UpsertOperation(ctx context.Context, q Querier, row *OperationRow) error {
	query := `
		INSERT INTO operations (name, operation_id, captured_at, last_body) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			operation_id = excluded.operation_id,
			captured_at = excluded.captured_at,
			last_body = excluded.last_body
	`
	_, err := q.ExecContext(ctx, query, row.Name, row.OperationID, row.CapturedAt, toNullString(row.LastBody))
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteOperation removes the operation row. Missing rows are not an error.
func DeleteOperation(ctx context.Context, q Querier, name string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM operations WHERE name = ?`, name); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListOperations returns all operation rows ordered by name.
func ListOperations(ctx context.Context, q Querier) ([]OperationRow, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, operation_id, captured_at, last_body FROM operations ORDER BY name`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []OperationRow
	for rows.Next() {
		var (
			row      OperationRow
			lastBody sql.NullString
		)
		if err := rows.Scan(&row.Name, &row.OperationID, &row.CapturedAt, &lastBody); err != nil {
			return nil, errors.NewInternal(err)
		}
		row.LastBody = fromNullString(lastBody)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// GetLedger retrieves the ledger entry for a post.
func GetLedger(ctx context.Context, q Querier, tweetID string) (*LedgerRow, error) {
	var row LedgerRow
	err := q.QueryRowContext(ctx,
		`SELECT tweet_id, category, folder_id, saved_at FROM ledger WHERE tweet_id = ?`, tweetID,
	).Scan(&row.TweetID, &row.Category, &row.FolderID, &row.SavedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(tweetID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &row, nil
}

// InsertLedger adds the ledger entry for row.TweetID unless one exists.
// Reports whether a row was inserted.
func InsertLedger(ctx context.Context, q Querier, row *LedgerRow) (bool, error) {
	query := `
		INSERT INTO ledger (tweet_id, category, folder_id, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(tweet_id) DO NOTHING
	`
	result, err := q.ExecContext(ctx, query, row.TweetID, row.Category, row.FolderID, row.SavedAt)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return n > 0, nil
}

// DeleteLedger removes a ledger entry and reports whether one existed.
func DeleteLedger(ctx context.Context, q Querier, tweetID string) (bool, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM ledger WHERE tweet_id = ?`, tweetID)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return n > 0, nil
}

// EvictLedger deletes the oldest entries so that at most keep remain.
// Returns the number of rows removed.
func EvictLedger(ctx context.Context, q Querier, keep int) (int64, error) {
	query := `
		DELETE FROM ledger WHERE tweet_id IN (
			SELECT tweet_id FROM ledger
			ORDER BY saved_at DESC, tweet_id DESC
			LIMIT -1 OFFSET ?
		)
	`
	result, err := q.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// CountLedger returns the number of ledger entries.
func CountLedger(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// ListLedger returns the newest entries first, up to limit.
func ListLedger(ctx context.Context, q Querier, limit int) ([]LedgerRow, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT tweet_id, category, folder_id, saved_at FROM ledger ORDER BY saved_at DESC, tweet_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []LedgerRow
	for rows.Next() {
		var row LedgerRow
		if err := rows.Scan(&row.TweetID, &row.Category, &row.FolderID, &row.SavedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// GetCheckpoint retrieves the export checkpoint for a folder.
func GetCheckpoint(ctx context.Context, q Querier, folderID string) (*CheckpointRow, error) {
	var (
		row    CheckpointRow
		cursor sql.NullString
		done   int
	)
	err := q.QueryRowContext(ctx,
		`SELECT folder_id, folder_name, cursor, pages, done, updated_at FROM export_progress WHERE folder_id = ?`, folderID,
	).Scan(&row.FolderID, &row.FolderName, &cursor, &row.Pages, &done, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(folderID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	row.Cursor = cursor.String
	row.Done = done != 0
	return &row, nil
}

// SaveCheckpoint upserts a checkpoint and appends the page's records after the
// folder's existing records.
func SaveCheckpoint(ctx context.Context, q Querier, row *CheckpointRow, records []string) error {
	var next int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM export_tweets WHERE folder_id = ?`, row.FolderID,
	).Scan(&next)
	if err != nil {
		return errors.NewInternal(err)
	}

	for i, rec := range records {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO export_tweets (folder_id, seq, tweet_json) VALUES (?, ?, ?)`,
			row.FolderID, next+i, rec,
		); err != nil {
			return errors.NewInternal(err)
		}
	}

	done := 0
	if row.Done {
		done = 1
	}
	query := `
		INSERT INTO export_progress (folder_id, folder_name, cursor, pages, done, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(folder_id) DO UPDATE SET
			folder_name = excluded.folder_name,
			cursor = excluded.cursor,
			pages = excluded.pages,
			done = excluded.done,
			updated_at = excluded.updated_at
	`
	cursor := sql.NullString{String: row.Cursor, Valid: row.Cursor != ""}
	if _, err := q.ExecContext(ctx, query, row.FolderID, row.FolderName, cursor, row.Pages, done, row.UpdatedAt); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// CheckpointRecords returns the stored records of a folder in fetch order.
func CheckpointRecords(ctx context.Context, q Querier, folderID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT tweet_json FROM export_tweets WHERE folder_id = ? ORDER BY seq`, folderID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var rec string
		if err := rows.Scan(&rec); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// DeleteCheckpoint removes a folder's checkpoint and stored records.
func DeleteCheckpoint(ctx context.Context, q Querier, folderID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM export_tweets WHERE folder_id = ?`, folderID); err != nil {
		return errors.NewInternal(err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM export_progress WHERE folder_id = ?`, folderID); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
