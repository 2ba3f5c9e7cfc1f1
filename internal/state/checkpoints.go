package state

import (
	"context"
	"database/sql"
	"time"

	"github.com/PlayerYK/TweetSift/internal/db"
	"github.com/PlayerYK/TweetSift/internal/errors"
)

// Checkpoint is the durable resume point of one folder export.
type Checkpoint struct {
	FolderID   string
	FolderName string
	Cursor     string
	Pages      int
	Done       bool
	UpdatedAt  time.Time
}

// Checkpoint returns the saved progress for folderID, or nil.
func (s *Store) Checkpoint(ctx context.Context, folderID string) (*Checkpoint, error) {
	row, err := db.GetCheckpoint(ctx, s.db, folderID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Checkpoint{
		FolderID:   row.FolderID,
		FolderName: row.FolderName,
		Cursor:     row.Cursor,
		Pages:      row.Pages,
		Done:       row.Done,
		UpdatedAt:  time.Unix(row.UpdatedAt, 0),
	}, nil
}

// AppendCheckpoint records one fetched page: its encoded records and the
// cursor to continue from.
func (s *Store) AppendCheckpoint(ctx context.Context, cp Checkpoint, records []string) error {
	row := &db.CheckpointRow{
		FolderID:   cp.FolderID,
		FolderName: cp.FolderName,
		Cursor:     cp.Cursor,
		Pages:      cp.Pages,
		Done:       cp.Done,
		UpdatedAt:  s.now().Unix(),
	}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return db.SaveCheckpoint(ctx, tx, row, records)
	})
	return wrapInternal(err)
}

// CheckpointRecords returns the encoded records saved for folderID.
func (s *Store) CheckpointRecords(ctx context.Context, folderID string) ([]string, error) {
	return db.CheckpointRecords(ctx, s.db, folderID)
}

// DeleteCheckpoint discards the saved progress for folderID.
func (s *Store) DeleteCheckpoint(ctx context.Context, folderID string) error {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return db.DeleteCheckpoint(ctx, tx, folderID)
	})
	return wrapInternal(err)
}
