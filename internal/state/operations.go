package state

import (
	"context"
	"time"

	"github.com/PlayerYK/TweetSift/internal/db"
	"github.com/PlayerYK/TweetSift/internal/errors"
)

// OperationRecord is a captured GraphQL operation id.
type OperationRecord struct {
	Name            string    `json:"name"`
	OperationID     string    `json:"operation_id"`
	CapturedAt      time.Time `json:"captured_at"`
	LastRequestBody *string   `json:"last_request_body,omitempty"`
}

// Operation returns the persisted record for name, or nil.
func (s *Store) Operation(ctx context.Context, name string) (*OperationRecord, error) {
	row, err := db.GetOperation(ctx, s.db, name)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromOperationRow(row), nil
}

// PutOperation stores rec, replacing any earlier capture of the same name.
func (s *Store) PutOperation(ctx context.Context, rec OperationRecord) error {
	if rec.Name == "" || rec.OperationID == "" {
		return errors.NewInvalidRequest("operation name and id are required")
	}
	if rec.CapturedAt.IsZero() {
		rec.CapturedAt = s.now()
	}
	return db.UpsertOperation(ctx, s.db, &db.OperationRow{
		Name:        rec.Name,
		OperationID: rec.OperationID,
		CapturedAt:  rec.CapturedAt.UnixMilli(),
		LastBody:    rec.LastRequestBody,
	})
}

// DeleteOperation forgets the persisted id for name.
func (s *Store) DeleteOperation(ctx context.Context, name string) error {
	return db.DeleteOperation(ctx, s.db, name)
}

// Operations lists every persisted capture.
func (s *Store) Operations(ctx context.Context) ([]OperationRecord, error) {
	rows, err := db.ListOperations(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make([]OperationRecord, 0, len(rows))
	for i := range rows {
		out = append(out, *fromOperationRow(&rows[i]))
	}
	return out, nil
}

func fromOperationRow(row *db.OperationRow) *OperationRecord {
	return &OperationRecord{
		Name:            row.Name,
		OperationID:     row.OperationID,
		CapturedAt:      time.UnixMilli(row.CapturedAt),
		LastRequestBody: row.LastBody,
	}
}
