// Package state is the persistent state store: enabled flag, daily stats,
// the per-day folder cache and the archived-post ledger.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/PlayerYK/TweetSift/internal/category"
	"github.com/PlayerYK/TweetSift/internal/db"
	"github.com/PlayerYK/TweetSift/internal/errors"
)

// Logical keys in the state table.
const (
	keyEnabled = "enabled"
	keyStats   = "stats"
	keyFolders = "folders"
)

// DefaultLedgerCap bounds the ledger when no cap is configured.
const DefaultLedgerCap = 5000

// Counts holds per-category daily counters.
type Counts struct {
	Video int `json:"video"`
	Nano  int `json:"nano"`
	Image int `json:"image"`
}

func (c *Counts) field(cat category.Category) *int {
	switch cat {
	case category.Video:
		return &c.Video
	case category.Nano:
		return &c.Nano
	case category.Image:
		return &c.Image
	}
	return nil
}

// Sum returns the total across categories.
func (c Counts) Sum() int {
	return c.Video + c.Nano + c.Image
}

// Stats is the daily/lifetime counter record.
type Stats struct {
	Date  string `json:"date"`
	Today Counts `json:"today"`
	Total int    `json:"total"`
}

// FolderRef identifies a remote bookmark folder.
type FolderRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FolderCache is today's resolved folder per category key.
type FolderCache struct {
	Date    string                `json:"date"`
	Folders map[string]*FolderRef `json:"folders"`
}

// LedgerEntry records an archived post.
type LedgerEntry struct {
	TweetID  string            `json:"tweet_id"`
	Category category.Category `json:"category"`
	FolderID string            `json:"folder_id"`
	SavedAt  time.Time         `json:"saved_at"`
}

// Store owns every durable record. Read-modify-write sequences on one record
// are serialized by that record's mutex and run inside a transaction.
type Store struct {
	db        *sql.DB
	now       Clock
	ledgerCap int

	enabledMu sync.Mutex
	statsMu   sync.Mutex
	foldersMu sync.Mutex
	ledgerMu  sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Store) { s.now = c }
}

// WithLedgerCap sets the maximum number of ledger entries kept.
func WithLedgerCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.ledgerCap = n
		}
	}
}

// New returns a Store backed by an initialized database.
func New(database *sql.DB, opts ...Option) *Store {
	s := &Store{db: database, now: time.Now, ledgerCap: DefaultLedgerCap}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying database for packages that keep their own tables.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Enabled reports the enabled flag. An unset flag means enabled.
func (s *Store) Enabled(ctx context.Context) (bool, error) {
	raw, ok, err := db.GetState(ctx, s.db, keyEnabled)
	if err != nil || !ok {
		return true, err
	}
	var enabled bool
	if err := json.Unmarshal([]byte(raw), &enabled); err != nil {
		return true, nil
	}
	return enabled, nil
}

// SetEnabled stores the flag. Switching from disabled to enabled clears the
// folder cache; cacheCleared reports whether that happened.
func (s *Store) SetEnabled(ctx context.Context, enabled bool) (cacheCleared bool, err error) {
	s.enabledMu.Lock()
	defer s.enabledMu.Unlock()

	was, err := s.Enabled(ctx)
	if err != nil {
		return false, err
	}
	if err := s.putJSON(ctx, s.db, keyEnabled, enabled); err != nil {
		return false, err
	}
	if enabled && !was {
		if err := s.ClearFolders(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// Stats returns the counters normalized to today. A rolled-over record is
// written back so later reads see today's date.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	stats, changed, err := s.loadStats(ctx, s.db)
	if err != nil {
		return Stats{}, err
	}
	if changed {
		if err := s.putJSON(ctx, s.db, keyStats, stats); err != nil {
			return Stats{}, err
		}
	}
	return stats, nil
}

// loadStats reads and normalizes the stats record. changed is true when the
// stored value differs from the normalized one.
func (s *Store) loadStats(ctx context.Context, q db.Querier) (Stats, bool, error) {
	today := DateKey(s.now())
	raw, ok, err := db.GetState(ctx, q, keyStats)
	if err != nil {
		return Stats{}, false, err
	}

	var stored Stats
	if ok {
		// Corrupt records normalize to zero counters.
		_ = json.Unmarshal([]byte(raw), &stored)
	}

	if IsStale(stored.Date, s.now()) {
		return Stats{Date: today, Total: max(stored.Total, 0)}, true, nil
	}
	norm := Stats{
		Date: today,
		Today: Counts{
			Video: max(stored.Today.Video, 0),
			Nano:  max(stored.Today.Nano, 0),
			Image: max(stored.Today.Image, 0),
		},
		Total: max(stored.Total, 0),
	}
	return norm, norm != stored, nil
}

func (s *Store) incrementStats(ctx context.Context, q db.Querier, cat category.Category) (Stats, error) {
	stats, _, err := s.loadStats(ctx, q)
	if err != nil {
		return Stats{}, err
	}
	if f := stats.Today.field(cat); f != nil {
		*f++
	}
	stats.Total++
	return stats, s.putJSON(ctx, q, keyStats, stats)
}

// decrementStats lowers the total and, when the post was saved today, the
// category's daily counter. Counters never go below zero.
func (s *Store) decrementStats(ctx context.Context, q db.Querier, cat category.Category, savedAt time.Time) (Stats, error) {
	stats, _, err := s.loadStats(ctx, q)
	if err != nil {
		return Stats{}, err
	}
	if !IsStale(DateKey(savedAt), s.now()) {
		if f := stats.Today.field(cat); f != nil && *f > 0 {
			*f--
		}
	}
	if stats.Total > 0 {
		stats.Total--
	}
	return stats, s.putJSON(ctx, q, keyStats, stats)
}

// Folders returns today's folder cache. A stale record reads as empty.
func (s *Store) Folders(ctx context.Context) (FolderCache, error) {
	today := DateKey(s.now())
	empty := FolderCache{Date: today, Folders: map[string]*FolderRef{}}

	raw, ok, err := db.GetState(ctx, s.db, keyFolders)
	if err != nil || !ok {
		return empty, err
	}
	var fc FolderCache
	if err := json.Unmarshal([]byte(raw), &fc); err != nil || IsStale(fc.Date, s.now()) {
		return empty, nil
	}
	if fc.Folders == nil {
		fc.Folders = map[string]*FolderRef{}
	}
	return fc, nil
}

// Folder returns today's cached folder for cat, or nil.
func (s *Store) Folder(ctx context.Context, cat category.Category) (*FolderRef, error) {
	fc, err := s.Folders(ctx)
	if err != nil {
		return nil, err
	}
	ref := fc.Folders[cat.Key()]
	if ref == nil || ref.ID == "" {
		return nil, nil
	}
	return ref, nil
}

// PutFolder caches ref as today's folder for cat, resetting a stale record.
func (s *Store) PutFolder(ctx context.Context, cat category.Category, ref FolderRef) error {
	if !cat.Valid() {
		return errors.NewInvalidRequest("unknown category")
	}
	s.foldersMu.Lock()
	defer s.foldersMu.Unlock()

	fc, err := s.Folders(ctx)
	if err != nil {
		return err
	}
	fc.Folders[cat.Key()] = &ref
	return s.putJSON(ctx, s.db, keyFolders, fc)
}

// ClearFolders drops the folder cache.
func (s *Store) ClearFolders(ctx context.Context) error {
	s.foldersMu.Lock()
	defer s.foldersMu.Unlock()
	return s.putJSON(ctx, s.db, keyFolders, FolderCache{Date: DateKey(s.now()), Folders: map[string]*FolderRef{}})
}

// IsArchived reports whether tweetID is in the ledger.
func (s *Store) IsArchived(ctx context.Context, tweetID string) (bool, error) {
	entry, err := s.LedgerEntry(ctx, tweetID)
	return entry != nil, err
}

// LedgerEntry returns the ledger entry for tweetID, or nil when absent.
func (s *Store) LedgerEntry(ctx context.Context, tweetID string) (*LedgerEntry, error) {
	row, err := db.GetLedger(ctx, s.db, tweetID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromLedgerRow(row), nil
}

// RecentArchives lists the newest ledger entries.
func (s *Store) RecentArchives(ctx context.Context, limit int) ([]LedgerEntry, error) {
	rows, err := db.ListLedger(ctx, s.db, limit)
	if err != nil {
		return nil, err
	}
	out := make([]LedgerEntry, 0, len(rows))
	for i := range rows {
		out = append(out, *fromLedgerRow(&rows[i]))
	}
	return out, nil
}

// RecordArchive writes the ledger entry and increments the counters in one
// transaction, then evicts the oldest entries beyond the cap. A post already
// in the ledger keeps its entry and is not counted again.
func (s *Store) RecordArchive(ctx context.Context, tweetID string, cat category.Category, folderID string) (Stats, error) {
	if tweetID == "" {
		return Stats{}, errors.NewInvalidRequest("tweet_id is required")
	}
	if !cat.Valid() {
		return Stats{}, errors.NewInvalidRequest("unknown category")
	}

	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	var stats Stats
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		row := &db.LedgerRow{
			TweetID:  tweetID,
			Category: int(cat),
			FolderID: folderID,
			SavedAt:  s.now().UnixMilli(),
		}
		inserted, err := db.InsertLedger(ctx, tx, row)
		if err != nil {
			return err
		}
		if !inserted {
			stats, _, err = s.loadStats(ctx, tx)
			return err
		}
		if _, err := db.EvictLedger(ctx, tx, s.ledgerCap); err != nil {
			return err
		}
		stats, err = s.incrementStats(ctx, tx, cat)
		return err
	})
	if err != nil {
		return Stats{}, wrapInternal(err)
	}
	return stats, nil
}

// RemoveArchive deletes the ledger entry and decrements the counters. It
// returns the removed entry, or nil when tweetID was not in the ledger (in
// which case nothing changes).
func (s *Store) RemoveArchive(ctx context.Context, tweetID string) (*LedgerEntry, error) {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	var removed *LedgerEntry
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		row, err := db.GetLedger(ctx, tx, tweetID)
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := db.DeleteLedger(ctx, tx, tweetID); err != nil {
			return err
		}
		removed = fromLedgerRow(row)
		_, err = s.decrementStats(ctx, tx, removed.Category, removed.SavedAt)
		return err
	})
	if err != nil {
		return nil, wrapInternal(err)
	}
	return removed, nil
}

func (s *Store) putJSON(ctx context.Context, q db.Querier, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewInternal(err)
	}
	return db.PutState(ctx, q, key, string(data), s.now().Unix())
}

func fromLedgerRow(row *db.LedgerRow) *LedgerEntry {
	return &LedgerEntry{
		TweetID:  row.TweetID,
		Category: category.Category(row.Category),
		FolderID: row.FolderID,
		SavedAt:  time.UnixMilli(row.SavedAt),
	}
}

// wrapInternal keeps taxonomy errors and wraps everything else.
func wrapInternal(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.NewInternal(err)
}
