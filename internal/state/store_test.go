package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/PlayerYK/TweetSift/internal/category"
	"github.com/PlayerYK/TweetSift/internal/db"
)

// fakeClock is a mutable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func setupStore(t *testing.T, opts ...Option) (*Store, *fakeClock) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	clock := &fakeClock{now: time.Date(2026, 2, 10, 9, 0, 0, 0, time.Local)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(database, opts...), clock
}

func TestIsStale(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 1, 0, time.Local)
	if IsStale("2026-02-10", now) {
		t.Error("IsStale(today) = true")
	}
	if !IsStale("2026-02-09", now) {
		t.Error("IsStale(yesterday) = false")
	}
	if !IsStale("", now) {
		t.Error("IsStale(empty) = false")
	}
}

func TestStats_FreshStoreIsZero(t *testing.T) {
	s, _ := setupStore(t)

	got, err := s.Stats(context.Background())
	require.NoError(t, err)

	want := Stats{Date: "2026-02-10"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}
}

func TestStats_ArchivesAndUndosSameDay(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	ids := []struct {
		id  string
		cat category.Category
	}{
		{"1", category.Video}, {"2", category.Video}, {"3", category.Nano}, {"4", category.Image},
	}
	for _, a := range ids {
		_, err := s.RecordArchive(ctx, a.id, a.cat, "f")
		require.NoError(t, err)
	}
	for _, id := range []string{"1", "3"} {
		removed, err := s.RemoveArchive(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, removed)
	}

	got, err := s.Stats(ctx)
	require.NoError(t, err)
	if got.Today.Sum() != 2 || got.Total != 2 {
		t.Errorf("Stats() = %+v, want today sum 2 and total 2", got)
	}
	if got.Today != (Counts{Video: 1, Image: 1}) {
		t.Errorf("Today = %+v", got.Today)
	}
}

func TestStats_MidnightRollover(t *testing.T) {
	s, clock := setupStore(t)
	ctx := context.Background()

	_, err := s.RecordArchive(ctx, "1", category.Video, "f")
	require.NoError(t, err)

	clock.Set(time.Date(2026, 2, 11, 0, 0, 5, 0, time.Local))

	got, err := s.Stats(ctx)
	require.NoError(t, err)
	want := Stats{Date: "2026-02-11", Total: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stats() after midnight mismatch (-want +got):\n%s", diff)
	}

	// Undo of yesterday's archive lowers only the total
	_, err = s.RecordArchive(ctx, "2", category.Video, "f")
	require.NoError(t, err)
	_, err = s.RemoveArchive(ctx, "1")
	require.NoError(t, err)

	got, err = s.Stats(ctx)
	require.NoError(t, err)
	if got.Today.Video != 1 || got.Total != 1 {
		t.Errorf("Stats() = %+v, want video 1, total 1", got)
	}
}

func TestRemoveArchive_UnknownIsNoop(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	removed, err := s.RemoveArchive(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, removed)

	got, err := s.Stats(ctx)
	require.NoError(t, err)
	if got.Total != 0 {
		t.Errorf("Total = %d, want 0", got.Total)
	}
}

func TestLedger_RecordAndLookup(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	archived, err := s.IsArchived(ctx, "111")
	require.NoError(t, err)
	require.False(t, archived)

	_, err = s.RecordArchive(ctx, "111", category.Video, "folder-1")
	require.NoError(t, err)

	entry, err := s.LedgerEntry(ctx, "111")
	require.NoError(t, err)
	require.NotNil(t, entry)
	if entry.Category != category.Video || entry.FolderID != "folder-1" {
		t.Errorf("LedgerEntry() = %+v", entry)
	}

	archived, err = s.IsArchived(ctx, "111")
	require.NoError(t, err)
	require.True(t, archived)
}

func TestLedger_EvictsOldestBeyondCap(t *testing.T) {
	s, clock := setupStore(t, WithLedgerCap(2))
	ctx := context.Background()

	base := clock.Now()
	for i, id := range []string{"a", "b", "c"} {
		clock.Set(base.Add(time.Duration(i) * time.Minute))
		_, err := s.RecordArchive(ctx, id, category.Image, "f")
		require.NoError(t, err)
	}

	archived, err := s.IsArchived(ctx, "a")
	require.NoError(t, err)
	require.False(t, archived, "oldest entry should be evicted")

	recent, err := s.RecentArchives(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "c", recent[0].TweetID)
}

func TestRecordArchive_SamePostCountedOnce(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.RecordArchive(ctx, "111", category.Video, "folder-1"); err != nil {
				t.Errorf("RecordArchive() error = %v", err)
			}
		}()
	}
	wg.Wait()

	stats, err := s.RecordArchive(ctx, "111", category.Nano, "folder-2")
	require.NoError(t, err)
	if stats.Today.Video != 1 || stats.Today.Nano != 0 || stats.Total != 1 {
		t.Errorf("stats = %+v, want one video and total 1", stats)
	}

	entry, err := s.LedgerEntry(ctx, "111")
	require.NoError(t, err)
	if entry.Category != category.Video || entry.FolderID != "folder-1" {
		t.Errorf("LedgerEntry() = %+v, want the first record kept", entry)
	}
}

func TestRecordArchive_Validation(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_, err := s.RecordArchive(ctx, "", category.Video, "f")
	require.Error(t, err)
	_, err = s.RecordArchive(ctx, "1", category.Category(7), "f")
	require.Error(t, err)
}

func TestEnabled_DefaultAndToggle(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	enabled, err := s.Enabled(ctx)
	require.NoError(t, err)
	require.True(t, enabled)

	require.NoError(t, s.PutFolder(ctx, category.Video, FolderRef{ID: "f1", Name: "260210-Video"}))

	cleared, err := s.SetEnabled(ctx, false)
	require.NoError(t, err)
	require.False(t, cleared)

	enabled, err = s.Enabled(ctx)
	require.NoError(t, err)
	require.False(t, enabled)

	// Folder cache survives disabling
	ref, err := s.Folder(ctx, category.Video)
	require.NoError(t, err)
	require.NotNil(t, ref)

	cleared, err = s.SetEnabled(ctx, true)
	require.NoError(t, err)
	require.True(t, cleared)

	ref, err = s.Folder(ctx, category.Video)
	require.NoError(t, err)
	require.Nil(t, ref, "re-enabling clears the folder cache")

	cleared, err = s.SetEnabled(ctx, true)
	require.NoError(t, err)
	require.False(t, cleared)
}

func TestFolders_StaleReadsEmpty(t *testing.T) {
	s, clock := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutFolder(ctx, category.Nano, FolderRef{ID: "n1", Name: "260210-Nano"}))

	ref, err := s.Folder(ctx, category.Nano)
	require.NoError(t, err)
	require.Equal(t, &FolderRef{ID: "n1", Name: "260210-Nano"}, ref)

	ref, err = s.Folder(ctx, category.Video)
	require.NoError(t, err)
	require.Nil(t, ref)

	clock.Set(time.Date(2026, 2, 11, 8, 0, 0, 0, time.Local))

	ref, err = s.Folder(ctx, category.Nano)
	require.NoError(t, err)
	require.Nil(t, ref, "yesterday's folder must not be reused")

	require.NoError(t, s.PutFolder(ctx, category.Video, FolderRef{ID: "v2", Name: "260211-Video"}))
	fc, err := s.Folders(ctx)
	require.NoError(t, err)
	require.Equal(t, "2026-02-11", fc.Date)
	require.Len(t, fc.Folders, 1, "stale entries are reset on write")
}
