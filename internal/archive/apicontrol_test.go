package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBookmarkAPI struct {
	created, deleted []string
}

func (f *fakeBookmarkAPI) CreateBookmark(_ context.Context, id string) error {
	f.created = append(f.created, id)
	return nil
}

func (f *fakeBookmarkAPI) DeleteBookmark(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeLedger map[string]bool

func (l fakeLedger) IsArchived(_ context.Context, id string) (bool, error) {
	return l[id], nil
}

func TestAPIControl_Toggle(t *testing.T) {
	api := &fakeBookmarkAPI{}
	c := NewAPIControl(api, fakeLedger{"old": true})
	ctx := context.Background()

	saved, err := c.Saved(ctx, "new")
	require.NoError(t, err)
	require.False(t, saved)

	require.NoError(t, c.Press(ctx, "new"))
	saved, err = c.Saved(ctx, "new")
	require.NoError(t, err)
	require.True(t, saved)
	require.Equal(t, []string{"new"}, api.created)

	// Ledger fallback for posts archived by an earlier process
	saved, err = c.Saved(ctx, "old")
	require.NoError(t, err)
	require.True(t, saved)
	require.NoError(t, c.Press(ctx, "old"))
	require.Equal(t, []string{"old"}, api.deleted)
}

func TestAPIControl_DrivesArchiveAndUndo(t *testing.T) {
	h := setup(t)
	api := &fakeBookmarkAPI{}
	h.orch.native = NewAPIControl(api, h.store)
	ctx := context.Background()

	_, err := h.orch.Archive(ctx, "42", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"42"}, api.created)

	_, err = h.orch.Undo(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, []string{"42"}, api.deleted)
}
