package opcache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PlayerYK/TweetSift/internal/db"
	"github.com/PlayerYK/TweetSift/internal/logging"
	"github.com/PlayerYK/TweetSift/internal/state"
)

func setupCache(t *testing.T) (*Cache, *state.Store) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := state.New(database)
	return New(store, logging.Discard(), time.Hour), store
}

func graphqlURLFor(id, name string) string {
	return "https://x.com/i/api/graphql/" + id + "/" + name
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url      string
		wantID   string
		wantName string
		wantOK   bool
	}{
		{"https://x.com/i/api/graphql/abc123/CreateBookmark", "abc123", "CreateBookmark", true},
		{"https://twitter.com/i/api/graphql/q1/BookmarkFolderTimeline?variables=%7B%7D", "q1", "BookmarkFolderTimeline", true},
		{"https://x.com/i/api/1.1/account/settings.json", "", "", false},
		{"http://x.com/i/api/graphql/abc/CreateBookmark", "", "", false},
		{"https://example.com/i/api/graphql/abc/CreateBookmark", "", "", false},
	}
	for _, tt := range tests {
		id, name, ok := ParseURL(tt.url)
		if id != tt.wantID || name != tt.wantName || ok != tt.wantOK {
			t.Errorf("ParseURL(%q) = %q, %q, %v; want %q, %q, %v", tt.url, id, name, ok, tt.wantID, tt.wantName, tt.wantOK)
		}
	}
}

func TestObserve_Idempotent(t *testing.T) {
	c, store := setupCache(t)
	ctx := context.Background()

	changed, err := c.Observe(ctx, graphqlURLFor("id1", CreateBookmark), nil)
	require.NoError(t, err)
	require.True(t, changed)

	first, err := store.Operation(ctx, CreateBookmark)
	require.NoError(t, err)

	changed, err = c.Observe(ctx, graphqlURLFor("id1", CreateBookmark), nil)
	require.NoError(t, err)
	require.False(t, changed, "second identical observation must not write")

	second, err := store.Operation(ctx, CreateBookmark)
	require.NoError(t, err)
	require.Equal(t, first, second)

	id, err := c.OperationID(ctx, CreateBookmark)
	require.NoError(t, err)
	require.Equal(t, "id1", id)
}

func TestObserve_OverwritesRotatedID(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	_, err := c.Observe(ctx, graphqlURLFor("old", BookmarkTweetToFolder), nil)
	require.NoError(t, err)
	changed, err := c.Observe(ctx, graphqlURLFor("new", BookmarkTweetToFolder), nil)
	require.NoError(t, err)
	require.True(t, changed)

	id, err := c.OperationID(ctx, BookmarkTweetToFolder)
	require.NoError(t, err)
	require.Equal(t, "new", id)
}

func TestObserve_IgnoresOtherURLs(t *testing.T) {
	c, _ := setupCache(t)
	changed, err := c.Observe(context.Background(), "https://x.com/home", nil)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestInvalidate_RoundTrip(t *testing.T) {
	c, store := setupCache(t)
	ctx := context.Background()

	_, err := c.Observe(ctx, graphqlURLFor("id1", BookmarkTweetToFolder), nil)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx, BookmarkTweetToFolder))

	id, err := c.OperationID(ctx, BookmarkTweetToFolder)
	require.NoError(t, err)
	require.Empty(t, id)

	rec, err := store.Operation(ctx, BookmarkTweetToFolder)
	require.NoError(t, err)
	require.Nil(t, rec, "persisted id must be removed")

	// Re-observing the same id after invalidation writes it back
	changed, err := c.Observe(ctx, graphqlURLFor("id1", BookmarkTweetToFolder), nil)
	require.NoError(t, err)
	require.True(t, changed)

	id, err = c.OperationID(ctx, BookmarkTweetToFolder)
	require.NoError(t, err)
	require.Equal(t, "id1", id)
}

func TestInvalidate_HidesConcurrentlyPersistedID(t *testing.T) {
	c, store := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Invalidate(ctx, DeleteBookmark))
	// A stale writer resurrects the row behind the cache's back
	require.NoError(t, store.PutOperation(ctx, state.OperationRecord{Name: DeleteBookmark, OperationID: "stale"}))

	id, err := c.OperationID(ctx, DeleteBookmark)
	require.NoError(t, err)
	require.Empty(t, id)
}

func TestObserve_CapturesBodyAndFeatures(t *testing.T) {
	c, store := setupCache(t)
	ctx := context.Background()

	body := `{"variables":{"tweet_id":"1"},"features":{"flag_a":true},"queryId":"id1"}`
	_, err := c.Observe(ctx, graphqlURLFor("id1", CreateBookmark), &RequestBody{Raw: []byte(body)})
	require.NoError(t, err)

	seen, ok := c.Captured(CreateBookmark)
	require.True(t, ok)
	require.Equal(t, body, seen.Body)
	require.JSONEq(t, `{"flag_a":true}`, string(c.Features(ctx, CreateBookmark)))

	rec, err := store.Operation(ctx, CreateBookmark)
	require.NoError(t, err)
	require.Equal(t, body, *rec.LastRequestBody)

	// A fresh cache over the same store recovers features from the persisted body
	fresh := New(store, logging.Discard(), time.Hour)
	require.JSONEq(t, `{"flag_a":true}`, string(fresh.Features(ctx, CreateBookmark)))
}

func TestObserve_GETQueryFeatures(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	u := graphqlURLFor("t1", BookmarkFolderTimeline) +
		`?variables=%7B%22count%22%3A20%7D&features=%7B%22x%22%3Afalse%7D`
	_, err := c.Observe(ctx, u, nil)
	require.NoError(t, err)

	require.JSONEq(t, `{"x":false}`, string(c.Features(ctx, BookmarkFolderTimeline)))
}

func TestObserve_UndecodableBody(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	_, err := c.Observe(ctx, graphqlURLFor("id1", CreateBookmark), &RequestBody{Raw: []byte{0xff, 0xfe, 0xfd}})
	require.NoError(t, err)

	seen, ok := c.Captured(CreateBookmark)
	require.True(t, ok)
	require.Equal(t, Undecodable, seen.Body)
	require.Nil(t, c.Features(ctx, CreateBookmark))
}

func TestObserve_FormBody(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	_, err := c.Observe(ctx, graphqlURLFor("id1", CreateBookmark), &RequestBody{Form: map[string][]string{"a": {"1"}}})
	require.NoError(t, err)

	seen, ok := c.Captured(CreateBookmark)
	require.True(t, ok)
	var decoded map[string][]string
	require.NoError(t, json.Unmarshal([]byte(seen.Body), &decoded))
	require.Equal(t, []string{"1"}, decoded["a"])
}

func TestStatusAndMissing(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	_, err := c.Observe(ctx, graphqlURLFor("a1", BookmarkTweetToFolder), nil)
	require.NoError(t, err)

	status, err := c.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, len(RequiredOperations))
	require.NotNil(t, status[BookmarkTweetToFolder])
	require.Equal(t, "a1", *status[BookmarkTweetToFolder])
	require.Nil(t, status[CreateBookmark])

	missing, err := c.Missing(ctx, BookmarkTweetToFolder, BookmarkFoldersSlice, CreateBookmarkFolder)
	require.NoError(t, err)
	require.Equal(t, []string{BookmarkFoldersSlice, CreateBookmarkFolder}, missing)
}
