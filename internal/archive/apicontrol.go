package archive

import (
	"context"
	"sync"
)

// BookmarkAPI creates and deletes bookmarks remotely. *gateway.Gateway implements it.
type BookmarkAPI interface {
	CreateBookmark(ctx context.Context, tweetID string) error
	DeleteBookmark(ctx context.Context, tweetID string) error
}

// Ledger answers whether a post was archived earlier. *state.Store implements it.
type Ledger interface {
	IsArchived(ctx context.Context, tweetID string) (bool, error)
}

// APIControl stands in for the native control when no browser page is
// attached: pressing it calls CreateBookmark or DeleteBookmark directly.
// Saved state is what this process set, falling back to the ledger.
type APIControl struct {
	api    BookmarkAPI
	ledger Ledger

	mu    sync.Mutex
	saved map[string]bool
}

// NewAPIControl returns an APIControl.
func NewAPIControl(api BookmarkAPI, ledger Ledger) *APIControl {
	return &APIControl{api: api, ledger: ledger, saved: make(map[string]bool)}
}

// Saved implements NativeControl.
func (c *APIControl) Saved(ctx context.Context, tweetID string) (bool, error) {
	c.mu.Lock()
	saved, known := c.saved[tweetID]
	c.mu.Unlock()
	if known {
		return saved, nil
	}
	return c.ledger.IsArchived(ctx, tweetID)
}

// Press implements NativeControl.
func (c *APIControl) Press(ctx context.Context, tweetID string) error {
	saved, err := c.Saved(ctx, tweetID)
	if err != nil {
		return err
	}
	if saved {
		err = c.api.DeleteBookmark(ctx, tweetID)
	} else {
		err = c.api.CreateBookmark(ctx, tweetID)
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.saved[tweetID] = !saved
	c.mu.Unlock()
	return nil
}
