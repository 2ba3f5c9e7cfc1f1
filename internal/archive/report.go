package archive

import (
	"context"

	"github.com/PlayerYK/TweetSift/internal/category"
	"github.com/PlayerYK/TweetSift/internal/errors"
	"github.com/PlayerYK/TweetSift/internal/opcache"
	"github.com/PlayerYK/TweetSift/internal/state"
)

// The methods below apply local bookkeeping for callers that perform the
// native and remote steps themselves.

// ReportArchived records a post the caller archived. Reporting the same post
// twice counts it once. A post with an archive or undo running here is
// DUPLICATE: that workflow owns its bookkeeping.
func (o *Orchestrator) ReportArchived(ctx context.Context, tweetID string, cat category.Category, folderID string) (state.Stats, error) {
	if err := validate(tweetID, cat); err != nil {
		return state.Stats{}, err
	}
	if o.Phase(tweetID) != PhaseIdle {
		return state.Stats{}, errors.NewDuplicate(tweetID)
	}
	return o.store.RecordArchive(ctx, tweetID, cat, folderID)
}

// ReportRemoved drops the ledger entry of a post the caller unsaved.
func (o *Orchestrator) ReportRemoved(ctx context.Context, tweetID string) (bool, state.Stats, error) {
	if tweetID == "" {
		return false, state.Stats{}, errors.NewInvalidRequest("tweet_id is required")
	}
	removed, err := o.store.RemoveArchive(ctx, tweetID)
	if err != nil {
		return false, state.Stats{}, err
	}
	stats, err := o.store.Stats(ctx)
	return removed != nil, stats, err
}

// SaveFolder caches a folder the caller resolved for today's cat.
func (o *Orchestrator) SaveFolder(ctx context.Context, cat category.Category, folderID, name string) error {
	if folderID == "" {
		return errors.NewInvalidRequest("folder_id is required")
	}
	if name == "" {
		name = category.FolderName(cat, o.store.Now())
	}
	return o.store.PutFolder(ctx, cat, state.FolderRef{ID: folderID, Name: name})
}

// CancelInfo is what a caller needs to take a post out of its folder.
type CancelInfo struct {
	RemoveOperationID *string `json:"remove_operation_id"`
	FolderID          *string `json:"folder_id"`
}

// CancelInfo returns the remove operation id and the folder tweetID was filed into.
func (o *Orchestrator) CancelInfo(ctx context.Context, tweetID string) (*CancelInfo, error) {
	info := &CancelInfo{}
	id, err := o.caps.OperationID(ctx, opcache.RemoveTweetFromBookmarkFolder)
	if err != nil {
		return nil, err
	}
	if id != "" {
		info.RemoveOperationID = &id
	}
	entry, err := o.store.LedgerEntry(ctx, tweetID)
	if err != nil {
		return nil, err
	}
	if entry != nil && entry.FolderID != "" {
		info.FolderID = &entry.FolderID
	}
	return info, nil
}
