package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PlayerYK/TweetSift/internal/errors"
	"github.com/PlayerYK/TweetSift/internal/opcache"
)

// TimelinePageSize is the number of entries requested per timeline page.
const TimelinePageSize = 20

// Folder is a remote bookmark folder.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateBookmark saves a post to the account's bookmarks.
func (g *Gateway) CreateBookmark(ctx context.Context, tweetID string) error {
	res, err := g.Call(ctx, opcache.CreateBookmark, map[string]any{"tweet_id": tweetID}, POST)
	if err != nil {
		return err
	}
	return graphqlErrors(opcache.CreateBookmark, res)
}

// DeleteBookmark removes a post from the account's bookmarks.
func (g *Gateway) DeleteBookmark(ctx context.Context, tweetID string) error {
	res, err := g.Call(ctx, opcache.DeleteBookmark, map[string]any{"tweet_id": tweetID}, POST)
	if err != nil {
		return err
	}
	return graphqlErrors(opcache.DeleteBookmark, res)
}

// CreateFolder creates a bookmark folder and returns it.
func (g *Gateway) CreateFolder(ctx context.Context, name string) (Folder, error) {
	res, err := g.Call(ctx, opcache.CreateBookmarkFolder, map[string]any{"name": name}, POST)
	if err != nil {
		return Folder{}, err
	}

	var parsed struct {
		Data struct {
			CollectionCreate *struct {
				ID string `json:"id"`
			} `json:"bookmark_collection_create"`
			FolderCreate *struct {
				ID string `json:"id"`
			} `json:"bookmark_folder_create"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res, &parsed); err != nil {
		return Folder{}, errors.NewMalformedResponse(opcache.CreateBookmarkFolder, err)
	}

	var id string
	switch {
	case parsed.Data.CollectionCreate != nil && parsed.Data.CollectionCreate.ID != "":
		id = parsed.Data.CollectionCreate.ID
	case parsed.Data.FolderCreate != nil && parsed.Data.FolderCreate.ID != "":
		id = parsed.Data.FolderCreate.ID
	}
	if id == "" {
		if err := graphqlErrors(opcache.CreateBookmarkFolder, res); err != nil {
			return Folder{}, err
		}
		return Folder{}, errors.NewMalformedResponse(opcache.CreateBookmarkFolder, fmt.Errorf("no folder id in response"))
	}
	return Folder{ID: id, Name: name}, nil
}

// ListFolders returns every bookmark folder of the account.
func (g *Gateway) ListFolders(ctx context.Context) ([]Folder, error) {
	res, err := g.Call(ctx, opcache.BookmarkFoldersSlice, map[string]any{}, GET)
	if err != nil {
		return nil, err
	}

	type slice struct {
		Items []Folder `json:"items"`
	}
	var parsed struct {
		Data struct {
			Viewer *struct {
				UserResults struct {
					Result struct {
						Slice *slice `json:"bookmark_collections_slice"`
					} `json:"result"`
				} `json:"user_results"`
			} `json:"viewer"`
			Slice *slice `json:"bookmark_collections_slice"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res, &parsed); err != nil {
		return nil, errors.NewMalformedResponse(opcache.BookmarkFoldersSlice, err)
	}

	var items []Folder
	switch {
	case parsed.Data.Viewer != nil && parsed.Data.Viewer.UserResults.Result.Slice != nil:
		items = parsed.Data.Viewer.UserResults.Result.Slice.Items
	case parsed.Data.Slice != nil:
		items = parsed.Data.Slice.Items
	}

	out := make([]Folder, 0, len(items))
	for _, f := range items {
		if f.ID != "" {
			out = append(out, f)
		}
	}
	return out, nil
}

// AddTweetToFolder files a bookmarked post into a folder.
func (g *Gateway) AddTweetToFolder(ctx context.Context, tweetID, folderID string) error {
	vars := map[string]any{"tweet_id": tweetID, "bookmark_collection_id": folderID}
	res, err := g.Call(ctx, opcache.BookmarkTweetToFolder, vars, POST)
	if err != nil {
		return err
	}
	return graphqlErrors(opcache.BookmarkTweetToFolder, res)
}

// RemoveTweetFromFolder takes a post out of a folder.
func (g *Gateway) RemoveTweetFromFolder(ctx context.Context, tweetID, folderID string) error {
	vars := map[string]any{"tweet_id": tweetID, "bookmark_collection_id": folderID}
	res, err := g.Call(ctx, opcache.RemoveTweetFromBookmarkFolder, vars, POST)
	if err != nil {
		return err
	}
	return graphqlErrors(opcache.RemoveTweetFromBookmarkFolder, res)
}

// FolderTimeline fetches one page of a folder's posts. An empty cursor
// requests the first page.
func (g *Gateway) FolderTimeline(ctx context.Context, folderID, cursor string) (json.RawMessage, error) {
	vars := map[string]any{"bookmark_collection_id": folderID, "count": TimelinePageSize}
	if cursor != "" {
		vars["cursor"] = cursor
	}
	return g.Call(ctx, opcache.BookmarkFolderTimeline, vars, GET)
}

// graphqlErrors reports a response that carries errors and no data.
func graphqlErrors(op string, res json.RawMessage) error {
	var parsed struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(res, &parsed); err != nil {
		return nil
	}
	if len(parsed.Errors) == 0 || (len(parsed.Data) > 0 && string(parsed.Data) != "null") {
		return nil
	}
	return errors.NewRemoteError(op, 200, truncate(parsed.Errors[0].Message, errorBodyLimit))
}
