// Package opcache discovers GraphQL operation ids from observed traffic and
// hands them to the gateway until the remote rejects them.
package opcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"regexp"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/PlayerYK/TweetSift/internal/state"
)

// Operation names the system depends on.
const (
	CreateBookmark                = "CreateBookmark"
	DeleteBookmark                = "DeleteBookmark"
	CreateBookmarkFolder          = "createBookmarkFolder"
	BookmarkTweetToFolder         = "bookmarkTweetToFolder"
	BookmarkFoldersSlice          = "BookmarkFoldersSlice"
	RemoveTweetFromBookmarkFolder = "RemoveTweetFromBookmarkFolder"
	BookmarkFolderTimeline        = "BookmarkFolderTimeline"
)

// RequiredOperations lists every operation reported by Status.
var RequiredOperations = []string{
	CreateBookmark,
	DeleteBookmark,
	CreateBookmarkFolder,
	BookmarkTweetToFolder,
	BookmarkFoldersSlice,
	RemoveTweetFromBookmarkFolder,
	BookmarkFolderTimeline,
}

// Undecodable replaces request bodies that could not be decoded.
const Undecodable = "(unable to parse)"

const capturedCacheSize = 64

var graphqlURL = regexp.MustCompile(`^https://(x\.com|twitter\.com)/i/api/graphql/([^/]+)/([^/?]+)`)

// RequestBody is an observed request payload: raw bytes or form fields.
type RequestBody struct {
	Raw  []byte              `json:"raw,omitempty"`
	Form map[string][]string `json:"form,omitempty"`
}

// Captured is the last request seen for an operation.
type Captured struct {
	OperationID string          `json:"operation_id"`
	Body        string          `json:"body"`
	Features    json.RawMessage `json:"features,omitempty"`
	CapturedAt  time.Time       `json:"captured_at"`
}

// Cache maps operation names to their current ids. The invalidated set and
// captured bodies live in memory only.
type Cache struct {
	store  *state.Store
	logger *slog.Logger

	mu       sync.Mutex
	invalid  map[string]bool
	captured *expirable.LRU[string, Captured]
}

// New returns a Cache persisting through store. Captured bodies expire after ttl.
func New(store *state.Store, logger *slog.Logger, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		store:    store,
		logger:   logger,
		invalid:  make(map[string]bool),
		captured: expirable.NewLRU[string, Captured](capturedCacheSize, nil, ttl),
	}
}

// ParseURL extracts the operation id and name from a GraphQL endpoint URL.
func ParseURL(rawURL string) (id, name string, ok bool) {
	m := graphqlURL.FindStringSubmatch(rawURL)
	if m == nil {
		return "", "", false
	}
	return m[2], m[3], true
}

// Observe records the operation id carried by rawURL. Observing an unchanged,
// valid id writes nothing. Returns true when the persisted record changed.
func (c *Cache) Observe(ctx context.Context, rawURL string, body *RequestBody) (bool, error) {
	id, name, ok := ParseURL(rawURL)
	if !ok {
		return false, nil
	}

	captured := Captured{
		OperationID: id,
		Body:        decodeBody(body, rawURL),
		CapturedAt:  c.store.Now(),
	}
	captured.Features = extractFeatures(captured.Body)
	if captured.Body != "" {
		c.captured.Add(name, captured)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	wasInvalid := c.invalid[name]
	delete(c.invalid, name)

	current, err := c.store.Operation(ctx, name)
	if err != nil {
		return false, err
	}
	if !wasInvalid && current != nil && current.OperationID == id {
		return false, nil
	}

	rec := state.OperationRecord{Name: name, OperationID: id, CapturedAt: captured.CapturedAt}
	if captured.Body != "" {
		rec.LastRequestBody = &captured.Body
	} else if current != nil {
		rec.LastRequestBody = current.LastRequestBody
	}
	if err := c.store.PutOperation(ctx, rec); err != nil {
		return false, err
	}
	c.logger.Info("operation id captured", "operation", name, "id", id, "was_invalid", wasInvalid)
	return true, nil
}

// OperationID returns the usable id for name, or "" when it was never
// captured or has been invalidated.
func (c *Cache) OperationID(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	invalid := c.invalid[name]
	c.mu.Unlock()
	if invalid {
		return "", nil
	}

	rec, err := c.store.Operation(ctx, name)
	if err != nil || rec == nil {
		return "", err
	}
	return rec.OperationID, nil
}

// Invalidate marks name unusable and removes its persisted id. A later
// Observe of the same name clears the mark.
func (c *Cache) Invalidate(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalid[name] = true
	if err := c.store.DeleteOperation(ctx, name); err != nil {
		return err
	}
	c.logger.Warn("operation id invalidated", "operation", name)
	return nil
}

// Status maps each required operation to its usable id, or nil.
func (c *Cache) Status(ctx context.Context) (map[string]*string, error) {
	out := make(map[string]*string, len(RequiredOperations))
	for _, name := range RequiredOperations {
		id, err := c.OperationID(ctx, name)
		if err != nil {
			return nil, err
		}
		if id == "" {
			out[name] = nil
			continue
		}
		out[name] = &id
	}
	return out, nil
}

// Missing returns the names among ops that have no usable id, in order.
func (c *Cache) Missing(ctx context.Context, ops ...string) ([]string, error) {
	var missing []string
	for _, name := range ops {
		id, err := c.OperationID(ctx, name)
		if err != nil {
			return nil, err
		}
		if id == "" {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// Captured returns the last request observed for name, if still cached.
func (c *Cache) Captured(name string) (Captured, bool) {
	return c.captured.Get(name)
}

// Features returns the features object of the last request observed for
// name, falling back to the persisted body. Nil when none was seen.
func (c *Cache) Features(ctx context.Context, name string) json.RawMessage {
	if seen, ok := c.captured.Get(name); ok && len(seen.Features) > 0 {
		return seen.Features
	}
	rec, err := c.store.Operation(ctx, name)
	if err != nil || rec == nil || rec.LastRequestBody == nil {
		return nil
	}
	return extractFeatures(*rec.LastRequestBody)
}

// decodeBody renders an observed payload as text. GET requests carry their
// payload in the query string, which is re-encoded as a JSON body.
func decodeBody(body *RequestBody, rawURL string) string {
	switch {
	case body != nil && len(body.Raw) > 0:
		if !utf8.Valid(body.Raw) {
			return Undecodable
		}
		return string(body.Raw)
	case body != nil && body.Form != nil:
		data, err := json.Marshal(body.Form)
		if err != nil {
			return Undecodable
		}
		return string(data)
	case body != nil:
		return Undecodable
	}
	return queryBody(rawURL)
}

// queryBody packs the variables and features query parameters into a JSON
// object. Returns "" when the URL carries neither.
func queryBody(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	out := map[string]json.RawMessage{}
	for _, key := range []string{"variables", "features"} {
		v := q.Get(key)
		if v != "" && json.Valid([]byte(v)) {
			out[key] = json.RawMessage(v)
		}
	}
	if len(out) == 0 {
		return ""
	}
	data, err := json.Marshal(out)
	if err != nil {
		return ""
	}
	return string(data)
}

func extractFeatures(body string) json.RawMessage {
	if body == "" || body == Undecodable {
		return nil
	}
	var probe struct {
		Features json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal([]byte(body), &probe); err != nil {
		return nil
	}
	if len(probe.Features) == 0 || string(probe.Features) == "null" {
		return nil
	}
	return probe.Features
}
