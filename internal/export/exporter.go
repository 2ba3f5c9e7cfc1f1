// Package export runs the bulk folder export: one job at a time, paginated
// timeline fetches with throttling and rate-limit backoff, durable per-page
// checkpoints and JSON/HTML output files.
package export

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	mrand "math/rand/v2"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/PlayerYK/TweetSift/internal/errors"
	"github.com/PlayerYK/TweetSift/internal/gateway"
	"github.com/PlayerYK/TweetSift/internal/state"
)

// DefaultPageCeiling bounds pagination of a single folder.
const DefaultPageCeiling = 100

// Source fetches one folder timeline page. *gateway.Gateway implements it.
type Source interface {
	FolderTimeline(ctx context.Context, folderID, cursor string) (json.RawMessage, error)
}

// Options configures an Exporter. Zero values take defaults.
type Options struct {
	PageCeiling      int
	DelayMin         time.Duration
	DelayMax         time.Duration
	RateLimitRetries int
	MaxRateLimitWait time.Duration

	// OutputDir receives <job id>.json (and .html). Empty disables output files.
	OutputDir string
	Formats   []string

	// Sleep and Delay are replaceable in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Delay func() time.Duration
}

// StartOptions tunes a single job.
type StartOptions struct {
	// Resume continues each folder from its saved checkpoint instead of
	// starting over.
	Resume bool
}

// Exporter owns the export job slot.
type Exporter struct {
	source Source
	store  *state.Store
	logger *slog.Logger
	opts   Options

	mu     sync.Mutex
	job    *Job
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an Exporter.
func New(source Source, store *state.Store, logger *slog.Logger, opts Options) *Exporter {
	if opts.PageCeiling <= 0 {
		opts.PageCeiling = DefaultPageCeiling
	}
	if opts.DelayMin <= 0 {
		opts.DelayMin = 5 * time.Second
	}
	if opts.DelayMax < opts.DelayMin {
		opts.DelayMax = opts.DelayMin
	}
	if opts.RateLimitRetries < 0 {
		opts.RateLimitRetries = 0
	}
	if opts.MaxRateLimitWait <= 0 {
		opts.MaxRateLimitWait = 15 * time.Minute
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	e := &Exporter{source: source, store: store, logger: logger, opts: opts}
	if e.opts.Delay == nil {
		e.opts.Delay = e.randomDelay
	}
	return e
}

// Start launches a job over folders. Fails with ALREADY_RUNNING while a job runs.
func (e *Exporter) Start(folders []gateway.Folder, opts StartOptions) (*Job, error) {
	if len(folders) == 0 {
		return nil, errors.NewInvalidRequest("at least one folder is required")
	}
	for _, f := range folders {
		if f.ID == "" {
			return nil, errors.NewInvalidRequest("folder id is required")
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.job != nil && e.job.Running {
		return nil, errors.NewAlreadyRunning()
	}

	id, err := newJobID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	e.job = &Job{
		ID:           id,
		Running:      true,
		TotalFolders: len(folders),
		Phase:        PhaseFetching,
		Results:      []FolderResult{},
		StartedAt:    e.store.Now(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.run(ctx, e.done, folders, opts)

	e.logger.Info("export started", "job_id", id, "folders", len(folders), "resume", opts.Resume)
	return e.job.clone(), nil
}

// Status returns a snapshot of the current job, or nil when the slot is empty.
func (e *Exporter) Status() *Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.job == nil {
		return nil
	}
	return e.job.clone()
}

// Clear empties the slot. A running job cannot be cleared.
func (e *Exporter) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.job != nil && e.job.Running {
		return errors.NewAlreadyRunning()
	}
	e.job = nil
	return nil
}

// Cancel asks the running job to stop after the current page. Results of
// finished folders and pages fetched so far are kept. Returns false when no
// job is running.
func (e *Exporter) Cancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.job == nil || !e.job.Running {
		return false
	}
	e.job.Cancelled = true
	e.cancel()
	e.logger.Info("export cancel requested", "job_id", e.job.ID)
	return true
}

// Wait blocks until the current job finishes or ctx ends.
func (e *Exporter) Wait(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels a running job and waits for it to stop.
func (e *Exporter) Close(ctx context.Context) error {
	e.Cancel()
	return e.Wait(ctx)
}

func (e *Exporter) run(ctx context.Context, done chan struct{}, folders []gateway.Folder, opts StartOptions) {
	defer close(done)

	for _, f := range folders {
		if ctx.Err() != nil {
			break
		}
		name := f.Name
		e.update(func(j *Job) {
			j.CurrentFolder = &name
			j.CurrentPages, j.CurrentTweets = 0, 0
			j.Phase = PhaseFetching
		})

		res := e.exportFolder(ctx, f, opts.Resume)
		e.update(func(j *Job) {
			j.Results = append(j.Results, res)
			j.CompletedFolders++
		})
		if res.Success {
			e.logger.Info("folder exported", "folder", f.Name, "tweets", len(res.Tweets), "pages", res.Pages)
		} else {
			e.logger.Warn("folder export failed", "folder", f.Name, "error", res.Error, "pages", res.Pages)
		}
	}

	e.mu.Lock()
	snapshot := e.job.clone()
	e.mu.Unlock()

	paths, err := writeOutputs(e.opts.OutputDir, e.opts.Formats, snapshot)
	finished := e.store.Now()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.job.Running = false
	e.job.CurrentFolder = nil
	e.job.FinishedAt = &finished
	e.job.OutputPaths = paths
	if err != nil {
		e.job.Error = err.Error()
		e.logger.Error("export output failed", "job_id", e.job.ID, "error", err)
	}
	e.logger.Info("export finished", "job_id", e.job.ID, "folders", e.job.CompletedFolders,
		"tweets", e.job.TweetCount(), "cancelled", e.job.Cancelled)
}

// exportFolder pages through one folder until it has no next cursor, a page
// yields no posts, or the page ceiling is reached.
func (e *Exporter) exportFolder(ctx context.Context, f gateway.Folder, resume bool) FolderResult {
	res := FolderResult{FolderID: f.ID, FolderName: f.Name}
	cursor := ""

	if resume {
		tweets, cp, err := e.restore(ctx, f.ID)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		if cp != nil {
			res.Tweets, res.Pages, cursor = tweets, cp.Pages, cp.Cursor
			if cp.Done || (cp.Pages > 0 && cp.Cursor == "") {
				return e.finishFolder(ctx, res)
			}
			e.logger.Info("resuming folder", "folder", f.Name, "pages", cp.Pages, "tweets", len(tweets))
		}
	} else if err := e.store.DeleteCheckpoint(ctx, f.ID); err != nil {
		res.Error = err.Error()
		return res
	}

	fetched := 0
	for res.Pages < e.opts.PageCeiling {
		if fetched > 0 {
			e.update(func(j *Job) { j.Phase = PhaseWaiting })
			if err := e.opts.Sleep(ctx, e.opts.Delay()); err != nil {
				res.Error = cancelledMessage
				return res
			}
			e.update(func(j *Job) { j.Phase = PhaseFetching })
		}
		if ctx.Err() != nil {
			res.Error = cancelledMessage
			return res
		}

		page, err := e.fetchPage(ctx, f.ID, cursor)
		if err != nil {
			if ctx.Err() != nil {
				res.Error = cancelledMessage
			} else {
				res.Error = err.Error()
			}
			return res
		}
		fetched++
		res.Pages++
		res.Tweets = append(res.Tweets, page.Tweets...)

		done := page.Cursor == "" || len(page.Tweets) == 0 || res.Pages >= e.opts.PageCeiling
		// A fetched page is checkpointed even when a cancel arrived mid-fetch.
		if err := e.checkpoint(context.WithoutCancel(ctx), f, page, res.Pages, done); err != nil {
			res.Error = err.Error()
			return res
		}

		pages, count := res.Pages, len(res.Tweets)
		e.update(func(j *Job) { j.CurrentPages, j.CurrentTweets = pages, count })

		if done {
			if res.Pages >= e.opts.PageCeiling && page.Cursor != "" && len(page.Tweets) > 0 {
				e.logger.Warn("page ceiling reached", "folder", f.Name, "pages", res.Pages)
			}
			break
		}
		cursor = page.Cursor
	}
	return e.finishFolder(ctx, res)
}

const cancelledMessage = "cancelled"

// finishFolder marks res successful and drops its checkpoint.
func (e *Exporter) finishFolder(ctx context.Context, res FolderResult) FolderResult {
	res.Success = true
	if err := e.store.DeleteCheckpoint(context.WithoutCancel(ctx), res.FolderID); err != nil {
		e.logger.Warn("checkpoint cleanup failed", "folder_id", res.FolderID, "error", err)
	}
	return res
}

// fetchPage fetches and parses one page, waiting out RATE_LIMITED responses
// up to the configured number of retries.
func (e *Exporter) fetchPage(ctx context.Context, folderID, cursor string) (*Page, error) {
	for attempt := 0; ; attempt++ {
		raw, err := e.source.FolderTimeline(ctx, folderID, cursor)
		if err == nil {
			page, err := ParsePage(raw, e.store.Now())
			if err != nil {
				return nil, errors.NewMalformedResponse("BookmarkFolderTimeline", err)
			}
			return page, nil
		}

		wait, limited := errors.RetryAfter(err)
		if !limited || attempt >= e.opts.RateLimitRetries {
			return nil, err
		}
		wait = min(wait, e.opts.MaxRateLimitWait)
		e.logger.Warn("rate limited, waiting", "folder_id", folderID, "wait", wait, "attempt", attempt+1)

		e.update(func(j *Job) { j.Phase = PhaseWaiting })
		if err := e.opts.Sleep(ctx, wait); err != nil {
			return nil, err
		}
		e.update(func(j *Job) { j.Phase = PhaseFetching })
	}
}

func (e *Exporter) checkpoint(ctx context.Context, f gateway.Folder, page *Page, pages int, done bool) error {
	records := make([]string, 0, len(page.Tweets))
	for _, t := range page.Tweets {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode tweet %s: %w", t.TweetID, err)
		}
		records = append(records, string(b))
	}
	return e.store.AppendCheckpoint(ctx, state.Checkpoint{
		FolderID:   f.ID,
		FolderName: f.Name,
		Cursor:     page.Cursor,
		Pages:      pages,
		Done:       done,
	}, records)
}

// restore loads a folder's checkpoint and the records saved with it.
func (e *Exporter) restore(ctx context.Context, folderID string) ([]TweetRecord, *state.Checkpoint, error) {
	cp, err := e.store.Checkpoint(ctx, folderID)
	if err != nil || cp == nil {
		return nil, nil, err
	}
	raw, err := e.store.CheckpointRecords(ctx, folderID)
	if err != nil {
		return nil, nil, err
	}
	tweets := make([]TweetRecord, 0, len(raw))
	for _, r := range raw {
		var t TweetRecord
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			return nil, nil, fmt.Errorf("decode checkpoint record: %w", err)
		}
		tweets = append(tweets, t)
	}
	return tweets, cp, nil
}

func (e *Exporter) update(fn func(j *Job)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.job != nil {
		fn(e.job)
	}
}

func (e *Exporter) randomDelay() time.Duration {
	span := e.opts.DelayMax - e.opts.DelayMin
	if span <= 0 {
		return e.opts.DelayMin
	}
	return e.opts.DelayMin + time.Duration(mrand.Int64N(int64(span)+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newJobID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
