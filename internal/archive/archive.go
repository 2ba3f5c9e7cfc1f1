// Package archive files posts into dated per-category bookmark folders and
// undoes that filing.
package archive

import (
	"context"
	stderrors "errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/PlayerYK/TweetSift/internal/category"
	"github.com/PlayerYK/TweetSift/internal/errors"
	"github.com/PlayerYK/TweetSift/internal/gateway"
	"github.com/PlayerYK/TweetSift/internal/opcache"
	"github.com/PlayerYK/TweetSift/internal/poll"
	"github.com/PlayerYK/TweetSift/internal/state"
)

// Phase is a step of the archive state machine.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhasePreparing       Phase = "preparing"
	PhaseFolderResolving Phase = "folder_resolving"
	PhaseNativeSaving    Phase = "native_saving"
	PhaseRemoteArchiving Phase = "remote_archiving"
	PhaseRecorded        Phase = "recorded"
	PhaseFailed          Phase = "failed"
	PhaseUndoing         Phase = "undoing"
)

// NativeControl is the host page's own bookmark toggle.
type NativeControl interface {
	// Saved reports whether the post currently shows as bookmarked.
	Saved(ctx context.Context, tweetID string) (bool, error)
	// Press toggles the bookmark control once.
	Press(ctx context.Context, tweetID string) error
}

// Remote is the subset of gateway operations the orchestrator uses.
type Remote interface {
	ListFolders(ctx context.Context) ([]gateway.Folder, error)
	CreateFolder(ctx context.Context, name string) (gateway.Folder, error)
	AddTweetToFolder(ctx context.Context, tweetID, folderID string) error
	RemoveTweetFromFolder(ctx context.Context, tweetID, folderID string) error
}

// Capabilities reports which operation ids are usable. *opcache.Cache implements it.
type Capabilities interface {
	OperationID(ctx context.Context, name string) (string, error)
	Missing(ctx context.Context, ops ...string) ([]string, error)
}

// Options tunes the native polling.
type Options struct {
	NativeTimeout time.Duration
	NativePoll    time.Duration
}

// Orchestrator runs archive and undo workflows.
type Orchestrator struct {
	store  *state.Store
	caps   Capabilities
	remote Remote
	native NativeControl
	logger *slog.Logger

	timeout  time.Duration
	interval time.Duration

	mu       sync.Mutex
	inflight map[string]Phase
}

// New returns an Orchestrator.
func New(store *state.Store, caps Capabilities, remote Remote, native NativeControl, logger *slog.Logger, opts Options) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		caps:     caps,
		remote:   remote,
		native:   native,
		logger:   logger,
		timeout:  opts.NativeTimeout,
		interval: opts.NativePoll,
		inflight: make(map[string]Phase),
	}
	if o.timeout <= 0 {
		o.timeout = 3500 * time.Millisecond
	}
	if o.interval <= 0 {
		o.interval = 80 * time.Millisecond
	}
	return o
}

// Preparation is the side-effect-free readiness report for one archive.
type Preparation struct {
	TweetID            string            `json:"tweet_id"`
	Category           category.Category `json:"category"`
	FolderName         string            `json:"folder_name"`
	Folder             *state.FolderRef  `json:"folder"`
	NeedCreateFolder   bool              `json:"need_create_folder"`
	NeededOperationIDs map[string]string `json:"needed_operation_ids"`
}

// Result describes a completed archive.
type Result struct {
	TweetID       string            `json:"tweet_id"`
	Category      category.Category `json:"category"`
	Folder        state.FolderRef   `json:"folder"`
	FolderCreated bool              `json:"folder_created"`
	AlreadySaved  bool              `json:"already_saved"`
	Stats         state.Stats       `json:"stats"`
}

// UndoResult describes a completed undo.
type UndoResult struct {
	TweetID       string      `json:"tweet_id"`
	Unsaved       bool        `json:"unsaved"`
	FolderRemoved bool        `json:"folder_removed"`
	LedgerRemoved bool        `json:"ledger_removed"`
	Stats         state.Stats `json:"stats"`
}

// Phase returns the current phase of an in-flight workflow for tweetID.
func (o *Orchestrator) Phase(tweetID string) Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p, ok := o.inflight[tweetID]; ok {
		return p
	}
	return PhaseIdle
}

// InFlight returns a snapshot of every running workflow.
func (o *Orchestrator) InFlight() map[string]Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return maps.Clone(o.inflight)
}

// Prepare checks, without side effects, whether tweetID can be archived into
// cat and reports which operation ids the caller needs.
func (o *Orchestrator) Prepare(ctx context.Context, tweetID string, cat category.Category) (*Preparation, error) {
	if err := validate(tweetID, cat); err != nil {
		return nil, err
	}
	return o.prepare(ctx, tweetID, cat)
}

func (o *Orchestrator) prepare(ctx context.Context, tweetID string, cat category.Category) (*Preparation, error) {
	enabled, err := o.store.Enabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, errors.NewDisabled()
	}

	archived, err := o.store.IsArchived(ctx, tweetID)
	if err != nil {
		return nil, err
	}
	if archived {
		return nil, errors.NewDuplicate(tweetID)
	}

	folder, err := o.store.Folder(ctx, cat)
	if err != nil {
		return nil, err
	}

	required := []string{opcache.BookmarkTweetToFolder}
	if folder == nil {
		required = append(required, opcache.BookmarkFoldersSlice, opcache.CreateBookmarkFolder)
	}
	missing, err := o.caps.Missing(ctx, required...)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, errors.NewMissingCapability(missing)
	}

	needed := make(map[string]string, len(required)+2)
	for _, name := range append(required, opcache.CreateBookmark, opcache.DeleteBookmark) {
		id, err := o.caps.OperationID(ctx, name)
		if err != nil {
			return nil, err
		}
		if id != "" {
			needed[name] = id
		}
	}

	return &Preparation{
		TweetID:            tweetID,
		Category:           cat,
		FolderName:         category.FolderName(cat, o.store.Now()),
		Folder:             folder,
		NeedCreateFolder:   folder == nil,
		NeededOperationIDs: needed,
	}, nil
}

// Archive saves tweetID natively and files it into today's folder for cat.
func (o *Orchestrator) Archive(ctx context.Context, tweetID string, cat category.Category) (*Result, error) {
	if err := validate(tweetID, cat); err != nil {
		return nil, err
	}
	if !o.begin(tweetID) {
		return nil, errors.NewDuplicate(tweetID)
	}
	defer o.end(tweetID)

	// The host page's saved state overrides everything else.
	saved, err := o.native.Saved(ctx, tweetID)
	if err != nil {
		return nil, o.fail(tweetID, PhasePreparing, err)
	}
	if saved {
		res, err := o.alreadySaved(ctx, tweetID, cat)
		if err != nil {
			return nil, o.fail(tweetID, PhasePreparing, err)
		}
		return res, nil
	}

	prep, err := o.prepare(ctx, tweetID, cat)
	if err != nil {
		return nil, o.fail(tweetID, PhasePreparing, err)
	}

	res := &Result{TweetID: tweetID, Category: cat}
	if prep.Folder != nil {
		res.Folder = *prep.Folder
	} else {
		o.setPhase(tweetID, PhaseFolderResolving)
		ref, created, err := o.resolveFolder(ctx, cat, prep.FolderName)
		if err != nil {
			return nil, o.fail(tweetID, PhaseFolderResolving, err)
		}
		res.Folder, res.FolderCreated = ref, created
	}

	o.setPhase(tweetID, PhaseNativeSaving)
	if err := o.setNative(ctx, tweetID, true); err != nil {
		return nil, o.fail(tweetID, PhaseNativeSaving, err)
	}

	o.setPhase(tweetID, PhaseRemoteArchiving)
	if err := o.remote.AddTweetToFolder(ctx, tweetID, res.Folder.ID); err != nil {
		return nil, o.fail(tweetID, PhaseRemoteArchiving, err)
	}

	stats, err := o.store.RecordArchive(ctx, tweetID, cat, res.Folder.ID)
	if err != nil {
		return nil, o.fail(tweetID, PhaseRemoteArchiving, err)
	}
	res.Stats = stats
	o.setPhase(tweetID, PhaseRecorded)

	o.logger.Info("archived", "tweet_id", tweetID, "category", cat, "folder", res.Folder.Name)
	return res, nil
}

// alreadySaved handles a post the host already shows bookmarked: DUPLICATE
// when it is in the ledger, otherwise a no-op result. Nothing is recorded.
func (o *Orchestrator) alreadySaved(ctx context.Context, tweetID string, cat category.Category) (*Result, error) {
	archived, err := o.store.IsArchived(ctx, tweetID)
	if err != nil {
		return nil, err
	}
	if archived {
		return nil, errors.NewDuplicate(tweetID)
	}
	o.logger.Info("already saved natively", "tweet_id", tweetID)
	ref := state.FolderRef{Name: category.FolderName(cat, o.store.Now())}
	cached, err := o.store.Folder(ctx, cat)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		ref = *cached
	}
	stats, err := o.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{TweetID: tweetID, Category: cat, Folder: ref, AlreadySaved: true, Stats: stats}, nil
}

// ResolveFolder returns today's folder for cat, reusing the cache, then an
// existing remote folder with the exact name, and creating one otherwise.
func (o *Orchestrator) ResolveFolder(ctx context.Context, cat category.Category) (state.FolderRef, bool, error) {
	if !cat.Valid() {
		return state.FolderRef{}, false, errors.NewInvalidRequest("unknown category")
	}
	ref, err := o.store.Folder(ctx, cat)
	if err != nil {
		return state.FolderRef{}, false, err
	}
	if ref != nil {
		return *ref, false, nil
	}
	return o.resolveFolder(ctx, cat, category.FolderName(cat, o.store.Now()))
}

func (o *Orchestrator) resolveFolder(ctx context.Context, cat category.Category, name string) (state.FolderRef, bool, error) {
	// Without the listing an existing folder for today could not be seen, so
	// a failure aborts instead of creating a second folder with the same name.
	folders, err := o.remote.ListFolders(ctx)
	if err != nil {
		return state.FolderRef{}, false, err
	}

	var ref state.FolderRef
	created := false
	for _, f := range folders {
		if f.Name == name {
			ref = state.FolderRef{ID: f.ID, Name: f.Name}
			break
		}
	}
	if ref.ID == "" {
		f, err := o.remote.CreateFolder(ctx, name)
		if err != nil {
			return state.FolderRef{}, false, err
		}
		ref = state.FolderRef{ID: f.ID, Name: name}
		created = true
		o.logger.Info("folder created", "name", name, "id", f.ID)
	}

	if err := o.store.PutFolder(ctx, cat, ref); err != nil {
		return state.FolderRef{}, false, err
	}
	return ref, created, nil
}

// Undo unsaves tweetID natively, removes it from its folder when possible,
// and drops its ledger entry. A native timeout changes nothing locally.
func (o *Orchestrator) Undo(ctx context.Context, tweetID string) (*UndoResult, error) {
	if tweetID == "" {
		return nil, errors.NewInvalidRequest("tweet_id is required")
	}
	if !o.begin(tweetID) {
		return nil, errors.NewInvalidRequest("an archive or undo for this post is already running")
	}
	defer o.end(tweetID)
	o.setPhase(tweetID, PhaseUndoing)

	saved, err := o.native.Saved(ctx, tweetID)
	if err != nil {
		return nil, o.fail(tweetID, PhaseUndoing, err)
	}
	res := &UndoResult{TweetID: tweetID}
	if saved {
		if err := o.setNative(ctx, tweetID, false); err != nil {
			return nil, o.fail(tweetID, PhaseUndoing, err)
		}
		res.Unsaved = true
	}

	entry, err := o.store.LedgerEntry(ctx, tweetID)
	if err != nil {
		return nil, o.fail(tweetID, PhaseUndoing, err)
	}
	if entry != nil && entry.FolderID != "" {
		res.FolderRemoved = o.removeFromFolder(ctx, tweetID, entry.FolderID)
	}

	removed, err := o.store.RemoveArchive(ctx, tweetID)
	if err != nil {
		return nil, o.fail(tweetID, PhaseUndoing, err)
	}
	res.LedgerRemoved = removed != nil

	res.Stats, err = o.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	o.logger.Info("archive undone", "tweet_id", tweetID, "folder_removed", res.FolderRemoved)
	return res, nil
}

// removeFromFolder is best effort; failures are logged only.
func (o *Orchestrator) removeFromFolder(ctx context.Context, tweetID, folderID string) bool {
	id, err := o.caps.OperationID(ctx, opcache.RemoveTweetFromBookmarkFolder)
	if err != nil || id == "" {
		return false
	}
	if err := o.remote.RemoveTweetFromFolder(ctx, tweetID, folderID); err != nil {
		o.logger.Warn("remove from folder failed", "tweet_id", tweetID, "folder_id", folderID, "error", err)
		return false
	}
	return true
}

// setNative presses the native control when needed and waits for the wanted state.
func (o *Orchestrator) setNative(ctx context.Context, tweetID string, want bool) error {
	current, err := o.native.Saved(ctx, tweetID)
	if err != nil {
		return err
	}
	if current == want {
		return nil
	}
	if err := o.native.Press(ctx, tweetID); err != nil {
		return err
	}

	err = poll.Until(ctx, o.interval, o.timeout, func(ctx context.Context) (bool, error) {
		saved, err := o.native.Saved(ctx, tweetID)
		return saved == want, err
	})
	if stderrors.Is(err, poll.ErrTimeout) {
		return errors.NewNativeActionTimeout(tweetID, want)
	}
	return err
}

func (o *Orchestrator) begin(tweetID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[tweetID]; busy {
		return false
	}
	o.inflight[tweetID] = PhasePreparing
	return true
}

func (o *Orchestrator) end(tweetID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, tweetID)
}

func (o *Orchestrator) setPhase(tweetID string, p Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight[tweetID] = p
}

// fail records the failed phase on err and logs it. Duplicates are not failures.
func (o *Orchestrator) fail(tweetID string, phase Phase, err error) error {
	o.setPhase(tweetID, PhaseFailed)
	if errors.Is(err, errors.ErrDuplicate) {
		return err
	}
	o.logger.Warn("archive step failed", "tweet_id", tweetID, "phase", phase, "error", err)
	if sErr, ok := errors.As(err); ok {
		details := maps.Clone(sErr.Details)
		if details == nil {
			details = map[string]any{}
		}
		details["phase"] = string(phase)
		return &errors.SiftError{Code: sErr.Code, Status: sErr.Status, Message: sErr.Message, Details: details}
	}
	return err
}

func validate(tweetID string, cat category.Category) error {
	if tweetID == "" {
		return errors.NewInvalidRequest("tweet_id is required")
	}
	if !cat.Valid() {
		return errors.NewInvalidRequest("category must be 1 (video), 2 (nano) or 3 (image)")
	}
	return nil
}
