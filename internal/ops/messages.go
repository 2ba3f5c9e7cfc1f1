package ops

import (
	"context"
	"strings"

	"github.com/PlayerYK/TweetSift/internal/archive"
	"github.com/PlayerYK/TweetSift/internal/category"
	"github.com/PlayerYK/TweetSift/internal/errors"
	"github.com/PlayerYK/TweetSift/internal/export"
	"github.com/PlayerYK/TweetSift/internal/gateway"
	"github.com/PlayerYK/TweetSift/internal/opcache"
	"github.com/PlayerYK/TweetSift/internal/state"
)

// TweetInput addresses a single post.
type TweetInput struct {
	TweetID string `json:"tweet_id"`
}

// ArchiveInput addresses a post and its target category.
type ArchiveInput struct {
	TweetID  string            `json:"tweet_id"`
	Category category.Category `json:"category"`
}

// ReportArchiveInput reports an archive the caller completed itself.
type ReportArchiveInput struct {
	TweetID  string            `json:"tweet_id"`
	Category category.Category `json:"category"`
	FolderID string            `json:"folder_id"`
}

// SetEnabledInput toggles the enabled flag.
type SetEnabledInput struct {
	Enabled *bool `json:"enabled"`
}

// OperationInput names a remote operation.
type OperationInput struct {
	Operation string `json:"operation"`
}

// SaveFolderInput caches a resolved folder for today.
type SaveFolderInput struct {
	Category   category.Category `json:"category"`
	FolderID   string            `json:"folder_id"`
	FolderName string            `json:"folder_name,omitempty"`
}

// StartExportInput lists the folders to export.
type StartExportInput struct {
	Folders []gateway.Folder `json:"folders"`
	Resume  bool             `json:"resume,omitempty"`
}

// ClassifyInput describes a post to categorize.
type ClassifyInput struct {
	Text     string `json:"text"`
	HasVideo bool   `json:"has_video,omitempty"`
	HasImage bool   `json:"has_image,omitempty"`
}

// ObserveInput is a GraphQL request seen by an external collector.
type ObserveInput struct {
	URL  string              `json:"url"`
	Body string              `json:"body,omitempty"`
	Form map[string][]string `json:"form,omitempty"`
}

// ArchivedOutput answers check-if-archived.
type ArchivedOutput struct {
	TweetID  string `json:"tweet_id"`
	Archived bool   `json:"archived"`
}

// EnabledOutput reports the enabled flag.
type EnabledOutput struct {
	Enabled            bool `json:"enabled"`
	FolderCacheCleared bool `json:"folder_cache_cleared,omitempty"`
}

// StatsOutput wraps the counters.
type StatsOutput struct {
	Stats state.Stats `json:"stats"`
}

// RemovedOutput answers report-archive-removed.
type RemovedOutput struct {
	TweetID string      `json:"tweet_id"`
	Removed bool        `json:"removed"`
	Stats   state.Stats `json:"stats"`
}

// OperationStatusOutput maps every required operation to its id or null.
type OperationStatusOutput struct {
	Operations map[string]*string `json:"operations"`
	Missing    []string           `json:"missing"`
}

// AckOutput acknowledges a message with no other result.
type AckOutput struct {
	OK bool `json:"ok"`
}

// FoldersOutput lists remote folders.
type FoldersOutput struct {
	Folders []gateway.Folder `json:"folders"`
}

// ExportStatusOutput wraps the job slot. Job is nil when the slot is empty.
type ExportStatusOutput struct {
	Job *export.Job `json:"job"`
}

// CancelExportOutput answers cancel-export.
type CancelExportOutput struct {
	Cancelled bool `json:"cancelled"`
}

// ObserveOutput answers observe-request.
type ObserveOutput struct {
	Changed bool `json:"changed"`
}

// CheckArchived reports whether the post is in the ledger.
func CheckArchived(ctx context.Context, rt *Runtime, in TweetInput) (*ArchivedOutput, error) {
	if in.TweetID == "" {
		return nil, errors.NewInvalidRequest("tweet_id is required")
	}
	archived, err := rt.Store.IsArchived(ctx, in.TweetID)
	if err != nil {
		return nil, err
	}
	return &ArchivedOutput{TweetID: in.TweetID, Archived: archived}, nil
}

// PrepareArchive checks readiness without side effects.
func PrepareArchive(ctx context.Context, rt *Runtime, in ArchiveInput) (*archive.Preparation, error) {
	return rt.Orchestrator.Prepare(ctx, in.TweetID, in.Category)
}

// Archive runs the full archive workflow.
func Archive(ctx context.Context, rt *Runtime, in ArchiveInput) (*archive.Result, error) {
	return rt.Orchestrator.Archive(ctx, in.TweetID, in.Category)
}

// Undo reverses an archive.
func Undo(ctx context.Context, rt *Runtime, in TweetInput) (*archive.UndoResult, error) {
	return rt.Orchestrator.Undo(ctx, in.TweetID)
}

// ReportArchiveSuccess records an archive the caller performed.
func ReportArchiveSuccess(ctx context.Context, rt *Runtime, in ReportArchiveInput) (*StatsOutput, error) {
	stats, err := rt.Orchestrator.ReportArchived(ctx, in.TweetID, in.Category, in.FolderID)
	if err != nil {
		return nil, err
	}
	return &StatsOutput{Stats: stats}, nil
}

// ReportArchiveRemoved drops the ledger entry of a post the caller unsaved.
func ReportArchiveRemoved(ctx context.Context, rt *Runtime, in TweetInput) (*RemovedOutput, error) {
	removed, stats, err := rt.Orchestrator.ReportRemoved(ctx, in.TweetID)
	if err != nil {
		return nil, err
	}
	return &RemovedOutput{TweetID: in.TweetID, Removed: removed, Stats: stats}, nil
}

// GetEnabled reads the enabled flag.
func GetEnabled(ctx context.Context, rt *Runtime) (*EnabledOutput, error) {
	enabled, err := rt.Store.Enabled(ctx)
	if err != nil {
		return nil, err
	}
	return &EnabledOutput{Enabled: enabled}, nil
}

// SetEnabled writes the enabled flag.
func SetEnabled(ctx context.Context, rt *Runtime, in SetEnabledInput) (*EnabledOutput, error) {
	if in.Enabled == nil {
		return nil, errors.NewInvalidRequest("enabled is required")
	}
	cleared, err := rt.Store.SetEnabled(ctx, *in.Enabled)
	if err != nil {
		return nil, err
	}
	return &EnabledOutput{Enabled: *in.Enabled, FolderCacheCleared: cleared}, nil
}

// GetStats returns today's counters and the lifetime total.
func GetStats(ctx context.Context, rt *Runtime) (*StatsOutput, error) {
	stats, err := rt.Store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsOutput{Stats: stats}, nil
}

// GetOperationStatus reports which operation ids are usable.
func GetOperationStatus(ctx context.Context, rt *Runtime) (*OperationStatusOutput, error) {
	status, err := rt.Operations.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := &OperationStatusOutput{Operations: status, Missing: []string{}}
	for _, name := range opcache.RequiredOperations {
		if status[name] == nil {
			out.Missing = append(out.Missing, name)
		}
	}
	return out, nil
}

// ReportOperationInvalid marks an operation id unusable until re-captured.
func ReportOperationInvalid(ctx context.Context, rt *Runtime, in OperationInput) (*AckOutput, error) {
	name := strings.TrimSpace(in.Operation)
	if name == "" {
		return nil, errors.NewInvalidRequest("operation is required")
	}
	if err := rt.Operations.Invalidate(ctx, name); err != nil {
		return nil, err
	}
	return &AckOutput{OK: true}, nil
}

// SaveFolder caches a folder for today's category.
func SaveFolder(ctx context.Context, rt *Runtime, in SaveFolderInput) (*AckOutput, error) {
	if !in.Category.Valid() {
		return nil, errors.NewInvalidRequest("category must be 1 (video), 2 (nano) or 3 (image)")
	}
	if err := rt.Orchestrator.SaveFolder(ctx, in.Category, in.FolderID, in.FolderName); err != nil {
		return nil, err
	}
	return &AckOutput{OK: true}, nil
}

// GetCancelInfo returns what a caller needs to take a post out of its folder.
func GetCancelInfo(ctx context.Context, rt *Runtime, in TweetInput) (*archive.CancelInfo, error) {
	if in.TweetID == "" {
		return nil, errors.NewInvalidRequest("tweet_id is required")
	}
	return rt.Orchestrator.CancelInfo(ctx, in.TweetID)
}

// ListFolders lists the account's bookmark folders.
func ListFolders(ctx context.Context, rt *Runtime) (*FoldersOutput, error) {
	folders, err := rt.Gateway.ListFolders(ctx)
	if err != nil {
		return nil, err
	}
	if folders == nil {
		folders = []gateway.Folder{}
	}
	return &FoldersOutput{Folders: folders}, nil
}

// StartExport launches a bulk export job.
func StartExport(_ context.Context, rt *Runtime, in StartExportInput) (*export.Job, error) {
	return rt.Exporter.Start(in.Folders, export.StartOptions{Resume: in.Resume})
}

// GetExportStatus returns the job slot.
func GetExportStatus(_ context.Context, rt *Runtime) (*ExportStatusOutput, error) {
	return &ExportStatusOutput{Job: rt.Exporter.Status()}, nil
}

// ClearExport empties a finished job slot.
func ClearExport(_ context.Context, rt *Runtime) (*AckOutput, error) {
	if err := rt.Exporter.Clear(); err != nil {
		return nil, err
	}
	return &AckOutput{OK: true}, nil
}

// CancelExport stops the running job after its current page.
func CancelExport(_ context.Context, rt *Runtime) (*CancelExportOutput, error) {
	return &CancelExportOutput{Cancelled: rt.Exporter.Cancel()}, nil
}

// Classify suggests a category for a post.
func Classify(_ context.Context, _ *Runtime, in ClassifyInput) (*category.Suggestion, error) {
	return category.Classify(in.Text, in.HasVideo, in.HasImage), nil
}

// ObserveRequest feeds a request seen by an external collector into the
// operation-id cache.
func ObserveRequest(ctx context.Context, rt *Runtime, in ObserveInput) (*ObserveOutput, error) {
	if _, _, ok := opcache.ParseURL(in.URL); !ok {
		return nil, errors.NewInvalidRequest("url is not a GraphQL operation endpoint")
	}
	var body *opcache.RequestBody
	if in.Body != "" || len(in.Form) > 0 {
		body = &opcache.RequestBody{Form: in.Form}
		if in.Body != "" {
			body.Raw = []byte(in.Body)
		}
	}
	changed, err := rt.Operations.Observe(ctx, in.URL, body)
	if err != nil {
		return nil, err
	}
	return &ObserveOutput{Changed: changed}, nil
}
