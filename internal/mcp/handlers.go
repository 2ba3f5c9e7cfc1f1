package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/PlayerYK/TweetSift/internal/errors"
	"github.com/PlayerYK/TweetSift/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	rt *ops.Runtime
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(rt *ops.Runtime) *Handlers {
	return &Handlers{rt: rt}
}

// HandleArchiveCheck handles the archive_check tool call.
func (h *Handlers) HandleArchiveCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.TweetInput](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.CheckArchived(ctx, h.rt, input))
}

// HandleArchivePrepare handles the archive_prepare tool call.
func (h *Handlers) HandleArchivePrepare(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.ArchiveInput](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.PrepareArchive(ctx, h.rt, input))
}

// HandleArchiveRun handles the archive_run tool call.
func (h *Handlers) HandleArchiveRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.ArchiveInput](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.Archive(ctx, h.rt, input))
}

// HandleArchiveUndo handles the archive_undo tool call.
func (h *Handlers) HandleArchiveUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.TweetInput](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.Undo(ctx, h.rt, input))
}

// HandleArchiveReportSuccess handles the archive_report_success tool call.
func (h *Handlers) HandleArchiveReportSuccess(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.ReportArchiveInput](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.ReportArchiveSuccess(ctx, h.rt, input))
}

// HandleArchiveReportRemoved handles the archive_report_removed tool call.
func (h *Handlers) HandleArchiveReportRemoved(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.TweetInput](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.ReportArchiveRemoved(ctx, h.rt, input))
}

// HandleArchiveSaveFolder handles the archive_save_folder tool call.
func (h *Handlers) HandleArchiveSaveFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.SaveFolderInput](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.SaveFolder(ctx, h.rt, input))
}

// HandleArchiveCancelInfo handles the archive_cancel_info tool call.
func (h *Handlers) HandleArchiveCancelInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.TweetInput](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.GetCancelInfo(ctx, h.rt, input))
}

// HandleArchiveClassify handles the archive_classify tool call.
func (h *Handlers) HandleArchiveClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.ClassifyInput](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.Classify(ctx, h.rt, input))
}

// HandleStateGetEnabled handles the state_get_enabled tool call.
func (h *Handlers) HandleStateGetEnabled(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(ops.GetEnabled(ctx, h.rt))
}

// HandleStateSetEnabled handles the state_set_enabled tool call.
func (h *Handlers) HandleStateSetEnabled(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.SetEnabledInput](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.SetEnabled(ctx, h.rt, input))
}

// HandleStateGetStats handles the state_get_stats tool call.
func (h *Handlers) HandleStateGetStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(ops.GetStats(ctx, h.rt))
}

// HandleOperationStatus handles the operation_status tool call.
func (h *Handlers) HandleOperationStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(ops.GetOperationStatus(ctx, h.rt))
}

// HandleOperationReportInvalid handles the operation_report_invalid tool call.
func (h *Handlers) HandleOperationReportInvalid(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.OperationInput](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.ReportOperationInvalid(ctx, h.rt, input))
}

// HandleOperationObserve handles the operation_observe tool call.
func (h *Handlers) HandleOperationObserve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.ObserveInput](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.ObserveRequest(ctx, h.rt, input))
}

// HandleExportStart handles the export_start tool call.
func (h *Handlers) HandleExportStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.StartExportInput](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.StartExport(ctx, h.rt, input))
}

// HandleExportStatus handles the export_status tool call.
func (h *Handlers) HandleExportStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(ops.GetExportStatus(ctx, h.rt))
}

// HandleExportClear handles the export_clear tool call.
func (h *Handlers) HandleExportClear(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(ops.ClearExport(ctx, h.rt))
}

// HandleExportCancel handles the export_cancel tool call.
func (h *Handlers) HandleExportCancel(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(ops.CancelExport(ctx, h.rt))
}

// HandleExportListFolders handles the export_list_folders tool call.
func (h *Handlers) HandleExportListFolders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(ops.ListFolders(ctx, h.rt))
}

// Result helpers

// respond turns an ops result into a tool result.
func respond[R any](result R, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
func errorResult(err error) *mcp.CallToolResult {
	_, payload := errors.Envelope(err)
	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
