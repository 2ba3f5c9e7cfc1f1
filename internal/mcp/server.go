package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/PlayerYK/TweetSift/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"archive", "state", "operation", "export"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"archive_check": {
		def:     archiveCheckToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleArchiveCheck },
	},
	"archive_prepare": {
		def:     archivePrepareToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleArchivePrepare },
	},
	"archive_run": {
		def:     archiveRunToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleArchiveRun },
	},
	"archive_undo": {
		def:     archiveUndoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleArchiveUndo },
	},
	"archive_report_success": {
		def:     archiveReportSuccessToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleArchiveReportSuccess },
	},
	"archive_report_removed": {
		def:     archiveReportRemovedToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleArchiveReportRemoved },
	},
	"archive_save_folder": {
		def:     archiveSaveFolderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleArchiveSaveFolder },
	},
	"archive_cancel_info": {
		def:     archiveCancelInfoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleArchiveCancelInfo },
	},
	"archive_classify": {
		def:     archiveClassifyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleArchiveClassify },
	},
	"state_get_enabled": {
		def:     stateGetEnabledToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStateGetEnabled },
	},
	"state_set_enabled": {
		def:     stateSetEnabledToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStateSetEnabled },
	},
	"state_get_stats": {
		def:     stateGetStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStateGetStats },
	},
	"operation_status": {
		def:     operationStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleOperationStatus },
	},
	"operation_report_invalid": {
		def:     operationReportInvalidToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleOperationReportInvalid },
	},
	"operation_observe": {
		def:     operationObserveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleOperationObserve },
	},
	"export_start": {
		def:     exportStartToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExportStart },
	},
	"export_status": {
		def:     exportStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExportStatus },
	},
	"export_clear": {
		def:     exportClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExportClear },
	},
	"export_cancel": {
		def:     exportCancelToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExportCancel },
	},
	"export_list_folders": {
		def:     exportListFoldersToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExportListFolders },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "export_start" → "export").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with TweetSift tools registered.
// Tools listed in rt.Config.DisabledTools or belonging to
// rt.Config.DisabledTypes are excluded from registration.
func NewServer(rt *ops.Runtime, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"tweetsift",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(rt)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(rt.Config.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range rt.Config.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(rt *ops.Runtime, version string) error {
	s := NewServer(rt, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
