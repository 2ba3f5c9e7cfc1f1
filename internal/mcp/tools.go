package mcp

import "github.com/mark3labs/mcp-go/mcp"

func tweetIDParam() mcp.ToolOption {
	return mcp.WithString("tweet_id",
		mcp.Required(),
		mcp.Description("Numeric id of the post"),
	)
}

func categoryParam() mcp.ToolOption {
	return mcp.WithNumber("category",
		mcp.Required(),
		mcp.Description("1 = video, 2 = nano, 3 = image"),
		mcp.Min(1),
		mcp.Max(3),
	)
}

var archiveCheckToolDef = mcp.NewTool("archive_check",
	mcp.WithDescription("Report whether a post has been archived by TweetSift."),
	tweetIDParam(),
)

var archivePrepareToolDef = mcp.NewTool("archive_prepare",
	mcp.WithDescription("Check that a post can be archived now: enabled, not archived yet, and every needed operation id captured. Has no side effects."),
	tweetIDParam(),
	categoryParam(),
)

var archiveRunToolDef = mcp.NewTool("archive_run",
	mcp.WithDescription("Bookmark a post and file it into today's dated folder for the category, creating the folder when needed."),
	tweetIDParam(),
	categoryParam(),
)

var archiveUndoToolDef = mcp.NewTool("archive_undo",
	mcp.WithDescription("Reverse an archive: unbookmark the post, remove it from its folder when possible, and drop its record."),
	tweetIDParam(),
)

var archiveReportSuccessToolDef = mcp.NewTool("archive_report_success",
	mcp.WithDescription("Record an archive that the caller performed itself. Counts once per post."),
	tweetIDParam(),
	categoryParam(),
	mcp.WithString("folder_id", mcp.Description("Folder the post was filed into")),
)

var archiveReportRemovedToolDef = mcp.NewTool("archive_report_removed",
	mcp.WithDescription("Drop the archive record of a post the caller unbookmarked itself."),
	tweetIDParam(),
)

var archiveSaveFolderToolDef = mcp.NewTool("archive_save_folder",
	mcp.WithDescription("Cache today's folder for a category."),
	categoryParam(),
	mcp.WithString("folder_id", mcp.Required(), mcp.Description("Remote folder id")),
	mcp.WithString("folder_name", mcp.Description("Folder name; defaults to today's dated name")),
)

var archiveCancelInfoToolDef = mcp.NewTool("archive_cancel_info",
	mcp.WithDescription("Return the folder and operation ids needed to take an archived post out of its folder."),
	tweetIDParam(),
)

var archiveClassifyToolDef = mcp.NewTool("archive_classify",
	mcp.WithDescription("Suggest a category for a post from its text and media."),
	mcp.WithString("text", mcp.Description("Post text")),
	mcp.WithBoolean("has_video", mcp.Description("Post carries a video")),
	mcp.WithBoolean("has_image", mcp.Description("Post carries an image")),
)

var stateGetEnabledToolDef = mcp.NewTool("state_get_enabled",
	mcp.WithDescription("Report whether archiving is enabled."),
)

var stateSetEnabledToolDef = mcp.NewTool("state_set_enabled",
	mcp.WithDescription("Enable or disable archiving. Re-enabling clears today's folder cache."),
	mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("New value")),
)

var stateGetStatsToolDef = mcp.NewTool("state_get_stats",
	mcp.WithDescription("Return today's per-category archive counts and the lifetime total."),
)

var operationStatusToolDef = mcp.NewTool("operation_status",
	mcp.WithDescription("List every required GraphQL operation with its captured id, or null when missing."),
)

var operationReportInvalidToolDef = mcp.NewTool("operation_report_invalid",
	mcp.WithDescription("Mark an operation id unusable until it is captured again."),
	mcp.WithString("operation", mcp.Required(), mcp.Description("Operation name, e.g. CreateBookmark")),
)

var operationObserveToolDef = mcp.NewTool("operation_observe",
	mcp.WithDescription("Feed an observed GraphQL request into the operation-id cache."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Request URL of the form .../i/api/graphql/<id>/<name>")),
	mcp.WithString("body", mcp.Description("Raw request body")),
)

var exportStartToolDef = mcp.NewTool("export_start",
	mcp.WithDescription("Start a background export of the given bookmark folders. Only one export runs at a time."),
	mcp.WithArray("folders",
		mcp.Required(),
		mcp.Description("Folders to export"),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":   map[string]any{"type": "string"},
				"name": map[string]any{"type": "string"},
			},
			"required": []string{"id"},
		}),
	),
	mcp.WithBoolean("resume", mcp.Description("Continue each folder from its saved checkpoint")),
)

var exportStatusToolDef = mcp.NewTool("export_status",
	mcp.WithDescription("Return the current or last export job, or null."),
)

var exportClearToolDef = mcp.NewTool("export_clear",
	mcp.WithDescription("Empty the export job slot. Fails while a job is running."),
)

var exportCancelToolDef = mcp.NewTool("export_cancel",
	mcp.WithDescription("Stop the running export after its current page, keeping partial results."),
)

var exportListFoldersToolDef = mcp.NewTool("export_list_folders",
	mcp.WithDescription("List the account's bookmark folders."),
)
