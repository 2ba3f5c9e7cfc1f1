package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/PlayerYK/TweetSift/internal/browser"
	"github.com/PlayerYK/TweetSift/internal/category"
	"github.com/PlayerYK/TweetSift/internal/config"
	"github.com/PlayerYK/TweetSift/internal/db"
	"github.com/PlayerYK/TweetSift/internal/errors"
	"github.com/PlayerYK/TweetSift/internal/export"
	"github.com/PlayerYK/TweetSift/internal/gateway"
	"github.com/PlayerYK/TweetSift/internal/opcache"
	"github.com/PlayerYK/TweetSift/internal/ops"
	"github.com/PlayerYK/TweetSift/internal/state"
	"github.com/PlayerYK/TweetSift/internal/web"
)

// cliEnv carries what every command needs to build a runtime.
type cliEnv struct {
	db      *sql.DB
	cfg     *config.Config
	logger  *slog.Logger
	baseDir string
	// clock overrides the store clock in tests.
	clock state.Clock
}

// runtime wires the components. withBrowser attaches a browser session.
func (e *cliEnv) runtime(ctx context.Context, withBrowser bool) (*ops.Runtime, error) {
	if e == nil || e.db == nil {
		return nil, errors.NewInternal(fmt.Errorf("database not initialized"))
	}
	opts := ops.RuntimeOptions{BaseDir: e.baseDir, Clock: e.clock}
	if withBrowser {
		session, err := browser.Open(ctx, browser.Options{
			ControlURL:  e.cfg.BrowserControlURL,
			UserDataDir: e.cfg.BrowserUserDataDir,
			Headless:    e.cfg.BrowserHeadless,
			HomeURL:     e.cfg.HomeURL,
		}, e.logger.With("component", "browser"))
		if err != nil {
			return nil, err
		}
		opts.Session = session
	}
	return ops.NewRuntime(e.db, e.cfg, e.logger, opts), nil
}

// nativeNeedsBrowser reports whether archive and undo must drive a browser page.
func (e *cliEnv) nativeNeedsBrowser() bool {
	return e.cfg.NativeMode == config.NativeModeBrowser
}

// withRuntime runs fn against a runtime that is closed afterwards.
func withRuntime(c *cli.Context, env *cliEnv, withBrowser bool, fn func(ctx context.Context, rt *ops.Runtime) error) error {
	ctx := c.Context
	rt, err := env.runtime(ctx, withBrowser)
	if err != nil {
		return outputError(err)
	}
	defer rt.Close(context.Background())
	return fn(ctx, rt)
}

var tableFlag = &cli.BoolFlag{Name: "table", Usage: "Render as a table instead of JSON"}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *cliEnv) *cli.App {
	app := &cli.App{
		Name:    "tweetsift",
		Usage:   "Bookmark archiving and folder export for X",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(env),
			mcpCmd(env),
			statsCmd(env),
			enabledCmd(env),
			recentCmd(env),
			operationsCmd(env),
			observeCmd(env),
			checkCmd(env),
			archiveCmd(env),
			undoCmd(env),
			classifyCmd(env),
			foldersCmd(env),
			exportCmd(env),
			messageCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API, dashboard and observation feed",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "browser", Usage: "Attach a browser session for cookies, native clicks and network capture"},
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			if bind := c.String("bind"); bind != "" {
				env.cfg.HTTPBind = bind
			}
			if port := c.Int("port"); port > 0 {
				env.cfg.HTTPPort = port
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			withBrowser := c.Bool("browser") || env.cfg.BrowserControlURL != ""
			rt, err := env.runtime(ctx, withBrowser)
			if err != nil {
				return outputError(err)
			}
			defer rt.Close(context.Background())

			if rt.Session != nil {
				go func() {
					if err := rt.WatchNetwork(ctx); err != nil && ctx.Err() == nil {
						env.logger.Warn("network capture stopped", "error", err)
					}
				}()
			}

			srv := web.NewServer(rt, web.Options{Version: Version, ExportsDir: db.ExportsDir(env.baseDir)})
			if err := web.Run(ctx, srv, env.logger); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
		Action: func(c *cli.Context) error {
			if err := runMCP(c.Context, env); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show today's archive counts and the lifetime total",
		Flags: []cli.Flag{tableFlag},
		Action: func(c *cli.Context) error {
			return withRuntime(c, env, false, func(ctx context.Context, rt *ops.Runtime) error {
				out, err := ops.GetStats(ctx, rt)
				if err != nil {
					return outputError(err)
				}
				if c.Bool("table") {
					renderStats(c.App.Writer, out.Stats)
					return nil
				}
				return outputJSON(c.App.Writer, out)
			})
		},
	}
}

// enabledCmd creates the enabled command.
func enabledCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "enabled",
		Usage:     "Show or set whether archiving is enabled",
		ArgsUsage: "[on|off]",
		Action: func(c *cli.Context) error {
			return withRuntime(c, env, false, func(ctx context.Context, rt *ops.Runtime) error {
				if c.NArg() == 0 {
					out, err := ops.GetEnabled(ctx, rt)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, out)
				}
				enabled, err := parseSwitch(c.Args().First())
				if err != nil {
					return outputError(err)
				}
				out, err := ops.SetEnabled(ctx, rt, ops.SetEnabledInput{Enabled: &enabled})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, out)
			})
		},
	}
}

// recentCmd creates the recent command.
func recentCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "recent",
		Usage: "List the most recently archived posts",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum entries"},
			tableFlag,
		},
		Action: func(c *cli.Context) error {
			return withRuntime(c, env, false, func(ctx context.Context, rt *ops.Runtime) error {
				limit := c.Int("limit")
				if limit <= 0 {
					return outputError(errors.NewInvalidRequest("limit must be positive"))
				}
				entries, err := rt.Store.RecentArchives(ctx, limit)
				if err != nil {
					return outputError(err)
				}
				if c.Bool("table") {
					renderLedger(c.App.Writer, entries)
					return nil
				}
				return outputJSON(c.App.Writer, map[string]any{"items": entries})
			})
		},
	}
}

// operationsCmd creates the operations command.
func operationsCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "operations",
		Usage: "Show captured GraphQL operation ids",
		Flags: []cli.Flag{
			tableFlag,
			&cli.StringFlag{Name: "invalidate", Usage: "Mark the named operation id unusable"},
		},
		Action: func(c *cli.Context) error {
			return withRuntime(c, env, false, func(ctx context.Context, rt *ops.Runtime) error {
				if name := c.String("invalidate"); name != "" {
					if _, err := ops.ReportOperationInvalid(ctx, rt, ops.OperationInput{Operation: name}); err != nil {
						return outputError(err)
					}
				}
				out, err := ops.GetOperationStatus(ctx, rt)
				if err != nil {
					return outputError(err)
				}
				if c.Bool("table") {
					renderOperations(c.App.Writer, out)
					return nil
				}
				return outputJSON(c.App.Writer, out)
			})
		},
	}
}

// observeCmd creates the observe command.
func observeCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "observe",
		Usage:     "Record the operation id carried by a GraphQL request URL",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "body", Usage: "Raw request body"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("url is required"))
			}
			return withRuntime(c, env, false, func(ctx context.Context, rt *ops.Runtime) error {
				out, err := ops.ObserveRequest(ctx, rt, ops.ObserveInput{URL: c.Args().First(), Body: c.String("body")})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, out)
			})
		},
	}
}

// checkCmd creates the check command.
func checkCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Report whether a post has been archived",
		ArgsUsage: "<tweet_id>",
		Action: func(c *cli.Context) error {
			return withRuntime(c, env, false, func(ctx context.Context, rt *ops.Runtime) error {
				out, err := ops.CheckArchived(ctx, rt, ops.TweetInput{TweetID: c.Args().First()})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, out)
			})
		},
	}
}

// archiveCmd creates the archive command.
func archiveCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "archive",
		Usage:     "Bookmark a post and file it into today's folder",
		ArgsUsage: "<tweet_id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Required: true, Usage: "video|nano|image or 1|2|3"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Only check readiness"},
		},
		Action: func(c *cli.Context) error {
			cat, err := category.Parse(c.String("category"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			in := ops.ArchiveInput{TweetID: c.Args().First(), Category: cat}
			if c.Bool("dry-run") {
				return withRuntime(c, env, false, func(ctx context.Context, rt *ops.Runtime) error {
					out, err := ops.PrepareArchive(ctx, rt, in)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, out)
				})
			}
			return withRuntime(c, env, env.nativeNeedsBrowser(), func(ctx context.Context, rt *ops.Runtime) error {
				out, err := ops.Archive(ctx, rt, in)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, out)
			})
		},
	}
}

// undoCmd creates the undo command.
func undoCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "undo",
		Usage:     "Reverse an archive",
		ArgsUsage: "<tweet_id>",
		Action: func(c *cli.Context) error {
			return withRuntime(c, env, env.nativeNeedsBrowser(), func(ctx context.Context, rt *ops.Runtime) error {
				out, err := ops.Undo(ctx, rt, ops.TweetInput{TweetID: c.Args().First()})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, out)
			})
		},
	}
}

// classifyCmd creates the classify command.
func classifyCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "classify",
		Usage: "Suggest a category for a post (reads text from --text or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Post text"},
			&cli.BoolFlag{Name: "video", Usage: "Post carries a video"},
			&cli.BoolFlag{Name: "image", Usage: "Post carries an image"},
		},
		Action: func(c *cli.Context) error {
			text := c.String("text")
			if text == "" && stdinHasData() {
				var err error
				if text, err = readStdin(); err != nil {
					return outputError(errors.NewInternal(err))
				}
			}
			out, err := ops.Classify(c.Context, nil, ops.ClassifyInput{
				Text:     text,
				HasVideo: c.Bool("video"),
				HasImage: c.Bool("image"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, map[string]any{"suggestion": out})
		},
	}
}

// foldersCmd creates the folders command.
func foldersCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "folders",
		Usage: "List the account's bookmark folders",
		Flags: []cli.Flag{tableFlag},
		Action: func(c *cli.Context) error {
			return withRuntime(c, env, false, func(ctx context.Context, rt *ops.Runtime) error {
				out, err := ops.ListFolders(ctx, rt)
				if err != nil {
					return outputError(err)
				}
				if c.Bool("table") {
					renderFolders(c.App.Writer, out.Folders)
					return nil
				}
				return outputJSON(c.App.Writer, out)
			})
		},
	}
}

// exportCmd creates the export command. The job runs in this process and the
// command returns when it finishes; Ctrl-C cancels after the current page.
func exportCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export bookmark folders to JSON/HTML (all folders unless --folder is given)",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "folder", Aliases: []string{"f"}, Usage: "Folder to export as id or id=name (repeatable)"},
			&cli.BoolFlag{Name: "resume", Usage: "Continue each folder from its saved checkpoint"},
			tableFlag,
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withRuntime(c, env, false, func(_ context.Context, rt *ops.Runtime) error {
				folders := parseFolderArgs(c.StringSlice("folder"))
				if len(folders) == 0 {
					out, err := ops.ListFolders(c.Context, rt)
					if err != nil {
						return outputError(err)
					}
					folders = out.Folders
				}

				if _, err := ops.StartExport(c.Context, rt, ops.StartExportInput{Folders: folders, Resume: c.Bool("resume")}); err != nil {
					return outputError(err)
				}

				go func() {
					<-ctx.Done()
					rt.Exporter.Cancel()
				}()
				if err := rt.Exporter.Wait(context.Background()); err != nil {
					return outputError(errors.NewInternal(err))
				}

				job := rt.Exporter.Status()
				if c.Bool("table") {
					renderJob(c.App.Writer, job)
					return nil
				}
				return outputJSON(c.App.Writer, summarizeJob(job))
			})
		},
	}
}

// messageCmd creates the message command.
func messageCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "message",
		Usage:     "Send a raw message (payload JSON as second argument or stdin)",
		ArgsUsage: "<type> [payload]",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				types := ops.MessageTypes()
				names := make([]string, len(types))
				for i, t := range types {
					names[i] = string(t)
				}
				return outputError(errors.NewInvalidRequest("message type is required: " + strings.Join(names, ", ")))
			}

			payload := c.Args().Get(1)
			if payload == "" && stdinHasData() {
				var err error
				if payload, err = readStdin(); err != nil {
					return outputError(errors.NewInternal(err))
				}
			}

			msgType := ops.MessageType(c.Args().First())
			withBrowser := env.nativeNeedsBrowser() && (msgType == ops.MsgArchive || msgType == ops.MsgUndo)
			return withRuntime(c, env, withBrowser, func(ctx context.Context, rt *ops.Runtime) error {
				var raw json.RawMessage
				if payload != "" {
					raw = json.RawMessage(payload)
				}
				out, err := ops.Dispatch(ctx, rt, msgType, raw)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, out)
			})
		},
	}
}

// Helper functions

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if sErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// parseSwitch accepts on/off style values.
func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "no", "0", "disable", "disabled":
		return false, nil
	}
	return false, errors.NewInvalidRequest(fmt.Sprintf("expected on or off, got %q", s))
}

// parseFolderArgs turns "id" or "id=name" values into folders.
func parseFolderArgs(args []string) []gateway.Folder {
	folders := make([]gateway.Folder, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		id, name, found := strings.Cut(arg, "=")
		id = strings.TrimSpace(id)
		if !found {
			name = id
		}
		folders = append(folders, gateway.Folder{ID: id, Name: strings.TrimSpace(name)})
	}
	return folders
}

// jobSummary is the export job without post bodies.
type jobSummary struct {
	ID          string          `json:"id"`
	Cancelled   bool            `json:"cancelled"`
	Error       string          `json:"error,omitempty"`
	Tweets      int             `json:"tweets"`
	Folders     []folderSummary `json:"folders"`
	OutputPaths []string        `json:"output_paths,omitempty"`
}

type folderSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Pages   int    `json:"pages"`
	Tweets  int    `json:"tweets"`
	Error   string `json:"error,omitempty"`
}

func summarizeJob(job *export.Job) *jobSummary {
	if job == nil {
		return nil
	}
	s := &jobSummary{
		ID:          job.ID,
		Cancelled:   job.Cancelled,
		Error:       job.Error,
		Tweets:      job.TweetCount(),
		Folders:     make([]folderSummary, 0, len(job.Results)),
		OutputPaths: job.OutputPaths,
	}
	for _, r := range job.Results {
		s.Folders = append(s.Folders, folderSummary{
			ID:      r.FolderID,
			Name:    r.FolderName,
			Success: r.Success,
			Pages:   r.Pages,
			Tweets:  len(r.Tweets),
			Error:   r.Error,
		})
	}
	return s
}

// Table renderers

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func renderStats(w io.Writer, s state.Stats) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Date", "Video", "Nano", "Image", "Total"})
	t.AppendRow(table.Row{s.Date, s.Today.Video, s.Today.Nano, s.Today.Image, s.Total})
	t.Render()
}

func renderLedger(w io.Writer, entries []state.LedgerEntry) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Post", "Category", "Folder", "Saved"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.TweetID, e.Category, e.FolderID, e.SavedAt.Local().Format("2006-01-02 15:04")})
	}
	t.Render()
}

func renderOperations(w io.Writer, out *ops.OperationStatusOutput) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Operation", "Id"})
	for _, name := range opcache.RequiredOperations {
		id := "-"
		if v := out.Operations[name]; v != nil {
			id = *v
		}
		t.AppendRow(table.Row{name, id})
	}
	t.Render()
}

func renderFolders(w io.Writer, folders []gateway.Folder) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Id", "Name"})
	for _, f := range folders {
		t.AppendRow(table.Row{f.ID, f.Name})
	}
	t.Render()
}

func renderJob(w io.Writer, job *export.Job) {
	if job == nil {
		fmt.Fprintln(w, "no export job")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Folder", "Pages", "Posts", "Result"})
	for _, r := range job.Results {
		result := "ok"
		if !r.Success {
			result = r.Error
		}
		t.AppendRow(table.Row{r.FolderName, r.Pages, len(r.Tweets), result})
	}
	t.AppendFooter(table.Row{"Total", "", job.TweetCount(), strings.Join(job.OutputPaths, " ")})
	t.Render()
}
