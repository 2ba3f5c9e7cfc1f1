package main

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/PlayerYK/TweetSift/internal/category"
	"github.com/PlayerYK/TweetSift/internal/config"
	"github.com/PlayerYK/TweetSift/internal/db"
	"github.com/PlayerYK/TweetSift/internal/errors"
	"github.com/PlayerYK/TweetSift/internal/gateway"
	"github.com/PlayerYK/TweetSift/internal/logging"
	"github.com/PlayerYK/TweetSift/internal/ops"
)

// setupTestEnv creates a CLI environment over a temporary database.
// The remote endpoint is unreachable so no command touches the network.
func setupTestEnv(t *testing.T) *cliEnv {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.NativeMode = config.NativeModeAPI
	cfg.GraphQLBaseURL = "http://127.0.0.1:1/graphql"

	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.Local)
	return &cliEnv{
		db:      database,
		cfg:     cfg,
		logger:  logging.Discard(),
		baseDir: tmpDir,
		clock:   func() time.Time { return now },
	}
}

// runCLI runs args against a fresh app and returns what it printed.
func runCLI(t *testing.T, env *cliEnv, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newCLIApp(env)
	app.Writer = &buf
	app.ErrWriter = &buf
	err := app.Run(append([]string{"tweetsift"}, args...))
	return buf.String(), err
}

func decodeOutput[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	return v
}

func TestParseSwitch(t *testing.T) {
	tests := []struct {
		input   string
		want    bool
		wantErr bool
	}{
		{"on", true, false},
		{"ON", true, false},
		{"true", true, false},
		{"1", true, false},
		{"off", false, false},
		{" disabled ", false, false},
		{"0", false, false},
		{"maybe", false, true},
		{"", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSwitch(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSwitch(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseSwitch(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFolderArgs(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []gateway.Folder
	}{
		{
			name:  "empty",
			input: nil,
			want:  []gateway.Folder{},
		},
		{
			name:  "id only uses id as name",
			input: []string{"123"},
			want:  []gateway.Folder{{ID: "123", Name: "123"}},
		},
		{
			name:  "id and name",
			input: []string{"123=260210-Video", " 456 = Reading "},
			want: []gateway.Folder{
				{ID: "123", Name: "260210-Video"},
				{ID: "456", Name: "Reading"},
			},
		},
		{
			name:  "blank entries skipped",
			input: []string{"", "  ", "9"},
			want:  []gateway.Folder{{ID: "9", Name: "9"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFolderArgs(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseFolderArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCLIStats(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "stats")
	require.NoError(t, err)

	stats := decodeOutput[ops.StatsOutput](t, out)
	if stats.Stats.Date != "2026-02-10" {
		t.Errorf("Date = %q, want 2026-02-10", stats.Stats.Date)
	}
	if stats.Stats.Total != 0 {
		t.Errorf("Total = %d, want 0", stats.Stats.Total)
	}

	t.Run("table", func(t *testing.T) {
		out, err := runCLI(t, env, "stats", "--table")
		require.NoError(t, err)
		require.Contains(t, out, "VIDEO")
		require.Contains(t, out, "2026-02-10")
	})
}

func TestCLIEnabled(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "enabled")
	require.NoError(t, err)
	if !decodeOutput[ops.EnabledOutput](t, out).Enabled {
		t.Error("expected archiving enabled by default")
	}

	out, err = runCLI(t, env, "enabled", "off")
	require.NoError(t, err)
	if decodeOutput[ops.EnabledOutput](t, out).Enabled {
		t.Error("expected enabled=false after off")
	}

	out, err = runCLI(t, env, "enabled", "on")
	require.NoError(t, err)
	if !decodeOutput[ops.EnabledOutput](t, out).Enabled {
		t.Error("expected enabled=true after on")
	}

	_, err = runCLI(t, env, "enabled", "sometimes")
	require.Error(t, err)
	require.Contains(t, err.Error(), "INVALID_REQUEST")
}

func TestCLIObserveAndOperations(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "observe", "https://x.com/i/api/graphql/abc123/CreateBookmark")
	require.NoError(t, err)
	if !decodeOutput[ops.ObserveOutput](t, out).Changed {
		t.Error("expected first observation to change the cache")
	}

	out, err = runCLI(t, env, "operations")
	require.NoError(t, err)
	status := decodeOutput[ops.OperationStatusOutput](t, out)
	id := status.Operations["CreateBookmark"]
	if id == nil || *id != "abc123" {
		t.Errorf("CreateBookmark = %v, want abc123", id)
	}
	for _, name := range status.Missing {
		if name == "CreateBookmark" {
			t.Error("CreateBookmark listed as missing")
		}
	}

	t.Run("table", func(t *testing.T) {
		out, err := runCLI(t, env, "operations", "--table")
		require.NoError(t, err)
		require.Contains(t, out, "abc123")
	})

	t.Run("invalidate", func(t *testing.T) {
		out, err := runCLI(t, env, "operations", "--invalidate", "CreateBookmark")
		require.NoError(t, err)
		status := decodeOutput[ops.OperationStatusOutput](t, out)
		if status.Operations["CreateBookmark"] != nil {
			t.Errorf("CreateBookmark = %v, want nil after invalidation", *status.Operations["CreateBookmark"])
		}
	})

	t.Run("non graphql url", func(t *testing.T) {
		_, err := runCLI(t, env, "observe", "https://x.com/home")
		require.Error(t, err)
	})

	t.Run("missing url", func(t *testing.T) {
		_, err := runCLI(t, env, "observe")
		require.Error(t, err)
		require.Contains(t, err.Error(), "url is required")
	})
}

func TestCLICheck(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "check", "111")
	require.NoError(t, err)
	got := decodeOutput[ops.ArchivedOutput](t, out)
	if got.TweetID != "111" || got.Archived {
		t.Errorf("check = %+v, want tweet 111 not archived", got)
	}

	_, err = runCLI(t, env, "check")
	require.Error(t, err)
	require.Contains(t, err.Error(), "INVALID_REQUEST")
}

func TestCLIArchive_Errors(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("unknown category", func(t *testing.T) {
		_, err := runCLI(t, env, "archive", "111", "--category", "audio")
		require.Error(t, err)
		require.Contains(t, err.Error(), "INVALID_REQUEST")
	})

	t.Run("missing capability", func(t *testing.T) {
		_, err := runCLI(t, env, "archive", "111", "--category", "video")
		require.Error(t, err)
		require.Contains(t, err.Error(), "MISSING_CAPABILITY")
	})

	t.Run("disabled", func(t *testing.T) {
		_, err := runCLI(t, env, "enabled", "off")
		require.NoError(t, err)
		t.Cleanup(func() { _, _ = runCLI(t, env, "enabled", "on") })

		_, err = runCLI(t, env, "archive", "111", "--category", "1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "DISABLED")
	})
}

func TestCLIUndo_NotArchived(t *testing.T) {
	env := setupTestEnv(t)

	_, err := runCLI(t, env, "undo", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "INVALID_REQUEST")
}

func TestCLIClassify(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "classify", "--text", "made with veo 3", "--video")
	require.NoError(t, err)

	got := decodeOutput[struct {
		Suggestion *struct {
			Category category.Category `json:"category"`
			Model    string            `json:"model"`
		} `json:"suggestion"`
	}](t, out)
	require.NotNil(t, got.Suggestion)
	if got.Suggestion.Category != category.Video {
		t.Errorf("Category = %v, want Video", got.Suggestion.Category)
	}
}

func TestCLIRecent(t *testing.T) {
	env := setupTestEnv(t)

	_, err := runCLI(t, env, "message", "report-archive-success",
		`{"tweet_id":"111","category":2,"folder_id":"f-1"}`)
	require.NoError(t, err)

	out, err := runCLI(t, env, "recent")
	require.NoError(t, err)
	got := decodeOutput[struct {
		Items []struct {
			TweetID  string `json:"tweet_id"`
			FolderID string `json:"folder_id"`
		} `json:"items"`
	}](t, out)
	require.Len(t, got.Items, 1)
	if got.Items[0].TweetID != "111" || got.Items[0].FolderID != "f-1" {
		t.Errorf("items[0] = %+v", got.Items[0])
	}

	out, err = runCLI(t, env, "recent", "--table")
	require.NoError(t, err)
	require.Contains(t, out, "f-1")

	_, err = runCLI(t, env, "recent", "--limit", "0")
	require.Error(t, err)
}

func TestCLIMessage(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("no payload", func(t *testing.T) {
		out, err := runCLI(t, env, "message", "get-stats")
		require.NoError(t, err)
		require.Contains(t, out, `"stats"`)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := runCLI(t, env, "message", "bogus")
		require.Error(t, err)
		require.Contains(t, err.Error(), "INVALID_REQUEST")
	})

	t.Run("missing type lists known types", func(t *testing.T) {
		_, err := runCLI(t, env, "message")
		require.Error(t, err)
		require.Contains(t, err.Error(), "get-stats")
	})

	t.Run("invalid payload", func(t *testing.T) {
		_, err := runCLI(t, env, "message", "check-if-archived", `{"tweet_id":`)
		require.Error(t, err)
	})
}

func TestCLIExport_FolderFailureIsReported(t *testing.T) {
	env := setupTestEnv(t)

	// No BookmarkFolderTimeline id is captured, so the folder fails but the
	// job itself completes and writes its output file.
	out, err := runCLI(t, env, "export", "--folder", "f-1=Reading")
	require.NoError(t, err)

	job := decodeOutput[jobSummary](t, out)
	require.Len(t, job.Folders, 1)
	if job.Folders[0].Name != "Reading" {
		t.Errorf("Name = %q, want Reading", job.Folders[0].Name)
	}
	if job.Folders[0].Success || job.Folders[0].Error == "" {
		t.Errorf("folder = %+v, want a failed result with an error", job.Folders[0])
	}
	require.Len(t, job.OutputPaths, 1)
	require.FileExists(t, job.OutputPaths[0])
}

func TestOutputError(t *testing.T) {
	err := outputError(os.ErrNotExist)
	require.Equal(t, os.ErrNotExist.Error(), err.Error())

	err = outputError(errors.NewDisabled())
	require.True(t, strings.HasPrefix(err.Error(), "[DISABLED] "))
}

func TestNewCLIApp_NilEnvHelp(t *testing.T) {
	var buf bytes.Buffer
	app := newCLIApp(nil)
	app.Writer = &buf
	require.NoError(t, app.Run([]string{"tweetsift", "--help"}))
	require.Contains(t, buf.String(), "export")
}

func TestRuntime_NilEnv(t *testing.T) {
	var env *cliEnv
	_, err := env.runtime(t.Context(), false)
	require.Error(t, err)
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"tweetsift"}, false},
		{"serve command", []string{"tweetsift", "serve"}, true},
		{"archive command", []string{"tweetsift", "archive"}, true},
		{"help flag", []string{"tweetsift", "--help"}, true},
		{"short version flag", []string{"tweetsift", "-v"}, true},
		{"unknown arg defaults to MCP", []string{"tweetsift", "--unknown"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if got := isCLIMode(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"tweetsift"}, false},
		{"help command", []string{"tweetsift", "help"}, true},
		{"version flag", []string{"tweetsift", "--version"}, true},
		{"stats command", []string{"tweetsift", "stats"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if got := isHelpOrVersion(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
