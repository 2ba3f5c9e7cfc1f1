package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/PlayerYK/TweetSift/internal/config"
	"github.com/PlayerYK/TweetSift/internal/db"
	"github.com/PlayerYK/TweetSift/internal/logging"
	"github.com/PlayerYK/TweetSift/internal/ops"
)

func setupTest(t *testing.T) (*Handlers, *httptest.Server) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.NativeMode = config.NativeModeAPI
	rt := ops.NewRuntime(database, cfg, logging.Discard(), ops.RuntimeOptions{BaseDir: tmpDir})
	t.Cleanup(func() { rt.Close(context.Background()) })

	h := NewHandlers(rt, Options{Version: "test", ExportsDir: db.ExportsDir(tmpDir)})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return h, srv
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func errorCode(out map[string]any) string {
	obj, _ := out["error"].(map[string]any)
	code, _ := obj["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	_, srv := setupTest(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestDashboard(t *testing.T) {
	_, srv := setupTest(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	require.Contains(t, string(body), "Dashboard")
	require.Contains(t, string(body), "CreateBookmark")
	require.Contains(t, string(body), "not captured")
	require.Contains(t, string(body), "No export job.")
}

func TestMessage_ByPath(t *testing.T) {
	_, srv := setupTest(t)

	resp, out := post(t, srv.URL+"/api/messages/get-stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := out["stats"].(map[string]any)
	require.Equal(t, float64(0), stats["total"])
}

func TestMessage_UnknownType(t *testing.T) {
	_, srv := setupTest(t)

	resp, out := post(t, srv.URL+"/api/messages/bogus", "{}")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_REQUEST", errorCode(out))
}

func TestMessage_InvalidBody(t *testing.T) {
	_, srv := setupTest(t)

	resp, out := post(t, srv.URL+"/api/messages/check-if-archived", "{not json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_REQUEST", errorCode(out))
}

func TestMessage_ErrorStatusFollowsCode(t *testing.T) {
	_, srv := setupTest(t)

	resp, out := post(t, srv.URL+"/api/messages/archive", `{"tweet_id":"1","category":1}`)
	require.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	require.Equal(t, "MISSING_CAPABILITY", errorCode(out))
}

func TestEnvelope(t *testing.T) {
	_, srv := setupTest(t)

	resp, out := post(t, srv.URL+"/api/messages", `{"type":"set-enabled","payload":{"enabled":false}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, out["enabled"])

	resp, out = post(t, srv.URL+"/api/messages", `{"type":"get-enabled"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, out["enabled"])

	resp, out = post(t, srv.URL+"/api/messages", `{"payload":{}}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_REQUEST", errorCode(out))
}

func TestMessageTypes(t *testing.T) {
	_, srv := setupTest(t)

	resp, err := http.Get(srv.URL + "/api/messages")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Types []string `json:"types"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Contains(t, out.Types, "check-if-archived")
	require.Contains(t, out.Types, "start-export")
}

func TestExportStatus_Empty(t *testing.T) {
	_, srv := setupTest(t)

	resp, err := http.Get(srv.URL + "/api/export/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Contains(t, out, "job")
	require.Nil(t, out["job"])
}

func TestExportFile(t *testing.T) {
	h, srv := setupTest(t)

	name := "01J0000000000000000000000A.json"
	require.NoError(t, os.WriteFile(filepath.Join(h.exportsDir, name), []byte(`{"ok":true}`), 0600))

	resp, err := http.Get(srv.URL + "/exports/" + name)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"ok":true}`, string(body))
	require.Contains(t, resp.Header.Get("Content-Disposition"), name)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/exports/config.json", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestObserveFeed(t *testing.T) {
	h, srv := setupTest(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/observe"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"url": "https://x.com/i/api/graphql/qid1/BookmarkFoldersSlice?variables=%7B%7D",
	}))
	var reply observeReply
	require.NoError(t, conn.ReadJSON(&reply))
	require.Nil(t, reply.Error)
	require.True(t, reply.Changed)

	id, err := h.rt.Operations.OperationID(context.Background(), "BookmarkFoldersSlice")
	require.NoError(t, err)
	require.Equal(t, "qid1", id)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	reply = observeReply{}
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, "INVALID_REQUEST", reply.Error["code"])

	require.NoError(t, conn.WriteJSON(map[string]any{"url": "https://x.com/home"}))
	reply = observeReply{}
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, "INVALID_REQUEST", reply.Error["code"])
}

func TestAllowedOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"chrome-extension://abcdef", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1", true},
		{"https://x.com", false},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/observe", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			require.Equal(t, tt.want, allowedOrigin(r))
		})
	}
}
