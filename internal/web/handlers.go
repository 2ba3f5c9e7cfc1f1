package web

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/PlayerYK/TweetSift/internal/errors"
	"github.com/PlayerYK/TweetSift/internal/opcache"
	"github.com/PlayerYK/TweetSift/internal/ops"
)

// recentLimit is how many ledger entries the dashboard shows.
const recentLimit = 20

// exportFileRE matches the files the exporter writes: <ULID>.json or <ULID>.html.
var exportFileRE = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{26}\.(json|html)$`)

// Handlers contains HTTP route handlers.
type Handlers struct {
	rt         *ops.Runtime
	logger     *slog.Logger
	renderer   *Renderer
	exportsDir string
}

// NewHandlers creates a Handlers instance with parsed templates.
func NewHandlers(rt *ops.Runtime, opts Options) *Handlers {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic("template sub-FS: " + err.Error())
	}
	logger := rt.Logger.With("component", "web")
	return &Handlers{
		rt:         rt,
		logger:     logger,
		renderer:   NewRenderer(templateSub, opts.Version, logger),
		exportsDir: opts.ExportsDir,
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]any{"ok": true, "version": h.renderer.version})
}

// HandleDashboard handles GET /: stats, operation ids, export job and recent archives.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	enabled, err := ops.GetEnabled(ctx, h.rt)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	stats, err := ops.GetStats(ctx, h.rt)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	status, err := ops.GetOperationStatus(ctx, h.rt)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	recent, err := h.rt.Store.RecentArchives(ctx, recentLimit)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	rows := make([]OperationRow, 0, len(opcache.RequiredOperations))
	for _, name := range opcache.RequiredOperations {
		rows = append(rows, OperationRow{Name: name, ID: status.Operations[name]})
	}

	h.renderer.renderPage(w, "dashboard", DashboardPageData{
		PageData:   PageData{Title: "Dashboard", Version: h.renderer.version},
		Enabled:    enabled.Enabled,
		Stats:      stats.Stats,
		Operations: rows,
		Missing:    len(status.Missing),
		Job:        h.rt.Exporter.Status(),
		Recent:     recent,
	})
}

// HandleMessageTypes handles GET /api/messages: the supported message types.
func (h *Handlers) HandleMessageTypes(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]any{"types": ops.MessageTypes()})
}

// HandleMessage handles POST /api/messages/{type} with the payload as body.
func (h *Handlers) HandleMessage(w http.ResponseWriter, r *http.Request) {
	payload, err := readPayload(w, r)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	h.dispatch(w, r, ops.MessageType(chi.URLParam(r, "type")), payload)
}

// HandleEnvelope handles POST /api/messages with a {"type", "payload"} body.
func (h *Handlers) HandleEnvelope(w http.ResponseWriter, r *http.Request) {
	var msg ops.Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&msg); err != nil {
		writeAPIError(w, errors.NewInvalidRequest("invalid message envelope: "+err.Error()))
		return
	}
	if msg.Type == "" {
		writeAPIError(w, errors.NewInvalidRequest("type is required"))
		return
	}
	h.dispatch(w, r, msg.Type, msg.Payload)
}

func (h *Handlers) dispatch(w http.ResponseWriter, r *http.Request, msgType ops.MessageType, payload json.RawMessage) {
	result, err := ops.Dispatch(r.Context(), h.rt, msgType, payload)
	if err != nil {
		if status, _ := errors.Envelope(err); status >= 500 {
			h.logger.Warn("message failed", "type", msgType, "error", err)
		}
		writeAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleExportStatus handles GET /api/export/status.
func (h *Handlers) HandleExportStatus(w http.ResponseWriter, r *http.Request) {
	out, err := ops.GetExportStatus(r.Context(), h.rt)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleExportFile handles GET /exports/{file}, downloading a finished export.
func (h *Handlers) HandleExportFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if h.exportsDir == "" || !exportFileRE.MatchString(name) {
		h.renderer.renderError(w, r, errors.NewNotFound("export file"))
		return
	}
	if filepath.Ext(name) == ".json" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	}
	http.ServeFile(w, r, filepath.Join(h.exportsDir, name))
}

// readPayload reads a bounded request body. An empty body is a nil payload.
func readPayload(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	var payload json.RawMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.NewInvalidRequest("invalid JSON body: " + err.Error())
	}
	return payload, nil
}
