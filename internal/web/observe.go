package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PlayerYK/TweetSift/internal/errors"
	"github.com/PlayerYK/TweetSift/internal/ops"
)

const (
	observeReadTimeout = 60 * time.Second
	observePingEvery   = 45 * time.Second
	observeWriteWait   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin:     allowedOrigin,
}

// allowedOrigin accepts browser extensions, local pages and non-browser clients.
func allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "chrome-extension", "moz-extension":
		return true
	case "http", "https":
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1" || host == "::1"
	}
	return false
}

// observeReply answers one observed request on the feed.
type observeReply struct {
	URL     string         `json:"url"`
	Changed bool           `json:"changed"`
	Error   map[string]any `json:"error,omitempty"`
}

// HandleObserve handles GET /observe, a websocket feed of GraphQL requests
// seen by a collector. Each text message is an observe-request payload and
// gets one reply.
func (h *Handlers) HandleObserve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug("observe upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	conn.SetReadLimit(maxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(observeReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(observeReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go h.pingLoop(conn, done)

	h.logger.Info("observer connected", "remote", r.RemoteAddr)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("observer read failed", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(observeReadTimeout))

		if err := h.write(conn, h.observe(ctx, data)); err != nil {
			return
		}
	}
}

// observe handles one feed message.
func (h *Handlers) observe(ctx context.Context, data []byte) observeReply {
	var in ops.ObserveInput
	if err := json.Unmarshal(data, &in); err != nil {
		return observeReply{Error: errorObject(errors.NewInvalidRequest("invalid message: " + err.Error()))}
	}
	out, err := ops.ObserveRequest(ctx, h.rt, in)
	if err != nil {
		return observeReply{URL: in.URL, Error: errorObject(err)}
	}
	return observeReply{URL: in.URL, Changed: out.Changed}
}

func errorObject(err error) map[string]any {
	_, payload := errors.Envelope(err)
	return payload["error"].(map[string]any)
}

func (h *Handlers) write(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(observeWriteWait))
	return conn.WriteJSON(v)
}

func (h *Handlers) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(observePingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(observeWriteWait)); err != nil {
				return
			}
		}
	}
}
