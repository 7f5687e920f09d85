package handlers

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"skyview/internal/types"
	"skyview/internal/view"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10

	// Clients never send data frames; anything larger is a protocol misuse.
	streamReadLimit = 512
)

// streamMessage wraps each pushed view the same way REST responses do.
type streamMessage struct {
	Data view.ViewModel `json:"data"`
}

// HandleStream handles GET /v1/stream. It upgrades to a WebSocket and pushes
// the caller's view model once on connect and again after every state change,
// so loading flags, weather and background arrive as they happen.
func (h *WidgetHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	clientID, _ := types.GetClientID(r.Context())

	// Cookie and client ID headers set by the identity middleware travel on
	// the 101 response.
	conn, err := h.upgrader.Upgrade(w, r, w.Header())
	if err != nil {
		h.logger.WarnContext(r.Context(), "stream upgrade failed", "client_id", clientID, "error", err)
		return
	}
	defer conn.Close()

	current, changes, stop := h.service.WatchView(r.Context(), clientID)
	defer stop()

	closed := make(chan struct{})
	go drainStream(conn, closed)

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	if err := writeStreamView(conn, current()); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(streamWriteWait))
			return
		case <-changes:
			if err := writeStreamView(conn, current()); err != nil {
				h.logger.DebugContext(r.Context(), "stream write failed", "client_id", clientID, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeStreamView(conn *websocket.Conn, vm view.ViewModel) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(streamMessage{Data: vm})
}

// drainStream reads until the peer goes away, answering pongs, and closes
// closed when it does.
func drainStream(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// originChecker accepts requests without an Origin header, same-host
// origins, and the listed ones. "*" accepts everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
