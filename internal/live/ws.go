package live

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
)

// Hub serves the feed over websocket. Each message is one ProbeResult as
// JSON, in commit order.
type Hub struct {
	feed     *Feed
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewHub accepts same-host origins and any origin listed in allowed ("*"
// allows all).
func NewHub(feed *Feed, allowed []string, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{feed: feed, log: log}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowed)}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := map[string]bool{}
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimSpace(o))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[strings.ToLower(origin)] {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(r.Host), strings.TrimSpace(u.Host))
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws_upgrade_failed", zap.Error(err))
		return
	}
	h.serve(conn)
}

func (h *Hub) serve(conn *websocket.Conn) {
	defer conn.Close()

	ch, cancel := h.feed.Subscribe()
	defer cancel()
	h.log.Debug("ws_connected", zap.String("remote", conn.RemoteAddr().String()))

	if latest, ok := h.feed.Latest(); ok {
		if err := write(conn, latest); err != nil {
			return
		}
	}

	// reader: handles pong/close frames and notices a gone client
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return
			}
			if err := write(conn, r); err != nil {
				h.log.Debug("ws_write_failed", zap.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func write(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}
