package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
	"SigPulse/internal/service/hub"
	xlogger "SigPulse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait  = 10 * time.Second
	wsReadLimit  = 4096
	wsPongWindow = 2 // read deadline, in heartbeat intervals
)

// clientFrame is one client→server message. Unknown types are ignored.
type clientFrame struct {
	Type       string   `json:"type"`
	Categories []string `json:"categories,omitempty"`
}

// WebSocketHandler upgrades /ws requests and bridges each socket into the
// hub behind the Sink interface.
type WebSocketHandler struct {
	hub       *hub.Hub
	logger    *xlogger.Logger
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

func NewWebSocketHandler(h *hub.Hub, heartbeat time.Duration, logger *xlogger.Logger) *WebSocketHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &WebSocketHandler{
		hub:       h,
		logger:    logger,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// wsSink adapts a gorilla connection to the hub's Sink. The mutex covers
// the hub writer goroutine racing the sweep's Ping.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(v)
}

func (s *wsSink) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

func (s *wsSink) Close() error {
	return s.conn.Close()
}

// Serve upgrades the request and blocks on the read loop until the client
// goes away.
func (h *WebSocketHandler) Serve(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return err
	}

	conn := h.hub.Register(&wsSink{conn: ws})
	defer h.hub.Unregister(conn.ID)

	readWindow := time.Duration(wsPongWindow) * h.heartbeat
	ws.SetReadLimit(wsReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(readWindow))
	ws.SetPongHandler(func(string) error {
		conn.MarkAlive()
		return ws.SetReadDeadline(time.Now().Add(readWindow))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", xlogger.String("conn_id", conn.ID), xlogger.Error(err))
			}
			return nil
		}
		conn.MarkAlive()
		_ = ws.SetReadDeadline(time.Now().Add(readWindow))
		h.dispatch(conn, data)
	}
}

// dispatch handles one client frame. Anything unparseable or of unknown
// type is dropped without closing the connection.
func (h *WebSocketHandler) dispatch(conn *hub.Conn, data []byte) {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	switch frame.Type {
	case "ping":
		conn.Send(&hub.Message{Type: "pong"})
	case "subscribe":
		if cats := normalizeCategories(frame.Categories); len(cats) > 0 {
			conn.Subscribe(cats...)
		}
	case "unsubscribe":
		if cats := normalizeCategories(frame.Categories); len(cats) > 0 {
			conn.Unsubscribe(cats...)
		}
	}
}

func normalizeCategories(raw []string) []models.Category {
	out := make([]models.Category, 0, len(raw))
	for _, r := range raw {
		if cat := drepo.NormalizeCategory(r); cat != "" {
			out = append(out, cat)
		}
	}
	return out
}
