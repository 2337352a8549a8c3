package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"poolconnect/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000

	msgDirectory = "directory"
)

type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// directoryView is the Directory API payload shared by REST and WebSocket.
type directoryView struct {
	Active int                  `json:"active"`
	Timers []models.TimerStatus `json:"timers"`
}

func directoryPayload(rows []models.TimerStatus) directoryView {
	active := 0
	for _, r := range rows {
		if r.Context.State == models.StateRunning {
			active++
		}
	}
	return directoryView{Active: active, Timers: rows}
}

var upgrader = websocket.Upgrader{
	// The dashboard is served from the controller itself or a LAN host.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// directoryStream pushes directory snapshots to one websocket client.
type directoryStream struct {
	h        *Handler
	conn     *websocket.Conn
	interval time.Duration
	closed   chan struct{}
}

// @Summary      Directory stream
// @Description  WebSocket pushing {"type":"directory"} envelopes every interval (?interval=2s or ?interval_ms=500, max 10s).
// @Tags         directory
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.wsLog("ws_upgrade_failed", err)
		return
	}
	s := &directoryStream{h: h, conn: conn, interval: interval, closed: make(chan struct{})}
	defer func() { _ = conn.Close() }()

	go s.drain()
	s.serve(c.Request.Context())
}

// drain reads client frames so pongs are processed; it closes s.closed on disconnect.
func (s *directoryStream) drain() {
	defer close(s.closed)
	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.h.wsLog("ws_read_closed", err)
			return
		}
	}
}

func (s *directoryStream) serve(ctx context.Context) {
	push := time.NewTicker(s.interval)
	defer push.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.push(ctx); err != nil {
		s.h.wsLog("ws_initial_push_failed", err)
		return
	}
	for {
		select {
		case <-s.closed:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.h.wsLog("ws_ping_failed", err)
				return
			}
		case <-push.C:
			if err := s.push(ctx); err != nil {
				s.h.wsLog("ws_push_failed", err)
				return
			}
		}
	}
}

func (s *directoryStream) push(ctx context.Context) error {
	rows, err := s.h.services.Directory.List(ctx)
	if err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(wsEnvelope{Type: msgDirectory, Data: directoryPayload(rows)})
}

func (h *Handler) wsLog(key string, err error) {
	if h.log != nil {
		h.log.Infow(key, "err", err)
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000, capped at 10s.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}
