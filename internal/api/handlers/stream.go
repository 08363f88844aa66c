package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/surveyprogress/internal/contracts"
	"github.com/wonny/surveyprogress/internal/facade"
	"github.com/wonny/surveyprogress/pkg/logger"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	// minRefresh lower bound of a subscription's refresh interval
	minRefresh = time.Second
)

// StreamRequest client message: one estimate, or a subscription when
// refresh_seconds > 0
type StreamRequest struct {
	Request        contracts.Request `json:"request"`
	RefreshSeconds float64           `json:"refresh_seconds,omitempty"`
}

// StreamMessage server message
type StreamMessage struct {
	Type   string                     `json:"type"` // estimate, error
	Result *contracts.CompositeResult `json:"result,omitempty"`
	Error  string                     `json:"error,omitempty"`
}

// StreamHandler real-time estimates over a websocket. Every estimate
// bypasses the cache; a subscription re-runs on its interval until replaced
// or the connection closes.
type StreamHandler struct {
	facade   *facade.Facade
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(f *facade.Facade, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		facade: f,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: log,
	}
}

// Serve upgrades the connection and runs the session
// GET /ws/estimate
func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	h.logger.WithField("remote", r.RemoteAddr).Info("Estimate stream opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	requests := make(chan StreamRequest)
	go h.readLoop(ctx, cancel, conn, requests)

	h.writeLoop(ctx, conn, requests)
	h.logger.WithField("remote", r.RemoteAddr).Info("Estimate stream closed")
}

// readLoop decodes client messages until the connection fails
func (h *StreamHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out chan<- StreamRequest) {
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg StreamRequest
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zl := h.logger.WithError(err).Zerolog()
				zl.Debug().Msg("Estimate stream read ended")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// writeLoop is the connection's only writer
func (h *StreamHandler) writeLoop(ctx context.Context, conn *websocket.Conn, requests <-chan StreamRequest) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	var (
		active  *contracts.Request
		refresh *time.Ticker
		tick    <-chan time.Time
	)
	stopRefresh := func() {
		if refresh != nil {
			refresh.Stop()
			refresh, tick = nil, nil
		}
	}
	defer stopRefresh()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-requests:
			stopRefresh()
			req := msg.Request
			active = &req
			if msg.RefreshSeconds > 0 {
				interval := time.Duration(msg.RefreshSeconds * float64(time.Second))
				if interval < minRefresh {
					interval = minRefresh
				}
				refresh = time.NewTicker(interval)
				tick = refresh.C
			}
			if err := h.push(ctx, conn, *active); err != nil {
				return
			}

		case <-tick:
			if active == nil {
				continue
			}
			if err := h.push(ctx, conn, *active); err != nil {
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				h.logger.WithError(err).Warn("Failed to send ping")
				return
			}
		}
	}
}

// push runs one real-time estimate and writes the outcome; only write
// failures are returned
func (h *StreamHandler) push(ctx context.Context, conn *websocket.Conn, req contracts.Request) error {
	msg := StreamMessage{Type: "estimate"}

	result, err := h.facade.RealTime(ctx, req)
	if err != nil {
		msg = StreamMessage{Type: "error", Error: err.Error()}
	} else {
		msg.Result = result
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.WithError(err).Warn("Failed to write estimate")
		return err
	}
	return nil
}
