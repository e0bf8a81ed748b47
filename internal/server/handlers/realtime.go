package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/status"
)

const (
	realtimeWriteTimeout = 10 * time.Second
	realtimePingInterval = 30 * time.Second
	realtimeSendBuffer   = 64
)

// RealtimeMessage is the envelope pushed over the status stream.
type RealtimeMessage struct {
	Type    string             `json:"type"`
	Status  *status.TaskStatus `json:"status,omitempty"`
	Message string             `json:"message,omitempty"`
}

// RealtimeHandler streams task status changes over WebSocket.
type RealtimeHandler struct {
	status *status.Store
}

// NewRealtimeHandler creates a new realtime handler.
func NewRealtimeHandler(statusStore *status.Store) *RealtimeHandler {
	return &RealtimeHandler{status: statusStore}
}

// HandleWebSocket upgrades the connection and pushes every task status
// change until the client disconnects.
func (h *RealtimeHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to accept WebSocket connection")
		return
	}

	clientID := uuid.New().String()
	sendCh := make(chan []byte, realtimeSendBuffer)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	unsubscribe := h.status.Subscribe(status.Wildcard, func(snapshot status.TaskStatus) {
		data, err := json.Marshal(&RealtimeMessage{Type: "status", Status: &snapshot})
		if err != nil {
			return
		}
		select {
		case sendCh <- data:
		default:
			// Slow consumer; drop rather than block the scheduler.
			log.Warn().Str("client_id", clientID).Msg("Realtime send buffer full, dropping update")
		}
	})
	defer unsubscribe()

	log.Debug().Str("client_id", clientID).Msg("Realtime client connected")

	hello, _ := json.Marshal(&RealtimeMessage{Type: "connected", Message: clientID})
	if err := writeWithTimeout(ctx, conn, hello); err != nil {
		conn.Close(websocket.StatusInternalError, "write failed")
		return
	}

	go h.writePump(ctx, conn, sendCh, cancel)

	// The read loop exists to observe close frames and pings; clients
	// never send application data.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	cancel()
	conn.Close(websocket.StatusNormalClosure, "closing")
	log.Debug().Str("client_id", clientID).Msg("Realtime client disconnected")
}

func (h *RealtimeHandler) writePump(ctx context.Context, conn *websocket.Conn, sendCh <-chan []byte, cancel context.CancelFunc) {
	ticker := time.NewTicker(realtimePingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-sendCh:
			if err := writeWithTimeout(ctx, conn, data); err != nil {
				cancel()
				return
			}
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, realtimeWriteTimeout)
			err := conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				cancel()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeWithTimeout(ctx context.Context, conn *websocket.Conn, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, realtimeWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
