package conversation

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/averylane/ar-companion/backend/internal/model/turn"
	"github.com/averylane/ar-companion/backend/internal/tempaudio"
)

const (
	readDeadline = 60 * time.Second
	pingInterval = 54 * time.Second
)

// WebSocketHandler drives the turn pipeline repeatedly over one persistent
// connection. Each inbound frame is a complete utterance: a text frame is
// typed input, a binary frame is raw audio.
type WebSocketHandler struct {
	processor TurnProcessor
	tmpDir    string
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器。
func NewWebSocketHandler(processor TurnProcessor, tmpDir string) *WebSocketHandler {
	return &WebSocketHandler{
		processor: processor,
		tmpDir:    tmpDir,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由。
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{userID}", h.handleWebSocket)
}

// handleWebSocket 处理一条长连接上的多轮对话。
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "userID is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] connection established for user=%s", userID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	go h.pingLoop(ctx, conn)

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error for user=%s: %v", userID, err)
			} else {
				log.Printf("[websocket] connection closed for user=%s", userID)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(readDeadline))

		switch messageType {
		case websocket.TextMessage:
			err = h.processTextFrame(ctx, conn, userID, string(payload))
		case websocket.BinaryMessage:
			err = h.processBinaryFrame(ctx, conn, userID, payload)
		default:
			continue
		}

		// A failed turn tears down the whole session with a distinguishable
		// abnormal status; the remote side reconnects for a fresh one.
		if err != nil {
			log.Printf("[websocket] turn failed for user=%s: %v", userID, err)
			h.closeAbnormally(conn)
			return
		}
	}
}

// processTextFrame runs one turn for a typed utterance.
func (h *WebSocketHandler) processTextFrame(ctx context.Context, conn *websocket.Conn, userID, text string) error {
	result, err := h.processor.Process(ctx, turn.TextUtterance(text), userID)
	if err != nil {
		return err
	}
	return conn.WriteJSON(result)
}

// processBinaryFrame runs one turn for a spoken utterance. The transient
// audio resource is scoped to this single frame and removed before the next
// frame is read, whatever the outcome.
func (h *WebSocketHandler) processBinaryFrame(ctx context.Context, conn *websocket.Conn, userID string, payload []byte) error {
	resource, err := tempaudio.Materialize(h.tmpDir, userID, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer func() {
		if err := resource.Close(); err != nil {
			log.Printf("[websocket] failed to remove temp audio for user=%s: %v", userID, err)
		}
	}()

	audio, err := resource.Bytes()
	if err != nil {
		return err
	}

	result, err := h.processor.Process(ctx, turn.AudioUtterance(audio, "audio/wav", filepath.Base(resource.Path())), userID)
	if err != nil {
		return err
	}
	return conn.WriteJSON(result)
}

// closeAbnormally signals the faulted state to the remote side.
func (h *WebSocketHandler) closeAbnormally(conn *websocket.Conn) {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "an error occurred")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		log.Printf("[websocket] failed to send close frame: %v", err)
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
