// Package ws pushes conversation snapshots and toasts to a browser UI over a
// websocket, as an alternative to the SSE submit endpoint.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	conversationhandler "github.com/zhouzirui/careerchat/client/internal/handler/conversation"
	"github.com/zhouzirui/careerchat/client/internal/service/notify"
	"github.com/zhouzirui/careerchat/client/internal/service/session"
)

// Handler upgrades connections and relays turns over them.
type Handler struct {
	sessionSvc *session.Service
	hub        *notify.Hub
	upgrader   websocket.Upgrader
}

// New creates the websocket handler.
func New(sessionSvc *session.Service, hub *notify.Hub) *Handler {
	return &Handler{
		sessionSvc: sessionSvc,
		hub:        hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Gorilla allows one concurrent writer; snapshots and toasts share it.
	var writeMu sync.Mutex
	send := func(msgType string, data interface{}) {
		writeMu.Lock()
		defer writeMu.Unlock()
		msg := outgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("[ws] write failed: %v", err)
		}
	}

	notifications, cancel := h.hub.Subscribe()
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case n, ok := <-notifications:
				if !ok {
					return
				}
				send("toast", n)
			case <-done:
				return
			}
		}
	}()

	send("snapshot", conversationhandler.RenderSnapshot(h.sessionSvc.Store().Snapshot()))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read failed: %v", err)
			}
			return
		}

		var inbound inboundMessage
		if err := json.Unmarshal(raw, &inbound); err != nil {
			send("error", map[string]string{"error": "invalid message"})
			continue
		}

		if inbound.Type != "message" {
			send("error", map[string]string{"error": "unknown message type"})
			continue
		}

		updates, err := h.sessionSvc.Submit(r.Context(), inbound.Content)
		if err != nil {
			send("error", map[string]string{"error": err.Error()})
			continue
		}

		for snapshot := range updates {
			send("snapshot", conversationhandler.RenderSnapshot(snapshot))
		}
		send("end", nil)
	}
}
