package conversation

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/careerchat/client/internal/service/notify"
	"github.com/zhouzirui/careerchat/client/internal/service/session"
	"github.com/zhouzirui/careerchat/client/pkg/utils"
)

// Handler exposes the conversation to the presentation layer: a snapshot
// endpoint for initial render and a submit endpoint that streams render-ready
// snapshots for the duration of one turn.
type Handler struct {
	sessionSvc *session.Service
	hub        *notify.Hub
}

// New creates the conversation handler.
func New(sessionSvc *session.Service, hub *notify.Hub) *Handler {
	return &Handler{sessionSvc: sessionSvc, hub: hub}
}

// RegisterRoutes mounts the conversation endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversation", h.handleGetConversation)
	r.Post("/conversation/messages", h.handleSubmitMessage)
}

// handleGetConversation returns the current snapshot with the consolidated
// citation layer applied.
func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, RenderSnapshot(h.sessionSvc.Store().Snapshot()))
}

// handleSubmitMessage starts a turn and streams a snapshot per state change
// over SSE until the turn ends. Turn failures surface as a single error event.
func (h *Handler) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates, err := h.sessionSvc.Submit(r.Context(), payload.Content)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, session.ErrTurnInFlight) {
			status = http.StatusConflict
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	notifications, cancel := h.hub.Subscribe()
	defer cancel()

	utils.SetupSSEHeaders(w)

	for {
		select {
		case snapshot, open := <-updates:
			if !open {
				utils.SendSSEEvent(w, flusher, "end", map[string]bool{"finished": true})
				return
			}
			utils.SendSSEChunk(w, flusher, RenderSnapshot(snapshot))
		case n := <-notifications:
			utils.SendSSEEvent(w, flusher, "error", n)
		case <-r.Context().Done():
			log.Printf("[conversation] client went away mid-turn")
			// Drain so the turn goroutine is not stuck on a send.
			for range updates {
			}
			return
		}
	}
}
