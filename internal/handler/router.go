package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	conversationHandler "github.com/zhouzirui/careerchat/client/internal/handler/conversation"
	wsHandler "github.com/zhouzirui/careerchat/client/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/careerchat/client/internal/middleware"
	"github.com/zhouzirui/careerchat/client/internal/service/notify"
	"github.com/zhouzirui/careerchat/client/internal/service/session"
	"github.com/zhouzirui/careerchat/client/pkg/utils"
)

// NewRouter wires HTTP routes to the session coordinator.
func NewRouter(sessionSvc *session.Service, hub *notify.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	convHandler := conversationHandler.New(sessionSvc, hub)
	socketHandler := wsHandler.New(sessionSvc, hub)

	r.Route("/api", func(api chi.Router) {
		convHandler.RegisterRoutes(api)
		socketHandler.RegisterRoutes(api)

		api.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
