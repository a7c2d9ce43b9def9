package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/escuta-ai/escuta/backend/internal/config"
	"github.com/escuta-ai/escuta/backend/internal/handler/chat"
	"github.com/escuta-ai/escuta/backend/internal/handler/persona"
	"github.com/escuta-ai/escuta/backend/internal/handler/sentiment"
	middlewarePkg "github.com/escuta-ai/escuta/backend/internal/middleware"
	personaModel "github.com/escuta-ai/escuta/backend/internal/model/persona"
	chatService "github.com/escuta-ai/escuta/backend/internal/service/chat"
	"github.com/escuta-ai/escuta/backend/pkg/utils"
)

// Services bundles what the HTTP layer needs.
type Services struct {
	Chat      *chatService.Service
	Personas  personaModel.Source
	Sentiment sentiment.Analyzer
}

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg config.ServerConfig, svcs Services, logger *zap.Logger, chatOpts ...chat.Option) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.AllowedOrigins))
	r.Use(middlewarePkg.BodyLimit(cfg.MaxBodyBytes))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	chatHandler := chat.New(svcs.Chat, logger.Named("chat"), chatOpts...)
	personaHandler := persona.New(svcs.Personas, svcs.Chat.TrialSeconds())

	r.Route("/api", func(api chi.Router) {
		api.Route("/chat", chatHandler.RegisterRoutes)
		personaHandler.RegisterRoutes(api)

		if svcs.Sentiment != nil {
			sentiment.New(svcs.Sentiment).RegisterRoutes(api)
		}
	})

	return r
}
