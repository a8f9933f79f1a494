package api

import (
	"net/http"
	"time"

	assistDelivery "todo-assist-backend/internal/assist/delivery"
	assistUsecase "todo-assist-backend/internal/assist/usecase"
	authUsecase "todo-assist-backend/internal/auth/usecase"
	todoDelivery "todo-assist-backend/internal/todo/delivery"
	todoUsecase "todo-assist-backend/internal/todo/usecase"
	"todo-assist-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

type Handler struct {
	authUsecase     authUsecase.AuthUsecase
	config          *config.Config
	todoHandler     *todoDelivery.TodoHandler
	assistHandler   *assistDelivery.AssistHandler
	settingsHandler *SettingsHandler
}

func NewHandler(authUc authUsecase.AuthUsecase, todoUc todoUsecase.TodoUsecase, assistUc assistUsecase.AssistUsecase, settings *RuntimeSettings, cfg *config.Config) *Handler {
	if settings == nil {
		settings = NewRuntimeSettings(cfg.OllamaBaseURL, cfg.OllamaModel)
	}
	return &Handler{
		authUsecase:     authUc,
		config:          cfg,
		todoHandler:     todoDelivery.NewTodoHandler(todoUc),
		assistHandler:   assistDelivery.NewAssistHandler(assistUc),
		settingsHandler: NewSettingsHandler(settings),
	}
}

// Router builds the gin engine wrapped in the CORS handler
func (h *Handler) Router() http.Handler {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	SetupRoutes(r, h.authUsecase, h.todoHandler, h.assistHandler, h.settingsHandler, h.config.AdminAPIKey)

	c := cors.New(cors.Options{
		AllowedOrigins:   h.config.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Accept", "Origin", "Cache-Control", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           600,
	})
	return c.Handler(r)
}

func (h *Handler) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
