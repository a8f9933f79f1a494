package main

import (
	"context"
	"log"
	"os"

	api "todo-assist-backend/cmd/api"
	"todo-assist-backend/internal/assist/contract"
	assistdomain "todo-assist-backend/internal/assist/domain"
	assistRepo "todo-assist-backend/internal/assist/repository"
	assistUsecase "todo-assist-backend/internal/assist/usecase"
	authdomain "todo-assist-backend/internal/auth/domain"
	authRepo "todo-assist-backend/internal/auth/repository"
	authUsecase "todo-assist-backend/internal/auth/usecase"
	tododomain "todo-assist-backend/internal/todo/domain"
	todoRepo "todo-assist-backend/internal/todo/repository"
	todoUsecase "todo-assist-backend/internal/todo/usecase"
	"todo-assist-backend/pkg/ai"
	"todo-assist-backend/pkg/config"
	"todo-assist-backend/pkg/database"
	"todo-assist-backend/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&authdomain.User{}, &tododomain.Project{}, &tododomain.Todo{}, &tododomain.Subtask{}, &assistdomain.SuggestionRecord{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	todoRepository := todoRepo.NewGormTodoRepository(db)
	projectRepository := todoRepo.NewCachedProjectRepository(todoRepo.NewGormProjectRepository(db), cfg.ProjectCacheTTL)
	suggestionRepository := assistRepo.NewSuggestionRepository(db, todoRepository, projectRepository)

	// Runtime Ollama settings feed the generator through getters
	settings := api.NewRuntimeSettings(cfg.OllamaBaseURL, cfg.OllamaModel)
	generator, err := ai.NewSuggestionGenerator(context.Background(), ai.Config{
		Provider:      ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
		OllamaBaseURL: settings.OllamaBaseURL,
		OllamaModel:   settings.OllamaModel,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIModel:   cfg.OpenAIModel,
	})
	if err != nil {
		log.Printf("[WARN] Failed to initialize AI provider %q, using heuristic suggestions: %v", cfg.AIProvider, err)
		generator = ai.NewHeuristicService()
	}
	settings.SetGenerator(generator.Name())
	log.Printf("AI suggestion generator: %s", generator.Name())

	sink := telemetry.NewNopSink()
	if cfg.TelemetryEnabled {
		sink = telemetry.NewSlogSink(os.Stdout)
	}

	// Initialize use cases (dependency injection)
	normalizer := contract.NewNormalizer(nil)
	quota := assistUsecase.NewQuotaService(suggestionRepository, userRepo, assistUsecase.PlanLimits{
		assistdomain.PlanFree: cfg.DailyLimitFree,
		assistdomain.PlanPro:  cfg.DailyLimitPro,
		assistdomain.PlanTeam: cfg.DailyLimitTeam,
	})
	applier := assistUsecase.NewApplyService(db, todoRepository, projectRepository, normalizer)

	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepo, cfg)
	todoUsecaseInstance := todoUsecase.NewTodoUsecase(todoRepository, projectRepository)
	assistUsecaseInstance := assistUsecase.NewAssistUsecase(
		suggestionRepository, todoRepository, projectRepository,
		generator, quota, applier, normalizer, sink,
	)

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, todoUsecaseInstance, assistUsecaseInstance, settings, cfg)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
