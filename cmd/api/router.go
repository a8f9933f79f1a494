package api

import (
	"net/http"

	assistDelivery "todo-assist-backend/internal/assist/delivery"
	"todo-assist-backend/internal/auth/delivery"
	authUsecase "todo-assist-backend/internal/auth/usecase"
	todoDelivery "todo-assist-backend/internal/todo/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, todoHandler *todoDelivery.TodoHandler, assistHandler *assistDelivery.AssistHandler, settingsHandler *SettingsHandler, adminKey string) {
	authHandler := delivery.NewAuthHandler(authUsecase)
	requireAuth := delivery.AuthMiddleware(authUsecase)

	// Health check (no auth required)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", requireAuth, authHandler.Me)
		}

		// Operator routes, keyed by X-Admin-Key
		admin := api.Group("/admin")
		admin.Use(delivery.AdminKeyMiddleware(adminKey))
		{
			admin.PUT("/users/:id/plan", authHandler.ChangePlan)
		}

		// Todo routes (protected)
		todos := api.Group("/todos")
		todos.Use(requireAuth)
		{
			todos.GET("", todoHandler.GetTodos)
			todos.POST("", todoHandler.CreateTodo)
			todos.GET("/:id", todoHandler.GetTodoByID)
			todos.PATCH("/:id", todoHandler.UpdateTodo)
			todos.POST("/:id/subtasks", todoHandler.AddSubtask)
		}

		projects := api.Group("/projects")
		projects.Use(requireAuth)
		{
			projects.GET("", todoHandler.GetProjects)
			projects.POST("", todoHandler.CreateProject)
		}

		// Decision-assist routes (protected)
		assistHandler.RegisterRoutes(api.Group("/ai", requireAuth))

		// Runtime generator settings (protected)
		settings := api.Group("/settings")
		settings.Use(requireAuth)
		{
			settings.GET("/ollama", settingsHandler.GetOllama)
			settings.PUT("/ollama", settingsHandler.UpdateOllama)
			settings.POST("/ollama/test", settingsHandler.TestOllama)
		}
	}
}
