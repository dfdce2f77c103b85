package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/douglas-germano/advantage-crm-backend/internal/api/handlers"
	"github.com/douglas-germano/advantage-crm-backend/internal/api/middleware"
	"github.com/douglas-germano/advantage-crm-backend/internal/auth"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
	"github.com/douglas-germano/advantage-crm-backend/internal/storage"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	LocalStore     storage.Store
	RemoteStore    storage.Store // nil when S3 is not configured
	Migrator       *storage.Migrator
	AsynqClient    *asynq.Client
	BaseURL        string
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService)
	userHandler := handlers.NewUserHandler(cfg.DB)
	leadHandler := handlers.NewLeadHandler(cfg.DB, cfg.AsynqClient)
	customerHandler := handlers.NewCustomerHandler(cfg.DB)
	dealHandler := handlers.NewDealHandler(cfg.DB, cfg.AsynqClient)
	pipelineHandler := handlers.NewPipelineHandler(cfg.DB)
	customFieldHandler := handlers.NewCustomFieldHandler(cfg.DB)
	taskHandler := handlers.NewTaskHandler(cfg.DB, cfg.AsynqClient)
	commHandler := handlers.NewCommunicationHandler(cfg.DB, cfg.LocalStore, cfg.RemoteStore)
	documentHandler := handlers.NewDocumentHandler(cfg.DB, cfg.LocalStore, cfg.RemoteStore, cfg.Migrator, cfg.AsynqClient, cfg.BaseURL)
	workflowHandler := handlers.NewWorkflowHandler(cfg.DB)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Document reads are gated per document: public documents and
		// valid access codes pass without a token
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWTService))
			r.Get("/documents/{id}", documentHandler.Get)
			r.Get("/documents/{id}/download", documentHandler.Download)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/logout", authHandler.Logout)

			r.Route("/users", func(r chi.Router) {
				r.With(middleware.RequireRole(models.RoleAdmin)).Get("/", userHandler.List)
				r.With(middleware.RequireRole(models.RoleAdmin)).Post("/", userHandler.Create)
				r.Get("/me", userHandler.Me)
				r.Put("/me", userHandler.UpdateMe)
				r.Get("/{id}", userHandler.Get)
				r.Put("/{id}", userHandler.Update)
				r.With(middleware.RequireRole(models.RoleAdmin)).Delete("/{id}", userHandler.Delete)
				r.Put("/{id}/password", userHandler.ChangePassword)
			})

			r.Route("/leads", func(r chi.Router) {
				r.Get("/", leadHandler.List)
				r.Post("/", leadHandler.Create)
				r.Get("/{id}", leadHandler.Get)
				r.Put("/{id}", leadHandler.Update)
				r.Delete("/{id}", leadHandler.Delete)
			})

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", customerHandler.List)
				r.Post("/", customerHandler.Create)
				r.Get("/{id}", customerHandler.Get)
				r.Put("/{id}", customerHandler.Update)
				r.Delete("/{id}", customerHandler.Delete)
			})

			r.Route("/deals", func(r chi.Router) {
				r.Get("/", dealHandler.List)
				r.Post("/", dealHandler.Create)
				r.Get("/{id}", dealHandler.Get)
				r.Put("/{id}", dealHandler.Update)
				r.Delete("/{id}", dealHandler.Delete)
				// The same stage move under every spelling clients use
				r.Post("/{id}/move", dealHandler.Move)
				r.Put("/{id}/move", dealHandler.Move)
				r.Put("/{id}/stage", dealHandler.Move)
			})

			r.Route("/pipelines", func(r chi.Router) {
				r.Get("/", pipelineHandler.List)
				r.Post("/", pipelineHandler.Create)
				r.Get("/default", pipelineHandler.Default)
				r.Get("/{id}", pipelineHandler.Get)
				r.Get("/{id}/stages", pipelineHandler.Stages)
				r.Put("/{id}", pipelineHandler.Update)
				r.Delete("/{id}", pipelineHandler.Delete)
				r.Post("/{id}/stages", pipelineHandler.AddStage)
				r.Put("/{id}/stages/{stageID}", pipelineHandler.UpdateStage)
				r.Delete("/{id}/stages/{stageID}", pipelineHandler.DeleteStage)
			})

			r.Route("/custom-fields", func(r chi.Router) {
				r.Get("/", customFieldHandler.List)
				r.Get("/{id}", customFieldHandler.Get)
				r.With(middleware.RequireRole(models.RoleAdmin)).Post("/", customFieldHandler.Create)
				r.With(middleware.RequireRole(models.RoleAdmin)).Put("/{id}", customFieldHandler.Update)
				r.With(middleware.RequireRole(models.RoleAdmin)).Delete("/{id}", customFieldHandler.Delete)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.List)
				r.Post("/", taskHandler.Create)
				r.Get("/{id}", taskHandler.Get)
				r.Put("/{id}", taskHandler.Update)
				r.Delete("/{id}", taskHandler.Delete)
				r.Post("/{id}/complete", taskHandler.Complete)
				r.Post("/{id}/reopen", taskHandler.Reopen)
				r.Post("/{id}/cancel", taskHandler.Cancel)
			})

			r.Route("/communications", func(r chi.Router) {
				r.Get("/", commHandler.List)
				r.Post("/", commHandler.Create)
				r.Get("/{id}", commHandler.Get)
				r.Put("/{id}", commHandler.Update)
				r.Delete("/{id}", commHandler.Delete)
			})

			r.Route("/documents", func(r chi.Router) {
				r.Get("/", documentHandler.List)
				r.Post("/", documentHandler.Upload)
				r.Put("/{id}", documentHandler.Update)
				r.Delete("/{id}", documentHandler.Delete)
				r.Post("/{id}/share", documentHandler.Share)
				r.With(middleware.RequireRole(models.RoleAdmin)).Post("/migrate", documentHandler.Migrate)
			})

			r.Route("/workflows", func(r chi.Router) {
				r.Get("/", workflowHandler.List)
				r.Post("/", workflowHandler.Create)
				r.Get("/{id}", workflowHandler.Get)
				r.Put("/{id}", workflowHandler.Update)
				r.Delete("/{id}", workflowHandler.Delete)
				r.Post("/{id}/toggle", workflowHandler.Toggle)
			})
		})
	})

	return &Router{r}
}
