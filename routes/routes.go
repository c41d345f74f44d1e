package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jaqubm/budgetme-backend/app"
	"github.com/jaqubm/budgetme-backend/config"
	"github.com/jaqubm/budgetme-backend/middleware"
	"github.com/jaqubm/budgetme-backend/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	requestTimeout := deps.Config.Server.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = config.DefaultRequestTimeout
	}

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/healthz", deps.HealthHandler.HandleLiveness)

	r.Route("/auth", func(r chi.Router) {
		// Exactly one login flow is mounted, matching the active identity strategy
		switch deps.IdentityStrategy() {
		case config.StrategyAuthorizationCode:
			r.Get("/login", deps.AuthHandler.HandleLogin)
			r.Get("/callback", deps.AuthHandler.HandleCallback)
		case config.StrategyTokenInfo:
			r.Post("/verify", deps.AuthHandler.HandleVerify)
		}

		r.Post("/logout", deps.AuthHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/me", deps.AuthHandler.HandleMe)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
