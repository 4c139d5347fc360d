package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/marc/credit-identity-api/internal/api/handlers"
	"github.com/marc/credit-identity-api/internal/api/middleware"
	"github.com/marc/credit-identity-api/internal/service"
)

func NewRouter(services *service.Services) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Auth)
	userHandler := handlers.NewUserHandler(services.Auth, services.Ledger)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(services.Auth))
				r.Get("/me", authHandler.Me)
				r.Post("/logout", authHandler.Logout)
				r.Post("/password", authHandler.ChangePassword)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Auth))

			// Profile and credit routes
			r.Route("/users", func(r chi.Router) {
				r.Get("/me", userHandler.GetProfile)
				r.Put("/me", userHandler.UpdateProfile)
				r.Get("/me/credit", userHandler.CreditHistory)
				r.Post("/me/credit/transfer", userHandler.Transfer)
				r.Post("/me/credit/deposit", userHandler.Deposit)
				r.Post("/me/credit/withdraw", userHandler.Withdraw)
				r.Post("/me/credit/purchase", userHandler.Purchase)
				r.Get("/me/affiliate", userHandler.AffiliateStats)
			})

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireManageUsers)
				r.Get("/users", userHandler.ListUsers)
			})
		})
	})

	return r
}
