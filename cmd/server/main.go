package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marc/credit-identity-api/internal/api"
	"github.com/marc/credit-identity-api/internal/cache"
	"github.com/marc/credit-identity-api/internal/config"
	"github.com/marc/credit-identity-api/internal/repository"
	"github.com/marc/credit-identity-api/internal/repository/postgres"
	"github.com/marc/credit-identity-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize database
	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Initialize repositories
	repos := postgres.NewRepositories(db)
	uow := postgres.NewUnitOfWork(db)

	// Revocation cache
	revocations := cache.NewMemory()

	// Initialize services
	services := service.NewServices(repos, uow, revocations, cfg)

	// Initialize router
	router := api.NewRouter(services)

	// Reap expired session rows in the background; token validity never
	// depends on the reaper, it only keeps the table small.
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	go reapSessions(reaperCtx, repos.Session, cfg.SessionReapInterval)

	// Create server
	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopReaper()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func reapSessions(ctx context.Context, sessions repository.SessionRepository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := sessions.DeleteExpired(ctx, time.Now())
			if err != nil {
				log.Printf("ERROR [main.reapSessions] %v", err)
				continue
			}
			if deleted > 0 {
				log.Printf("Reaped %d expired sessions", deleted)
			}
		}
	}
}
