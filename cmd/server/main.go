package main

import (
	"askpaul-backend/internal/api"
	"askpaul-backend/internal/config"
	"askpaul-backend/internal/handlers"
	"askpaul-backend/internal/llm"
	"askpaul-backend/internal/relay"
	"askpaul-backend/internal/services"
	"askpaul-backend/internal/store/migrate"
	"askpaul-backend/internal/store/postgres"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	log.Println("Starting Ask Paul Backend...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	if cfg.RunMigrations {
		if err := migrate.Run(cfg.DatabaseURL); err != nil {
			log.Fatalf("FATAL: Schema migration failed: %v", err)
		}
	}

	// 2. Initialize Database Connection Pool
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Unable to create database connection pool: %v\n", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(dbCtx); err != nil {
		log.Fatalf("FATAL: Unable to ping database: %v\n", err)
	}
	log.Println("Database connection pool established and pinged successfully.")

	// 3. Initialize Dependencies (Store, Provider, Services, Handlers)
	pgStore := postgres.NewPostgresStore(dbpool)
	log.Println("Postgres store initialized.")

	provider, err := llm.NewProvider(llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		BaseURL:  cfg.LLMBaseURL,
		Model:    cfg.LLMModel,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to create LLM provider: %v", err)
	}
	completionRelay := relay.New(provider)
	log.Printf("Completion relay initialized with provider %s.", provider.Name())

	authService := services.NewAuthService(pgStore, cfg, services.LogMailer{})
	conversationService := services.NewConversationService(pgStore)
	log.Println("Services initialized.")

	routerDeps := api.RouterDependencies{
		RelayHandler:        handlers.NewRelayHandler(completionRelay),
		AuthHandler:         handlers.NewAuthHandler(authService),
		ConversationHandler: handlers.NewConversationHandlers(conversationService),
		Revocations:         authService,
		Config:              cfg,
	}

	// 4. Setup Router
	router := api.NewRouter(routerDeps)
	log.Println("HTTP router configured.")

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 120 * time.Second, // long enough for a full provider completion
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting and listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Could not listen on %s: %v\n", cfg.HTTPPort, err)
		}
		log.Println("Server listener routine stopped.")
	}()

	<-stopChan
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Server graceful shutdown failed: %v", err)
		log.Fatal("Forcing shutdown due to error.")
	}

	log.Println("Server shutdown complete.")
}
