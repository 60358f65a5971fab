package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/internal/analysis"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/internal/auth"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/internal/cases"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/config"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/database"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/monitoring"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/repository"
)

const serviceVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)
	log.WithField("version", serviceVersion).Info("Starting Case Service")

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.CreateSchema(ctx); err != nil {
		log.WithError(err).Error("Failed to create database schema")
		os.Exit(1)
	}

	// Initialize Redis for token revocation
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Error("Failed to connect to Redis")
		os.Exit(1)
	}
	defer redisClient.Close()

	// Repositories
	userRepo := repository.NewUserRepository(db.DB, log)
	caseRepo := repository.NewCaseRepository(db.DB, log)
	analysisRepo := repository.NewAnalysisRepository(db.DB, log)

	// Image storage for case uploads
	imageDir := filepath.Join(cfg.Sync.StateDir, "images")
	imageStore, err := cases.NewFileImageStore(imageDir, "/images")
	if err != nil {
		log.WithError(err).Error("Failed to initialize image store")
		os.Exit(1)
	}

	// Services
	authService := auth.NewService(&cfg.JWT, log, userRepo, auth.NewPasswordManager(), auth.NewRedisRevocationStore(redisClient))
	caseService := cases.NewService(caseRepo, imageStore, log)
	analysisService := analysis.NewService(&cfg.AI, analysisRepo, log)

	// HTTP handlers
	authHandlers := auth.NewHandlers(authService, log)
	caseHandlers := cases.NewHandlers(caseService, log)
	analysisHandlers := analysis.NewHandlers(analysisService, log)

	// Router
	router := mux.NewRouter()
	router.Use(monitoring.HTTPMiddleware(log))
	router.Use(monitoring.CORSMiddleware)

	// Health and metrics
	healthManager := monitoring.NewHealthManager("case-service", serviceVersion)
	healthManager.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))
	healthManager.RegisterChecker("redis", monitoring.NewRedisHealthChecker(redisClient))
	router.HandleFunc(cfg.Monitoring.HealthPath, healthManager.HTTPHandler()).Methods("GET")
	if cfg.Monitoring.Enabled {
		router.Handle(cfg.Monitoring.MetricsPath, monitoring.MetricsHandler()).Methods("GET")
	}

	// Uploaded case images
	router.PathPrefix("/images/").Handler(
		http.StripPrefix("/images/", http.FileServer(http.Dir(imageStore.Dir()))))

	// API routes
	api := router.PathPrefix("/api").Subrouter()
	authHandlers.RegisterRoutes(api)

	authed := api.NewRoute().Subrouter()
	authed.Use(authHandlers.RequireAuth)
	caseHandlers.RegisterRoutes(authed)
	analysisHandlers.RegisterRoutes(authed)

	// HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.WithField("address", server.Addr).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Failed to start HTTP server")
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Case Service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
		os.Exit(1)
	}

	log.Info("Case Service stopped")
}
