package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"carelink/internal/auth"
	"carelink/internal/handler"
	"carelink/internal/location"
	"carelink/internal/middleware"
	"carelink/internal/preferences"
	"carelink/internal/realtime"
	"carelink/internal/relationship"
	"carelink/internal/repository/postgres"
	"carelink/pkg/config"
	"carelink/pkg/logger"
	"carelink/pkg/validator"
)

func main() {
	// Load configuration
	_ = godotenv.Load()
	cfg := config.Load()

	// Initialize logger
	log := logger.New("carelink-api")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	// Connect to database
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	deviceRepo := postgres.NewDeviceRepository(db)
	geoRepo := postgres.NewGeolocationRepository(db)
	relationshipRepo := postgres.NewRelationshipRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	preferencesRepo := postgres.NewPreferencesRepository(db)
	registrationRepo := postgres.NewRegistrationRepository(db)

	// Initialize services
	hub := realtime.NewHub(log)
	authService := auth.NewService(userRepo, sessionRepo, registrationRepo,
		cfg.JWT.Secret, cfg.Session.ParentTTL, cfg.Session.PatientTTL)
	relationshipService := relationship.NewService(relationshipRepo, userRepo)
	locationService := location.NewService(deviceRepo, geoRepo, userRepo, relationshipRepo, hub, log)
	preferencesService := preferences.NewService(preferencesRepo)

	// Initialize handlers
	val := validator.New()
	authHandler := handler.NewAuthHandler(authService, val, log)
	relationshipHandler := handler.NewRelationshipHandler(relationshipService, val, log)
	locationHandler := handler.NewLocationHandler(locationService, val, log)
	preferencesHandler := handler.NewPreferencesHandler(preferencesService, val, log)
	realtimeHandler := handler.NewRealtimeHandler(hub, authService, log)

	// Setup router
	r := mux.NewRouter()

	// Middleware
	r.Use(middleware.CORS)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.NewRateLimiter(redisClient, 120, time.Minute).Limit)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery)
	r.Use(middleware.BodyLimit(1 << 20))

	// Public routes
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/api/v1/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/api/v1/auth/login", authHandler.Login).Methods("POST")
	// Trackers report readings without a session; they identify by serial.
	r.HandleFunc("/api/v1/locations", locationHandler.Ingest).Methods("POST")
	r.HandleFunc("/ws", realtimeHandler.ServeWS)

	// Protected routes
	authMW := middleware.NewAuthMiddleware(authService)
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW.Authenticate)
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST")
	api.HandleFunc("/auth/me", authHandler.Me).Methods("GET")
	api.HandleFunc("/relationships", relationshipHandler.Create).Methods("POST")
	api.HandleFunc("/relationships/parent/{parentID}/patients", relationshipHandler.ListPatients).Methods("GET")
	api.HandleFunc("/relationships/patient/{patientID}/parents", relationshipHandler.ListParents).Methods("GET")
	api.HandleFunc("/relationships/{parentID}/{patientID}", relationshipHandler.Get).Methods("GET")
	api.HandleFunc("/relationships/{parentID}/{patientID}", relationshipHandler.Delete).Methods("DELETE")
	api.HandleFunc("/locations/latest/{patientID}", locationHandler.Latest).Methods("GET")
	api.HandleFunc("/locations/history/{patientID}", locationHandler.History).Methods("GET")
	api.HandleFunc("/preferences", preferencesHandler.Get).Methods("GET")
	api.HandleFunc("/preferences", preferencesHandler.Update).Methods("PATCH")

	// Reclaim expired session rows in the background.
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go cleanupSessions(cleanupCtx, sessionRepo, cfg.Session.CleanupInterval, log)

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Info("CareLink API starting", map[string]interface{}{"port": cfg.Server.Port})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Server stopped", nil)
}

func cleanupSessions(ctx context.Context, sessions *postgres.SessionRepository, interval time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx, time.Now())
			if err != nil {
				log.Error("Session cleanup failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			if n > 0 {
				log.Info("Expired sessions removed", map[string]interface{}{"count": n})
			}
		}
	}
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"carelink"}`))
}
