package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutorhub-backend/internal/config"
	"tutorhub-backend/internal/database"
	"tutorhub-backend/internal/handlers"
	"tutorhub-backend/internal/middleware"
	"tutorhub-backend/internal/repository"
	"tutorhub-backend/internal/router"
	"tutorhub-backend/internal/services"
)

func main() {
	log.Println("🚀 Starting TutorHub Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Client ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	assignmentRepo := repository.NewAssignmentRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	requestRepo := repository.NewSessionRequestRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	provider := services.NewGoogleCalendar(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	tokenManager := services.NewTokenManager(userRepo, provider)
	orchestrator := services.NewOrchestrator(
		tokenManager,
		provider,
		time.Duration(cfg.CalendarTimeoutSecs)*time.Second,
		cfg.CalendarInviteConcur,
	)
	authService := services.NewAuthService(userRepo, jwtAuth)
	connectService := services.NewCalendarConnectService(userRepo, provider, redisClient)
	sessionService := services.NewSessionService(sessionRepo, userRepo, assignmentRepo, orchestrator)
	requestService := services.NewSessionRequestService(requestRepo, userRepo, orchestrator, emailService)
	assignmentService := services.NewAssignmentService(assignmentRepo, userRepo)
	log.Println("✓ Google Calendar provider initialized")

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(authService)
	calendarHandler := handlers.NewCalendarHandler(connectService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	requestHandler := handlers.NewSessionRequestHandler(requestService)
	assignmentHandler := handlers.NewAssignmentHandler(assignmentService)

	// ──── Step 5: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		userHandler,
		calendarHandler,
		sessionHandler,
		requestHandler,
		assignmentHandler,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ TutorHub Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
