package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"tutorhub-backend/internal/handlers"
	"tutorhub-backend/internal/middleware"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	calendarHandler *handlers.CalendarHandler,
	sessionHandler *handlers.SessionHandler,
	requestHandler *handlers.SessionRequestHandler,
	assignmentHandler *handlers.AssignmentHandler,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/login", authHandler.Login)
		})

		// ──── User Routes ────
		r.Route("/users", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", userHandler.Create)
			r.Get("/", userHandler.List)
			r.Get("/me", userHandler.GetMe)
		})

		// ──── Calendar Connect Routes ────
		r.Route("/calendar", func(r chi.Router) {
			// Provider redirect carries no bearer token
			r.Get("/callback", calendarHandler.Callback)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Get("/connect", calendarHandler.AuthorizationURL)
				r.Get("/status", calendarHandler.Status)
				r.Delete("/disconnect", calendarHandler.Disconnect)
			})
		})

		// ──── Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", sessionHandler.Create)
			r.Post("/masterclass", sessionHandler.CreateMasterclass)
			r.Get("/", sessionHandler.List)
			r.Get("/{id}", sessionHandler.Get)
			r.Put("/{id}", sessionHandler.Update)
			r.Delete("/{id}", sessionHandler.Delete)
			r.Post("/{id}/join", sessionHandler.Join)
		})

		// ──── Session Request Routes ────
		r.Route("/session-requests", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", requestHandler.Create)
			r.Get("/", requestHandler.List)
			r.Get("/{id}", requestHandler.Get)
			r.Post("/{id}/assign", requestHandler.Assign)
			r.Put("/{id}/status", requestHandler.UpdateStatus)
			r.Post("/{id}/cancel", requestHandler.Cancel)
			r.Post("/{id}/admin-cancel", requestHandler.AdminCancel)
		})

		// ──── Assignment Routes ────
		r.Route("/assignments", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", assignmentHandler.Assign)
			r.Delete("/{tutorID}/{studentID}", assignmentHandler.Unassign)
			r.Get("/tutor/{tutorID}/students", assignmentHandler.ListStudents)
			r.Get("/student/{studentID}/tutors", assignmentHandler.ListTutors)
		})
	})

	return r
}
