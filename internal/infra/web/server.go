package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"lms-enrollment-engine/internal/config"
	"lms-enrollment-engine/internal/domain/ports/repository"
	"lms-enrollment-engine/internal/usecase"
)

// Server is the operator-facing API: enrollment inspection plus the recovery
// tools. Everything except login and health sits behind the session check.
type Server struct {
	enrollmentUC usecase.EnrollmentUseCase
	recoveryUC   usecase.RecoveryUseCase
	enrollments  repository.EnrollmentRepository
	schedules    repository.ScheduleRepository
	payments     repository.PaymentRepository
	auth         *AuthManager
	password     string
	log          *zerolog.Logger
	srv          *http.Server
}

func NewServer(
	cfg *config.AdminConfig,
	enrollmentUC usecase.EnrollmentUseCase,
	recoveryUC usecase.RecoveryUseCase,
	enrollments repository.EnrollmentRepository,
	schedules repository.ScheduleRepository,
	payments repository.PaymentRepository,
	logger *zerolog.Logger,
) *Server {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	s := &Server{
		enrollmentUC: enrollmentUC,
		recoveryUC:   recoveryUC,
		enrollments:  enrollments,
		schedules:    schedules,
		payments:     payments,
		auth:         NewAuthManager(cfg.JWTSecret, true, "", ttl),
		password:     cfg.Password,
		log:          logger,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/v1/login", s.handleLogin)
	r.Post("/api/v1/logout", s.handleLogout)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Post("/enrollments", s.handleEnrollmentCreate)
		r.Get("/enrollments/{id}", s.handleEnrollmentGet)
		r.Post("/enrollments/{id}/schedule", s.handleScheduleGenerate)
		r.Post("/enrollments/{id}/cancel", s.handleEnrollmentCancel)
		r.Delete("/enrollments/{id}", s.handleEnrollmentDelete)

		r.Get("/events/orphans", s.handleOrphanList)
		r.Post("/recovery/replay", s.handleReplay)
		r.Post("/recovery/mark-paid", s.handleMarkPaid)
		r.Post("/recovery/recompute", s.handleRecompute)
	})
	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("admin API listening")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if s.password == "" ||
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.password)) != 1 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Failed to mint session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
