// Package httpapi wires the HTTP surface of the savings service.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mfigueroa/hucha/internal/service/goal"
	"github.com/mfigueroa/hucha/internal/service/query"
)

// Options carries deployment defaults applied at the API edge.
type Options struct {
	// Currency is used for new goals that do not name one and for
	// environment-level aggregates.
	Currency string
	// DefaultEnvironment is assumed when a request omits ?environment=.
	DefaultEnvironment string
	// AllowedOrigins configures CORS for the browser frontend.
	AllowedOrigins []string
}

// Server wires handlers and middleware using Chi.
type Server struct {
	svc        goal.Service
	q          query.Service
	store      goal.Store
	repo       query.Repo
	log        *slog.Logger
	rt         *chi.Mux
	currency   string
	defaultEnv string
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by basic request/response logging and panic recovery.
func New(store goal.Store, repo query.Repo, logger *slog.Logger, opts Options) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	s := &Server{
		svc:        goal.New(store),
		q:          query.New(repo),
		store:      store,
		repo:       repo,
		log:        logger,
		rt:         r,
		currency:   opts.Currency,
		defaultEnv: opts.DefaultEnvironment,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints.
func (s *Server) routes() {
	// Goals
	s.rt.Post("/v1/goals", s.postGoal)
	s.rt.Get("/v1/goals", s.listGoals)
	s.rt.Get("/v1/goals/{id}", s.getGoal)
	s.rt.Patch("/v1/goals/{id}", s.patchGoal)
	s.rt.Delete("/v1/goals/{id}", s.deleteGoal)
	s.rt.Post("/v1/goals/{id}/complete", s.completeGoal)
	s.rt.Post("/v1/goals/{id}/recalculate", s.recalculateGoal)
	// Contributions
	s.rt.Post("/v1/goals/{id}/contributions", s.postContribution)
	s.rt.Get("/v1/goals/{id}/contributions", s.listContributions)
	s.rt.Get("/v1/goals/{id}/history", s.goalHistory)
	s.rt.Get("/v1/goals/{id}/banks", s.goalBanks)
	s.rt.Patch("/v1/contributions/{id}", s.patchContribution)
	s.rt.Delete("/v1/contributions/{id}", s.deleteContribution)
	// Withdrawals
	s.rt.Post("/v1/goals/{id}/withdrawals", s.postWithdrawal)
	s.rt.Get("/v1/goals/{id}/withdrawals", s.listWithdrawals)
	s.rt.Post("/v1/withdrawals/{id}/repay", s.repayWithdrawal)
	s.rt.Delete("/v1/withdrawals/{id}", s.deleteWithdrawal)
	s.rt.Get("/v1/withdrawals/pending", s.pendingWithdrawals)
	// Environment-level aggregates and bank moves
	s.rt.Get("/v1/savings/by-bank", s.savingsByBank)
	s.rt.Get("/v1/savings/summary", s.savingsSummary)
	s.rt.Post("/v1/savings/transfer", s.postTransfer)
	// Health (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Get("/metrics", metricsHandler().ServeHTTP)
}

// environment resolves the ?environment= query param with the server default.
func (s *Server) environment(r *http.Request) string {
	if env := r.URL.Query().Get("environment"); env != "" {
		return env
	}
	return s.defaultEnv
}
