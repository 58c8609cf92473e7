// Package viewer serves journaled backtest runs over HTTP for the chart
// front-end.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/internal/logging"
	"github.com/rustyeddy/backtester/journal"
)

// RequestIDHeader carries the request ID; a client-supplied value is kept.
const RequestIDHeader = "X-Request-ID"

// Store is the read side of the journal. *journal.SQLite satisfies it.
type Store interface {
	GetRun(ctx context.Context, runID string) (journal.BacktestRun, error)
	ListRuns(ctx context.Context, limit int) ([]journal.BacktestRun, error)
	ListTradesByRunID(ctx context.Context, runID string) ([]journal.TradeRecord, error)
	ListEquityByRunID(ctx context.Context, runID string) ([]journal.EquitySnapshot, error)
}

// Server is the results API.
type Server struct {
	store     Store
	logger    *zap.Logger
	router    *mux.Router
	startTime time.Time
}

// New creates the server and registers its routes.
func New(store Store, logger *zap.Logger) *Server {
	s := &Server{
		store:     store,
		logger:    logging.OrNop(logger),
		router:    mux.NewRouter(),
		startTime: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/runs", s.handleListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", s.handleGetRun).Methods("GET")
	api.HandleFunc("/runs/{id}/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/runs/{id}/equity", s.handleGetEquity).Methods("GET")
	api.HandleFunc("/runs/{id}/org", s.handleGetOrg).Methods("GET")

	s.router.Use(s.requestID)
}

// Handler returns the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RequestIDHeader},
	}).Handler(s.router)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting viewer", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("stopping viewer")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)),
		)
	})
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleListRuns handles GET /api/runs?limit=N
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []journal.BacktestRun{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// run loads the run named in the path, answering 404 or 500 itself.
func (s *Server) run(w http.ResponseWriter, r *http.Request) (journal.BacktestRun, bool) {
	id := mux.Vars(r)["id"]
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, journal.ErrNotFound) {
		respondError(w, http.StatusNotFound, "run "+id+" not found")
		return run, false
	}
	if err != nil {
		s.internalError(w, "get run", err)
		return run, false
	}
	return run, true
}

// handleGetRun handles GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// handleGetTrades handles GET /api/runs/{id}/trades
func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	trades, err := s.store.ListTradesByRunID(r.Context(), run.RunID)
	if err != nil {
		s.internalError(w, "list trades", err)
		return
	}
	if trades == nil {
		trades = []journal.TradeRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"run_id": run.RunID,
		"trades": trades,
		"count":  len(trades),
	})
}

// handleGetEquity handles GET /api/runs/{id}/equity
func (s *Server) handleGetEquity(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	equity, err := s.store.ListEquityByRunID(r.Context(), run.RunID)
	if err != nil {
		s.internalError(w, "list equity", err)
		return
	}
	if equity == nil {
		equity = []journal.EquitySnapshot{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"run_id": run.RunID,
		"equity": equity,
		"count":  len(equity),
	})
}

// handleGetOrg handles GET /api/runs/{id}/org
func (s *Server) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	trades, err := s.store.ListTradesByRunID(r.Context(), run.RunID)
	if err != nil {
		s.internalError(w, "list trades", err)
		return
	}
	org, err := journal.FormatRunWithTradesOrg(run, trades)
	if err != nil {
		s.internalError(w, "format org", err)
		return
	}
	w.Header().Set("Content-Type", "text/org; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(org))
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("viewer request failed", zap.String("op", op), zap.Error(err))
	respondError(w, http.StatusInternalServerError, op+" failed")
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
