package apiapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/phillip-england/staffplan/internal/middleware"
	"github.com/phillip-england/staffplan/internal/planner"
)

const maxUploadBytes = 20 << 20

type Config struct {
	Addr string
}

type server struct {
	svc    planner.Service
	logger *zap.Logger
}

// NewHandler returns the full API, middleware included.
func NewHandler(svc planner.Service, logger *zap.Logger) http.Handler {
	s := &server{svc: svc, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/api/health", s.health).Methods(http.MethodGet)

	plans := r.PathPrefix("/api/plans/{location}").Subrouter()
	plans.HandleFunc("", s.getPlan).Methods(http.MethodGet)
	plans.HandleFunc("/build", s.buildPlan).Methods(http.MethodPost)
	plans.HandleFunc("/settings", s.updateSettings).Methods(http.MethodPut)
	plans.HandleFunc("/export", s.exportPlan).Methods(http.MethodGet)
	plans.HandleFunc("/pto-conflicts", s.ptoConflicts).Methods(http.MethodGet)
	plans.HandleFunc("/days/{date}/slots", s.addSlot).Methods(http.MethodPost)
	plans.HandleFunc("/days/{date}/slots/{slotID}", s.updateSlot).Methods(http.MethodPut)
	plans.HandleFunc("/days/{date}/slots/{slotID}", s.removeSlot).Methods(http.MethodDelete)
	plans.HandleFunc("/days/{date}/note", s.setNote).Methods(http.MethodPut)
	plans.HandleFunc("/days/{date}/copy", s.copyDay).Methods(http.MethodPost)
	plans.HandleFunc("/days/{date}/recommendation", s.recommendation).Methods(http.MethodGet)
	plans.HandleFunc("/days/{date}/recommendation/accept", s.acceptRecommendation).Methods(http.MethodPost)
	plans.HandleFunc("/days/{date}/requests", s.submitDayRequest).Methods(http.MethodPost)
	plans.HandleFunc("/requests/{id}/approve", s.decideRequest(true)).Methods(http.MethodPost)
	plans.HandleFunc("/requests/{id}/reject", s.decideRequest(false)).Methods(http.MethodPost)
	plans.HandleFunc("/next-week/submit", s.submitNextWeek).Methods(http.MethodPost)
	plans.HandleFunc("/next-week/decide", s.decideNextWeek).Methods(http.MethodPost)

	r.HandleFunc("/api/triggers/profile", s.applyProfile).Methods(http.MethodPut)
	r.HandleFunc("/api/triggers/{location}", s.triggerReport).Methods(http.MethodGet)
	r.HandleFunc("/api/triggers/{location}/{transition}/{index:[0-9]+}", s.setThreshold).Methods(http.MethodPut)

	r.HandleFunc("/api/metrics/import", s.importMetrics).Methods(http.MethodPost)
	r.HandleFunc("/api/sync", s.syncStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/sync/{feed}", s.syncFeed).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	csp := strings.Join([]string{
		"default-src 'none'",
		"frame-ancestors 'none'",
	}, "; ")

	return middleware.Chain(
		r,
		middleware.RequestLogger(logger),
		middleware.Recoverer(logger),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{ContentSecurityPolicy: csp}),
	)
}

func Run(ctx context.Context, cfg Config, svc planner.Service, logger *zap.Logger) error {
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(svc, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("addr", cfg.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"feeds":  s.svc.SyncStatus(),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
