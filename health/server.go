package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"nobroker_watchdog/scheduler"
)

// Server exposes process liveness at GET /health. It reports the
// scheduler's state and last-run timestamp; it is not part of the
// matching core.
type Server struct {
	httpServer *http.Server
	sched      *scheduler.Scheduler
}

func NewServer(port int, sched *scheduler.Scheduler) *Server {
	s := &Server{sched: sched}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.sched.Status()

	var lastRunTS *int64
	if status.LastRunAt != nil {
		ts := status.LastRunAt.Unix()
		lastRunTS = &ts
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"state":       status.State,
		"last_run_ts": lastRunTS,
	})
}

func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
