package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// State is the scheduler's explicit phase. One scheduling loop owns it;
// readers get snapshots through Status().
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Status is a read-only snapshot for the health endpoint.
type Status struct {
	State     State      `json:"state"`
	LastRunAt *time.Time `json:"last_run_at"`
	LastError string     `json:"last_error,omitempty"`
}

// CycleFunc runs one full fetch+match cycle.
type CycleFunc func(ctx context.Context) error

// Scheduler drives periodic cycles on a fixed interval or a cron
// expression. Overlapping cycles are disallowed: a tick that lands while
// a cycle is still running is dropped, not queued. Every cycle runs
// under a fail-safe timeout that cancels in-flight fetch/dispatch work.
type Scheduler struct {
	run          CycleFunc
	interval     time.Duration
	cronExpr     string
	cycleTimeout time.Duration

	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}

	mu        sync.Mutex
	running   bool
	state     State
	lastRunAt *time.Time
	lastError string
}

func New(run CycleFunc, interval time.Duration, cronExpr string, cycleTimeout time.Duration) *Scheduler {
	if cycleTimeout <= 0 {
		cycleTimeout = 10 * time.Minute
	}
	return &Scheduler{
		run:          run,
		interval:     interval,
		cronExpr:     cronExpr,
		cycleTimeout: cycleTimeout,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
		state:        StateIdle,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cronExpr != "" {
		log.Printf("Starting scheduler with cron: %s", s.cronExpr)
		_, err := s.cron.AddFunc(s.cronExpr, func() { s.RunCycle(ctx) })
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		return nil
	}

	if s.interval <= 0 {
		return fmt.Errorf("no schedule configured: need an interval or a cron expression")
	}

	log.Printf("Starting scheduler with interval: %s", s.interval)
	s.ticker = time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.RunCycle(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// RunCycle executes one cycle now, unless one is already in flight, in
// which case the request is dropped. Returns whether the cycle ran.
func (s *Scheduler) RunCycle(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Println("Cycle still running, tick dropped")
		return false
	}
	s.running = true
	s.state = StateRunning
	s.mu.Unlock()

	cycleCtx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	err := s.run(cycleCtx)
	cancel()

	now := time.Now()
	s.mu.Lock()
	s.running = false
	s.state = StateIdle
	s.lastRunAt = &now
	if err != nil {
		s.lastError = err.Error()
		log.Printf("Cycle error: %v", err)
	} else {
		s.lastError = ""
	}
	s.mu.Unlock()
	return true
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:     s.state,
		LastRunAt: s.lastRunAt,
		LastError: s.lastError,
	}
}
