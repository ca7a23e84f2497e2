// Package scheduler drives digest delivery: a periodic tick scans every
// user's delivery window and flushes the digest queues that are due.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/fieldops/visitwatch/internal/service"
	"github.com/fieldops/visitwatch/internal/state"
)

// Config holds the scheduler configuration.
type Config struct {
	Users   *state.UserStore
	Digests service.DigestService
	// TickInterval is how often delivery windows are evaluated. The tick
	// must fire at least twice per tolerance span or a window can be
	// stepped over entirely.
	TickInterval time.Duration
	// WindowTolerance is how far either side of a user's delivery time
	// still counts as "due". Covers tick granularity and restart gaps.
	WindowTolerance time.Duration
	Logger          *slog.Logger
}

// Scheduler owns the gocron instance behind the digest tick.
type Scheduler struct {
	cron    gocron.Scheduler
	cfg     Config
	logger  *slog.Logger
	mu      sync.Mutex
	fired   map[string]string // userID → local date of last flush
	running bool
}

// New creates a Scheduler. It does not start ticking until Start is called.
func New(cfg Config) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 2 * time.Minute
	}
	if cfg.WindowTolerance <= 0 {
		cfg.WindowTolerance = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron,
		cfg:    cfg,
		logger: logger,
		fired:  make(map[string]string),
	}, nil
}

// Start registers the digest tick and starts gocron.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	_, err := s.cron.NewJob(
		gocron.DurationJob(s.cfg.TickInterval),
		gocron.NewTask(func() {
			s.RunDigestTick(ctx, time.Now())
		}),
	)
	if err != nil {
		return fmt.Errorf("scheduling digest tick: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("digest scheduler started",
		"tick_interval", s.cfg.TickInterval.String(),
		"window_tolerance", s.cfg.WindowTolerance.String())
	return nil
}

// Stop shuts down the gocron scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	return s.cron.Shutdown()
}
