package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"laundry-booking-backend/config"
	"laundry-booking-backend/internal/booking"
)

// ErrSweepInProgress is returned by RunOnce while another run holds the guard.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Sweeper advances reservations by wall-clock time.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (booking.SweepReport, error)
}

// Status describes the most recent run.
type Status struct {
	LastRun    time.Time           `json:"last_run"`
	LastReport booking.SweepReport `json:"last_report"`
	LastError  string              `json:"last_error,omitempty"`
	Runs       int                 `json:"runs"`
}

// Service runs the lifecycle sweep on a fixed interval.
type Service struct {
	cfg     *config.SweepConfig
	sweeper Sweeper
	now     func() time.Time
	log     *zap.Logger

	running sync.Mutex // held for the duration of one run

	mu     sync.Mutex
	status Status
}

// NewService creates a sweep service.
func NewService(cfg *config.SweepConfig, s Sweeper, log *zap.Logger) *Service {
	return &Service{
		cfg:     cfg,
		sweeper: s,
		now:     time.Now,
		log:     log,
	}
}

// Run sweeps once, then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("sweep is disabled, not starting")
		return
	}
	s.log.Info("starting sweep service", zap.Duration("interval", s.cfg.Interval))

	s.runLogged(ctx)

	cl := cronLogger{log: s.log.Named("cron")}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Interval), func() { s.runLogged(ctx) }); err != nil {
		s.log.Error("failed to schedule sweep", zap.Error(err))
		return
	}
	c.Start()

	<-ctx.Done()
	s.log.Info("sweep service shutting down")
	<-c.Stop().Done()
}

func (s *Service) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
		s.log.Error("sweep failed", zap.Error(err))
	}
}

// RunOnce performs one sweep. It does not wait for a run already in progress.
func (s *Service) RunOnce(ctx context.Context) (booking.SweepReport, error) {
	if !s.running.TryLock() {
		return booking.SweepReport{}, ErrSweepInProgress
	}
	defer s.running.Unlock()

	// A run must finish well before the next tick.
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Interval)
	defer cancel()

	now := s.now()
	report, err := s.sweeper.Sweep(ctx, now)

	s.mu.Lock()
	s.status.LastRun = now
	s.status.LastReport = report
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.status.Runs++
	s.mu.Unlock()

	if report != (booking.SweepReport{}) {
		s.log.Info("sweep finished",
			zap.Int("reminded", report.Reminded),
			zap.Int("expired", report.Expired),
			zap.Int("errors", report.Errors),
		)
	}
	return report, err
}

// Status returns the outcome of the last run.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
