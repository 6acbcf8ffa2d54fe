package achievements

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/PEED-Project/peed_backend/internal/app/metrics"
	"github.com/PEED-Project/peed_backend/internal/app/system"
	"github.com/PEED-Project/peed_backend/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// Refresher re-evaluates every user's achievements on a cron schedule so
// streak progress follows the calendar even on days without training.
type Refresher struct {
	service  *Service
	log      *logger.Logger
	schedule string
	loc      *time.Location
	timeout  time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewRefresher creates a lifecycle-managed achievement refresher. An empty
// schedule yields a refresher whose Start is a no-op.
func NewRefresher(service *Service, schedule string, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("achievement-refresher")
	}
	loc := time.Local
	if service != nil && service.loc != nil {
		loc = service.loc
	}
	return &Refresher{
		service:  service,
		log:      log,
		schedule: strings.TrimSpace(schedule),
		loc:      loc,
		timeout:  5 * time.Minute,
	}
}

func (r *Refresher) Name() string { return "achievement-refresher" }

// Validate checks the cron expression without starting anything.
func (r *Refresher) Validate() error {
	if r.schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("ACHIEVEMENT_REFRESH_CRON %q: %w", r.schedule, err)
	}
	return nil
}

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	if r.schedule == "" || r.service == nil {
		r.log.Info("achievement refresher disabled")
		return nil
	}

	c := cron.New(
		cron.WithLocation(r.loc),
		cron.WithLogger(cron.PrintfLogger(r.log.Logger)),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(r.schedule, r.tick); err != nil {
		return fmt.Errorf("schedule achievement refresh: %w", err)
	}
	c.Start()

	r.cron = c
	r.running = true
	r.log.WithField("schedule", r.schedule).Info("achievement refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	c := r.cron
	r.cron = nil
	r.running = false
	r.mu.Unlock()

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("achievement refresher stopped")
	return nil
}

func (r *Refresher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	started := time.Now()
	unlocked, err := r.service.RefreshAll(ctx)
	metrics.RecordRefresh(time.Since(started), err == nil)
	if err != nil {
		r.log.WithError(err).Warn("achievement refresh tick failed")
		return
	}
	r.log.WithField("unlocked", unlocked).
		WithField("elapsed", time.Since(started).String()).
		Info("achievement refresh completed")
}
