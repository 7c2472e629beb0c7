package scheduler

import (
	"context"
	"sync"
	"time"
)

// Cron runs the assignment pass and the close sweep once per day, each at
// its configured hour. The minute ticker tolerates process restarts: a run
// is keyed by date, so missing a tick only delays the run to the next one.
type Cron struct {
	mu        sync.RWMutex
	scheduler *Scheduler
	assignAt  int // hour of day, UTC
	closeAt   int
	interval  time.Duration
	cancel    context.CancelFunc
	done      chan struct{}

	lastAssign string // date of the last run, "2006-01-02"
	lastClose  string
}

func NewCron(s *Scheduler, assignHour, closeHour int) *Cron {
	return &Cron{
		scheduler: s,
		assignAt:  assignHour,
		closeAt:   closeHour,
		interval:  60 * time.Second,
	}
}

// Start begins the cron loop.
func (c *Cron) Start(ctx context.Context) {
	c.mu.Lock()
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.tick(ctx, time.Now().UTC())
			}
		}
	}()
}

// Stop gracefully stops the cron loop.
func (c *Cron) Stop() {
	c.mu.RLock()
	cancel := c.cancel
	done := c.done
	c.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (c *Cron) tick(ctx context.Context, now time.Time) {
	day := now.Format("2006-01-02")

	if now.Hour() >= c.assignAt && c.lastAssign != day {
		c.lastAssign = day
		c.scheduler.RunPass(ctx, now)
	}
	if now.Hour() >= c.closeAt && c.lastClose != day {
		c.lastClose = day
		if _, err := c.scheduler.CloseOverdue(ctx, now); err != nil {
			c.scheduler.logger.Error("close sweep failed", "error", err)
		}
	}
}
