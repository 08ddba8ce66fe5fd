package bot

import (
	"context"
	"time"

	"github.com/rfdyn/acsbot/internal/logging"
	"github.com/sirupsen/logrus"
)

// Runner is the single event loop of a bot process. Chat updates and
// presence poll ticks are handled one at a time, each to completion.
type Runner struct {
	bot      *Bot
	updates  <-chan Update
	interval time.Duration
	log      *logrus.Entry
}

// NewRunner creates a loop over updates. A zero interval disables periodic
// presence polling; Update.Poll still triggers one.
func NewRunner(b *Bot, updates <-chan Update, interval time.Duration) *Runner {
	return &Runner{
		bot:      b,
		updates:  updates,
		interval: interval,
		log:      logging.NewLogger("runner"),
	}
}

// Run blocks until ctx is cancelled or the update channel is closed.
func (r *Runner) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	r.log.WithField("poll_interval", r.interval).Info("Event loop started")

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Event loop stopped")
			return ctx.Err()

		case u, ok := <-r.updates:
			if !ok {
				r.log.Info("Update stream closed")
				return nil
			}
			if err := r.bot.Handle(ctx, u); err != nil {
				r.log.WithError(err).Warn("Update handling failed")
			}
			if u.Done != nil {
				close(u.Done)
			}

		case <-tick:
			if _, err := r.bot.Poll(ctx); err != nil {
				r.log.WithError(err).Warn("Presence poll had delivery failures")
			}
		}
	}
}
