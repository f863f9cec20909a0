package practice

import (
	"context"
	"log/slog"
	"time"
)

// Runner drives a session's clock from a tick source and raises the
// time's-up notification on auto-submit.
type Runner struct {
	Notifier Notifier
}

// Run consumes ticks until the session is submitted (by hand or by the
// clock), the tick channel closes or ctx ends. It returns true if the clock
// submitted the session.
func (r Runner) Run(ctx context.Context, s *Session, ticks <-chan time.Time) bool {
	for {
		if s.Status() != StatusRunning {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case now, ok := <-ticks:
			if !ok {
				return false
			}
			if !s.Tick(now) {
				continue
			}
			slog.Info("practice test auto-submitted", "paper_id", s.paper.ID)
			if r.Notifier != nil {
				if err := r.Notifier.Notify(ctx, TimeUp); err != nil {
					slog.Warn("time's up notification failed", "paper_id", s.paper.ID, "error", err)
				}
			}
			return true
		}
	}
}

// RunWithClock runs s against a one-second ticker.
func (r Runner) RunWithClock(ctx context.Context, s *Session) bool {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	return r.Run(ctx, s, ticker.C)
}
