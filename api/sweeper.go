package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/csgonades/nade-api/config"
)

// Purger removes nades that were soft deleted before cutoff.
type Purger interface {
	PurgeDeleted(ctx context.Context, cutoff time.Time) (int, error)
}

// DeletedSweeper periodically purges nades whose soft deletion is older than
// the configured grace period, along with their favorites and comments.
type DeletedSweeper struct {
	nades    Purger
	grace    time.Duration
	interval time.Duration
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewDeletedSweeper creates a sweeper that runs every cfg.SweepInterval.
func NewDeletedSweeper(nades Purger, cfg config.Config) *DeletedSweeper {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &DeletedSweeper{
		nades:    nades,
		grace:    cfg.DeletedGracePeriod,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (s *DeletedSweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Stop signals the sweep loop to stop and waits for it.
func (s *DeletedSweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Sweep runs a single purge pass and returns how many nades were removed.
func (s *DeletedSweeper) Sweep(ctx context.Context) int {
	if s.grace <= 0 {
		return 0 // deleted nades are kept forever
	}
	cutoff := s.now().Add(-s.grace)
	n, err := s.nades.PurgeDeleted(ctx, cutoff)
	if err != nil {
		slog.Warn("deleted nade sweep failed", "error", err, "purged", n)
		return n
	}
	if n > 0 {
		slog.Info("expired deleted nades purged", "count", n)
	}
	return n
}
