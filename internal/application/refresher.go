package application

import (
	"context"
	"log/slog"
	"time"
)

// AllowListFetcher is the part of SyncClient the Refresher drives.
type AllowListFetcher interface {
	GetAllowList(ctx context.Context, forceRefresh bool) ([]string, error)
}

// refreshRequest represents a manual refresh trigger.
type refreshRequest struct {
	done chan error
}

// Refresher keeps the allow-list snapshot warm by refreshing it on an
// interval, and serializes manual refresh requests with the periodic ones.
type Refresher struct {
	client    AllowListFetcher
	interval  time.Duration
	logger    *slog.Logger
	refreshCh chan refreshRequest
}

// NewRefresher creates a Refresher that refreshes every interval.
func NewRefresher(client AllowListFetcher, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		client:    client,
		interval:  interval,
		logger:    logger,
		refreshCh: make(chan refreshRequest),
	}
}

// Start runs an immediate refresh, then refreshes on the configured interval
// and serves manual requests. Start blocks until the context is canceled.
func (r *Refresher) Start(ctx context.Context) {
	r.refresh(ctx, false)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx, false)
		case req := <-r.refreshCh:
			req.done <- r.refresh(ctx, true)
		}
	}
}

// RefreshNow forces a refresh, bypassing the interval. It blocks until the
// refresh completes or the context is canceled.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	req := refreshRequest{done: make(chan error, 1)}

	select {
	case r.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refresher) refresh(ctx context.Context, force bool) error {
	start := time.Now()

	origins, err := r.client.GetAllowList(ctx, force)
	if err != nil {
		r.logger.Error("allow-list refresh cycle failed", "forced", force, "error", err)
		return err
	}

	r.logger.Debug("allow-list refresh cycle complete",
		"forced", force,
		"origins", len(origins),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
