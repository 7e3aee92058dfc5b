package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/originguard/internal/domain/model"
	"github.com/ericfisherdev/originguard/internal/domain/port/driven"
)

// SessionConfig holds everything needed to build a client Session.
type SessionConfig struct {
	Sync            SyncClientConfig
	Tier            model.Tier
	Institutions    []string
	RefreshInterval time.Duration
}

// Session is the per-process client object. It owns the sync client, the
// policy enforcer and the background refresher and is passed by reference to
// every caller instead of living in a global.
type Session struct {
	Sync      *SyncClient
	Enforcer  *Enforcer
	Refresher *Refresher

	logger *slog.Logger
}

// NewSession wires a Session. state may be nil.
func NewSession(authority driven.AuthorityClient, state driven.ClientStateStore, cfg SessionConfig, logger *slog.Logger) *Session {
	syncClient := NewSyncClient(authority, state, cfg.Sync, logger)
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = model.FreshFor
	}

	return &Session{
		Sync:      syncClient,
		Enforcer:  NewEnforcer(syncClient, cfg.Tier, cfg.Institutions, logger),
		Refresher: NewRefresher(syncClient, interval, logger),
		logger:    logger,
	}
}

// Open restores persisted state. It must be called before first use.
func (s *Session) Open(ctx context.Context) error {
	if err := s.Sync.Restore(ctx); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	return nil
}

// Run keeps the allow-list fresh until ctx is canceled.
func (s *Session) Run(ctx context.Context) {
	s.logger.Info("session running",
		"tier", string(s.Enforcer.Tier()),
		"cache_state", s.Sync.State().String(),
	)
	s.Refresher.Start(ctx)
}

// ApplyTier is the callback for tier changes coming from outside the session,
// such as another process rewriting the config file.
func (s *Session) ApplyTier(tier model.Tier) {
	if err := s.Enforcer.SetTier(tier); err != nil {
		s.logger.Error("ignoring tier change", "tier", string(tier), "error", err)
	}
}

// Close cancels in-flight network work.
func (s *Session) Close() {
	s.Sync.Close()
}
