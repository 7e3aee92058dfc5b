package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/originguard/internal/domain/model"
	"github.com/ericfisherdev/originguard/internal/domain/port/driven"
)

// ErrServedFallback marks a result that came from an expired snapshot or the
// configured fallback domain list because the authority could not be reached.
var ErrServedFallback = errors.New("serving last-resort allow-list")

// FallbackError is returned by GetAllowList when no usable snapshot exists and
// the authority could not be reached. Origins carries the last-resort list,
// which may be empty. Err is the refresh failure.
type FallbackError struct {
	Origins []string
	State   model.CacheState
	Err     error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%v (%s cache, %d last-resort origins): %v", ErrServedFallback, e.State, len(e.Origins), e.Err)
}

// Unwrap exposes both ErrServedFallback and the underlying failure to errors.Is.
func (e *FallbackError) Unwrap() []error {
	return []error{ErrServedFallback, e.Err}
}

// SyncClientConfig holds the settings for a SyncClient.
type SyncClientConfig struct {
	Username string
	Password string

	// FallbackDomains is served as a last resort when neither the authority
	// nor any snapshot is available. Empty means no fallback.
	FallbackDomains []string

	Retry RetryPolicy
}

const (
	refreshKey = "allowlist"
	loginKey   = "login"
)

// SyncClient keeps a local snapshot of the authority's allow-list and makes it
// available to the policy engine. Concurrent refreshes are collapsed into one
// request. The snapshot and credential are swapped atomically and persisted
// through the optional state store.
type SyncClient struct {
	authority driven.AuthorityClient
	state     driven.ClientStateStore
	cfg       SyncClientConfig
	logger    *slog.Logger
	now       func() time.Time

	snapshot atomic.Pointer[model.Snapshot]
	token    atomic.Pointer[model.Token]
	group    singleflight.Group

	// ctx bounds background refreshes; it is canceled by Close.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSyncClient creates a SyncClient. state may be nil, in which case nothing
// is persisted.
func NewSyncClient(authority driven.AuthorityClient, state driven.ClientStateStore, cfg SyncClientConfig, logger *slog.Logger) *SyncClient {
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &SyncClient{
		authority: authority,
		state:     state,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Restore loads the persisted snapshot and credential, if any. A credential
// that cannot be decrypted is ignored.
func (c *SyncClient) Restore(ctx context.Context) error {
	if c.state == nil {
		return nil
	}

	snap, err := c.state.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	if snap != nil {
		c.snapshot.Store(snap)
		c.logger.Info("restored allow-list snapshot",
			"origins", len(snap.Origins),
			"state", snap.State(c.now()).String(),
		)
	}

	token, err := c.state.LoadToken(ctx)
	switch {
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		c.logger.Debug("credential persistence disabled, no state key")
	case err != nil:
		c.logger.Warn("ignoring unreadable stored credential", "error", err)
	case token != nil && token.Valid(c.now()):
		c.token.Store(token)
	}

	return nil
}

// Close cancels any in-flight background refresh.
func (c *SyncClient) Close() {
	c.cancel()
}

// GetAllowList returns the allow-list. A fresh snapshot is returned without
// network access unless forceRefresh is set. Otherwise the authority is
// queried; on failure a snapshot within the grace window is served instead.
// If no usable snapshot exists a *FallbackError is returned.
//
// If ctx ends before the refresh completes, a usable snapshot is returned if
// one exists; otherwise ctx.Err() is returned. The refresh itself continues
// and its result is committed for later callers.
func (c *SyncClient) GetAllowList(ctx context.Context, forceRefresh bool) ([]string, error) {
	if !forceRefresh {
		if snap := c.snapshot.Load(); snap.State(c.now()) == model.CacheFresh {
			return snap.List(), nil
		}
	}

	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.refresh(c.ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return c.serveCached(res.Err)
		}
		origins := res.Val.([]string)
		return append([]string(nil), origins...), nil
	case <-ctx.Done():
		if snap := c.snapshot.Load(); snap.State(c.now()).Usable() {
			c.logger.Warn("allow-list refresh timed out, serving cached snapshot", "error", ctx.Err())
			return snap.List(), nil
		}
		return nil, fmt.Errorf("get allow-list: %w", ctx.Err())
	}
}

// Current returns the best origins available without network access and the
// state of the snapshot they came from. An expired snapshot is still returned;
// with no snapshot at all the fallback domain list is used.
func (c *SyncClient) Current() ([]string, model.CacheState) {
	snap := c.snapshot.Load()
	if snap == nil {
		return append([]string(nil), c.cfg.FallbackDomains...), model.CacheEmpty
	}
	return snap.List(), snap.State(c.now())
}

// State returns the current cache state.
func (c *SyncClient) State() model.CacheState {
	return c.snapshot.Load().State(c.now())
}

// refresh fetches the list, re-authenticating once if the credential is rejected.
func (c *SyncClient) refresh(ctx context.Context) ([]string, error) {
	// The credential is checked before every attempt since backoff can
	// outlast it. A failed sign-in ends the retry loop.
	var signInErr error
	origins, err := retryDo(ctx, c.cfg.Retry, func(ctx context.Context) ([]string, error) {
		token, err := c.ensureToken(ctx)
		if err != nil {
			signInErr = err
			return nil, permanent(err)
		}
		return c.authority.List(ctx, token.Value)
	})
	if signInErr != nil {
		return nil, signInErr
	}
	if errors.Is(err, driven.ErrUnauthorized) {
		c.logger.Info("authority rejected credential, signing in again")
		c.token.Store(nil)

		token, err := c.login(ctx)
		if err != nil {
			return nil, err
		}
		origins, err = c.authority.List(ctx, token.Value)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch allow-list: %w", err)
	}

	snap := model.NewSnapshot(origins, c.now())
	c.snapshot.Store(snap)
	c.persistSnapshot(ctx, snap)

	c.logger.Info("allow-list refreshed", "origins", len(origins))
	return snap.List(), nil
}

// serveCached resolves a failed refresh against the committed snapshot.
func (c *SyncClient) serveCached(refreshErr error) ([]string, error) {
	snap := c.snapshot.Load()
	state := snap.State(c.now())

	if state.Usable() {
		c.logger.Warn("allow-list refresh failed, serving cached snapshot",
			"state", state.String(),
			"fetched_at", snap.FetchedAt,
			"error", refreshErr,
		)
		return snap.List(), nil
	}

	origins, _ := c.Current()
	c.logger.Error("allow-list unavailable",
		"state", state.String(),
		"last_resort_origins", len(origins),
		"error", refreshErr,
	)
	return nil, &FallbackError{Origins: origins, State: state, Err: refreshErr}
}

// ensureToken returns the current credential, signing in if there is none
// or it has expired.
func (c *SyncClient) ensureToken(ctx context.Context) (*model.Token, error) {
	if token := c.token.Load(); token.Valid(c.now()) {
		return token, nil
	}
	return c.login(ctx)
}

// login signs in with retry. Concurrent callers share one attempt, which runs
// under the client's context so one caller giving up does not fail the rest.
func (c *SyncClient) login(ctx context.Context) (*model.Token, error) {
	ch := c.group.DoChan(loginKey, func() (any, error) {
		token, err := retryDo(c.ctx, c.cfg.Retry, func(ctx context.Context) (model.Token, error) {
			return c.authority.Login(ctx, c.cfg.Username, c.cfg.Password)
		})
		if err != nil {
			return nil, fmt.Errorf("sign in: %w", err)
		}

		c.token.Store(&token)
		c.persistToken(c.ctx, token)
		return &token, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.Token), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("sign in: %w", ctx.Err())
	}
}

// Login signs in now, replacing any held credential.
func (c *SyncClient) Login(ctx context.Context) (model.Token, error) {
	c.token.Store(nil)
	token, err := c.login(ctx)
	if err != nil {
		return model.Token{}, err
	}
	return *token, nil
}

// Logout discards the credential from memory and storage.
func (c *SyncClient) Logout(ctx context.Context) error {
	c.token.Store(nil)
	if c.state == nil {
		return nil
	}
	if err := c.state.ClearToken(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// AddOrigin adds an origin through the authority.
func (c *SyncClient) AddOrigin(ctx context.Context, origin string) (model.Entry, error) {
	return c.mutate(ctx, func(ctx context.Context, token string) (model.Entry, error) {
		return c.authority.Add(ctx, token, origin)
	})
}

// UpdateOrigin replaces oldOrigin with newOrigin through the authority.
func (c *SyncClient) UpdateOrigin(ctx context.Context, oldOrigin, newOrigin string) (model.Entry, error) {
	return c.mutate(ctx, func(ctx context.Context, token string) (model.Entry, error) {
		return c.authority.Update(ctx, token, oldOrigin, newOrigin)
	})
}

// RemoveOrigin removes an origin through the authority.
func (c *SyncClient) RemoveOrigin(ctx context.Context, origin string) (model.Entry, error) {
	return c.mutate(ctx, func(ctx context.Context, token string) (model.Entry, error) {
		return c.authority.Remove(ctx, token, origin)
	})
}

// mutate runs an admin call with the same single re-login discipline as the
// list fetch. Mutations are not retried on transient failure since a lost
// response would make the retry report a conflict.
func (c *SyncClient) mutate(ctx context.Context, op func(ctx context.Context, token string) (model.Entry, error)) (model.Entry, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return model.Entry{}, err
	}

	entry, err := op(ctx, token.Value)
	if errors.Is(err, driven.ErrUnauthorized) {
		c.token.Store(nil)
		if token, err = c.login(ctx); err != nil {
			return model.Entry{}, err
		}
		entry, err = op(ctx, token.Value)
	}
	if err != nil {
		return model.Entry{}, err
	}

	c.invalidate(ctx)
	return entry, nil
}

// invalidate marks a fresh snapshot stale so the next read, in this process
// or the next one, refetches. The snapshot is aged only to the freshness
// boundary; a snapshot that is already stale keeps its place in the grace
// window.
func (c *SyncClient) invalidate(ctx context.Context) {
	snap := c.snapshot.Load()
	now := c.now()
	if snap.State(now) != model.CacheFresh {
		return
	}
	stale := model.NewSnapshot(snap.Origins, now.Add(-model.FreshFor))
	if c.snapshot.CompareAndSwap(snap, stale) {
		c.persistSnapshot(ctx, stale)
	}
}

func (c *SyncClient) persistSnapshot(ctx context.Context, snap *model.Snapshot) {
	if c.state == nil {
		return
	}
	if err := c.state.SaveSnapshot(ctx, snap); err != nil {
		c.logger.Error("failed to persist allow-list snapshot", "error", err)
	}
}

func (c *SyncClient) persistToken(ctx context.Context, token model.Token) {
	if c.state == nil {
		return
	}
	err := c.state.SaveToken(ctx, token)
	switch {
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		c.logger.Debug("credential not persisted, no state key")
	case err != nil:
		c.logger.Error("failed to persist credential", "error", err)
	}
}
