package application_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/originguard/internal/domain/model"
	"github.com/ericfisherdev/originguard/internal/domain/port/driven"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Authority ---

type fakeAuthority struct {
	mu         sync.Mutex
	loginCalls int
	listCalls  int
	mutations  int

	login  func(n int) (model.Token, error)
	list   func(n int, token string) ([]string, error)
	mutate func(n int, token string) (model.Entry, error)
}

func validToken(n int) model.Token {
	return model.Token{
		Value:     fmt.Sprintf("token-%d", n),
		ExpiresIn: "1h",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func (f *fakeAuthority) Login(_ context.Context, _, _ string) (model.Token, error) {
	f.mu.Lock()
	f.loginCalls++
	n := f.loginCalls
	fn := f.login
	f.mu.Unlock()

	if fn == nil {
		return validToken(n), nil
	}
	return fn(n)
}

func (f *fakeAuthority) List(_ context.Context, token string) ([]string, error) {
	f.mu.Lock()
	f.listCalls++
	n := f.listCalls
	fn := f.list
	f.mu.Unlock()

	if fn == nil {
		return []string{"https://examplebank.com"}, nil
	}
	return fn(n, token)
}

func (f *fakeAuthority) doMutate(token, origin string) (model.Entry, error) {
	f.mu.Lock()
	f.mutations++
	n := f.mutations
	fn := f.mutate
	f.mu.Unlock()

	if fn == nil {
		return model.Entry{ID: int64(n), Origin: origin, AddedBy: "admin"}, nil
	}
	return fn(n, token)
}

func (f *fakeAuthority) Add(_ context.Context, token, origin string) (model.Entry, error) {
	return f.doMutate(token, origin)
}

func (f *fakeAuthority) Update(_ context.Context, token, _, newOrigin string) (model.Entry, error) {
	return f.doMutate(token, newOrigin)
}

func (f *fakeAuthority) Remove(_ context.Context, token, origin string) (model.Entry, error) {
	return f.doMutate(token, origin)
}

func (f *fakeAuthority) counts() (logins, lists int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.listCalls
}

// --- Client state ---

type fakeStateStore struct {
	mu       sync.Mutex
	snapshot *model.Snapshot
	token    *model.Token
	noKey    bool
	saves    int
	cleared  bool
}

func (s *fakeStateStore) SaveSnapshot(_ context.Context, snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	s.saves++
	return nil
}

func (s *fakeStateStore) LoadSnapshot(_ context.Context) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, nil
}

func (s *fakeStateStore) SaveToken(_ context.Context, token model.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noKey {
		return driven.ErrEncryptionKeyNotSet
	}
	s.token = &token
	return nil
}

func (s *fakeStateStore) LoadToken(_ context.Context) (*model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noKey {
		return nil, driven.ErrEncryptionKeyNotSet
	}
	return s.token, nil
}

func (s *fakeStateStore) ClearToken(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
	s.cleared = true
	return nil
}

// --- Retry timing ---

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}
