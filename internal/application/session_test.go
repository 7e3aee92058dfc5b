package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/originguard/internal/application"
	"github.com/ericfisherdev/originguard/internal/domain/model"
	"github.com/ericfisherdev/originguard/internal/domain/port/driven"
)

func newTestSession(t *testing.T, auth *fakeAuthority, state *fakeStateStore) *application.Session {
	t.Helper()

	rec := &sleepRecorder{}
	var store driven.ClientStateStore
	if state != nil {
		store = state
	}
	s := application.NewSession(auth, store, application.SessionConfig{
		Sync: application.SyncClientConfig{
			Username: "admin",
			Password: "secret",
			Retry:    application.RetryPolicy{Attempts: 3, BaseDelay: time.Second, Sleep: rec.sleep},
		},
		Tier:         model.TierStandard,
		Institutions: []string{"examplebank.com"},
	}, discardLogger())
	t.Cleanup(s.Close)

	require.NoError(t, s.Open(context.Background()))
	return s
}

func TestSession_EnforcerSeesRefreshedSnapshot(t *testing.T) {
	auth := &fakeAuthority{}
	s := newTestSession(t, auth, &fakeStateStore{})

	assert.Equal(t, model.VerdictPendingUserDecision, s.Enforcer.Decide("https://examplebank.com").Verdict)

	require.NoError(t, s.Refresher.RefreshNow(startSession(t, s)))
	assert.Equal(t, model.VerdictAllowed, s.Enforcer.Decide("https://examplebank.com").Verdict)
}

func TestSession_OpenRestoresSnapshot(t *testing.T) {
	state := seededState(time.Minute, "https://restored.example")
	s := newTestSession(t, &fakeAuthority{}, state)

	assert.Equal(t, model.CacheFresh, s.Sync.State())
	assert.Equal(t, model.VerdictAllowed, s.Enforcer.Decide("https://restored.example").Verdict)
}

func TestSession_ApplyTier(t *testing.T) {
	s := newTestSession(t, &fakeAuthority{}, nil)

	var notified model.Capabilities
	s.Enforcer.OnCapabilitiesChange(func(c model.Capabilities) { notified = c })

	s.ApplyTier(model.TierMaximum)
	assert.Equal(t, model.TierMaximum, notified.Tier)
	assert.True(t, s.Enforcer.Capabilities().ScreenCaptureDisabled)

	s.ApplyTier(model.Tier("bogus"))
	assert.Equal(t, model.TierMaximum, s.Enforcer.Tier())
}

// startSession runs the session in the background for the rest of the test.
func startSession(t *testing.T, s *application.Session) context.Context {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return context.Background()
}
