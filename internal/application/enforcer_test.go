package application_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/originguard/internal/application"
	"github.com/ericfisherdev/originguard/internal/domain/model"
)

type staticSource struct {
	origins []string
	state   model.CacheState
}

func (s staticSource) Current() ([]string, model.CacheState) {
	return s.origins, s.state
}

func newTestEnforcer(tier model.Tier) *application.Enforcer {
	source := staticSource{
		origins: []string{"https://examplebank.com", "http://legacy.example:8080", "creditunion.example"},
		state:   model.CacheFresh,
	}
	institutions := []string{"examplebank.com", "othertrust.example"}
	return application.NewEnforcer(source, tier, institutions, discardLogger())
}

func TestEnforcer_Decide(t *testing.T) {
	tests := []struct {
		name    string
		tier    model.Tier
		target  string
		verdict model.Verdict
		reason  model.Reason
	}{
		{"listed https", model.TierStandard, "https://examplebank.com/login", model.VerdictAllowed, model.ReasonNone},
		{"listed subdomain", model.TierMaximum, "https://online.examplebank.com/", model.VerdictAllowed, model.ReasonNone},
		{"bare domain entry", model.TierStandard, "https://www.creditunion.example", model.VerdictAllowed, model.ReasonNone},
		{"host case ignored", model.TierStandard, "https://ExampleBank.COM", model.VerdictAllowed, model.ReasonNone},
		{"http blocked at standard", model.TierStandard, "http://examplebank.com", model.VerdictBlocked, model.ReasonProtocolViolation},
		{"http blocked at maximum", model.TierMaximum, "http://examplebank.com", model.VerdictBlocked, model.ReasonProtocolViolation},
		{"http allowed at basic", model.TierBasic, "http://legacy.example:8080/app", model.VerdictAllowed, model.ReasonNone},
		{"unlisted needs confirmation", model.TierStandard, "https://news.example", model.VerdictPendingUserDecision, model.ReasonUntrustedOrigin},
		{"label boundary enforced", model.TierStandard, "https://evil-examplebank.com", model.VerdictPendingUserDecision, model.ReasonUntrustedOrigin},
		{"suffix spoof", model.TierStandard, "https://examplebank.com.attacker.net", model.VerdictPendingUserDecision, model.ReasonUntrustedOrigin},
		{"non web scheme", model.TierBasic, "javascript:alert(1)", model.VerdictBlocked, model.ReasonMalformedTarget},
		{"empty target", model.TierBasic, "", model.VerdictBlocked, model.ReasonMalformedTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestEnforcer(tt.tier).Decide(tt.target)
			assert.Equal(t, tt.verdict, d.Verdict)
			assert.Equal(t, tt.reason, d.Reason)
			if tt.verdict != model.VerdictAllowed {
				assert.NotEmpty(t, d.Message)
			}
		})
	}
}

func TestNavigation_StateTransitions(t *testing.T) {
	e := newTestEnforcer(model.TierStandard)

	allowed := e.Navigate("https://examplebank.com")
	assert.Equal(t, application.NavAllowed, allowed.State())
	assert.True(t, allowed.State().Terminal())

	blocked := e.Navigate("http://examplebank.com")
	assert.Equal(t, application.NavBlocked, blocked.State())

	pending := e.Navigate("https://unknown.example")
	assert.Equal(t, application.NavPendingUserDecision, pending.State())
	assert.False(t, pending.State().Terminal())
	assert.Equal(t, "unknown.example", pending.Host)
}

func TestNavigation_ResolveAllow(t *testing.T) {
	nav := newTestEnforcer(model.TierStandard).Navigate("https://unknown.example")

	d, err := nav.Resolve(true)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictAllowed, d.Verdict)
	assert.Equal(t, application.NavAllowed, nav.State())
}

func TestNavigation_ResolveDecline(t *testing.T) {
	nav := newTestEnforcer(model.TierStandard).Navigate("https://unknown.example")

	d, err := nav.Resolve(false)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictBlocked, d.Verdict)
	assert.Equal(t, model.ReasonUserDeclined, d.Reason)
	assert.Equal(t, application.NavBlocked, nav.State())
}

func TestNavigation_ResolveOnlyFromPending(t *testing.T) {
	e := newTestEnforcer(model.TierStandard)

	nav := e.Navigate("https://unknown.example")
	_, err := nav.Resolve(false)
	require.NoError(t, err)

	_, err = nav.Resolve(true)
	require.ErrorIs(t, err, application.ErrNotPending)
	assert.Equal(t, application.NavBlocked, nav.State())

	_, err = e.Navigate("https://examplebank.com").Resolve(false)
	require.ErrorIs(t, err, application.ErrNotPending)

	_, err = e.Navigate("http://examplebank.com").Resolve(true)
	require.ErrorIs(t, err, application.ErrNotPending)
}

func TestEnforcer_ResolveTLSError(t *testing.T) {
	tests := []struct {
		name   string
		tier   model.Tier
		target string
		action model.TLSAction
	}{
		{"basic always proceeds", model.TierBasic, "https://anything.example", model.TLSProceed},
		{"standard institution on allow-list", model.TierStandard, "https://examplebank.com", model.TLSProceed},
		{"maximum institution subdomain", model.TierMaximum, "https://login.examplebank.com", model.TLSProceed},
		{"institution not on allow-list", model.TierStandard, "https://othertrust.example", model.TLSCancel},
		{"allow-listed but not institution", model.TierStandard, "https://creditunion.example", model.TLSCancel},
		{"unknown host", model.TierMaximum, "https://unknown.example", model.TLSCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestEnforcer(tt.tier).ResolveTLSError(tt.target)
			assert.Equal(t, tt.action, d.Action)
			assert.NotEmpty(t, d.Message)
		})
	}
}

func TestEnforcer_CapabilitiesFollowTier(t *testing.T) {
	e := newTestEnforcer(model.TierStandard)
	caps := e.Capabilities()
	assert.True(t, caps.DownloadsEnabled)
	assert.True(t, caps.ClipboardEnabled)
	assert.False(t, caps.ScreenCaptureDisabled)

	require.NoError(t, e.SetTier(model.TierMaximum))
	caps = e.Capabilities()
	assert.Equal(t, model.TierMaximum, caps.Tier)
	assert.False(t, caps.DownloadsEnabled)
	assert.False(t, caps.ClipboardEnabled)
	assert.True(t, caps.ScreenCaptureDisabled)
}

func TestEnforcer_SetTierNotifiesListeners(t *testing.T) {
	e := newTestEnforcer(model.TierStandard)

	var got []model.Capabilities
	e.OnCapabilitiesChange(func(c model.Capabilities) { got = append(got, c) })

	require.NoError(t, e.SetTier(model.TierBasic))
	require.NoError(t, e.SetTier(model.TierBasic))
	require.Len(t, got, 1)
	assert.Equal(t, model.TierBasic, got[0].Tier)

	// Tier change affects subsequent decisions.
	assert.Equal(t, model.VerdictAllowed, e.Decide("http://legacy.example:8080").Verdict)
}

func TestEnforcer_ListenerMayRegisterListener(t *testing.T) {
	e := newTestEnforcer(model.TierStandard)

	var outer, inner int
	e.OnCapabilitiesChange(func(model.Capabilities) {
		outer++
		if outer == 1 {
			e.OnCapabilitiesChange(func(model.Capabilities) { inner++ })
		}
	})

	require.NoError(t, e.SetTier(model.TierBasic))
	assert.Equal(t, 1, outer)
	assert.Zero(t, inner)

	require.NoError(t, e.SetTier(model.TierMaximum))
	assert.Equal(t, 2, outer)
	assert.Equal(t, 1, inner)
}

func TestEnforcer_SetTierRejectsUnknown(t *testing.T) {
	e := newTestEnforcer(model.TierMaximum)

	require.Error(t, e.SetTier(model.Tier("extreme")))
	assert.Equal(t, model.TierMaximum, e.Tier())
}

func TestEnforcer_InvalidInitialTierUsesDefault(t *testing.T) {
	e := newTestEnforcer(model.Tier(""))
	assert.Equal(t, model.DefaultTier, e.Tier())
}

func TestEnforcer_ConcurrentDecideAndSetTier(t *testing.T) {
	e := newTestEnforcer(model.TierStandard)
	tiers := []model.Tier{model.TierBasic, model.TierStandard, model.TierMaximum}

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines * 2)
	for i := range goroutines {
		go func() {
			defer wg.Done()
			d := e.Decide("https://examplebank.com")
			assert.Equal(t, model.VerdictAllowed, d.Verdict)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, e.SetTier(tiers[i%len(tiers)]))
		}()
	}
	wg.Wait()
}
