package application

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ericfisherdev/originguard/internal/domain/model"
	"github.com/ericfisherdev/originguard/internal/domain/origin"
)

// User-facing messages. They avoid technical detail on purpose.
const (
	msgMalformed   = "This address can't be opened."
	msgInsecure    = "Only secure (https) connections are allowed at the %s security level."
	msgUntrusted   = "This site is not on your organization's list of trusted sites. Continue only if you trust it."
	msgDeclined    = "Navigation to this site was cancelled."
	msgCertWarning = "This site's security certificate could not be verified. Proceed with caution."
	msgCertBlocked = "The connection was stopped because this site's security certificate could not be verified."
)

// ErrNotPending is returned when Resolve is called on a navigation that is
// not awaiting a user decision.
var ErrNotPending = errors.New("navigation is not awaiting a user decision")

// AllowListSource provides the most recently committed allow-list without
// performing network I/O.
type AllowListSource interface {
	Current() ([]string, model.CacheState)
}

// Enforcer decides, per navigation, whether a destination may be loaded under
// the current security tier. It never performs network I/O.
type Enforcer struct {
	source       AllowListSource
	institutions []string
	logger       *slog.Logger

	mu        sync.RWMutex
	tier      model.Tier
	caps      model.Capabilities
	listeners []func(model.Capabilities)
}

// NewEnforcer creates an Enforcer. institutions is the curated list of
// organizations whose certificate failures may be overridden at the standard
// and maximum tiers. An invalid tier falls back to the default.
func NewEnforcer(source AllowListSource, tier model.Tier, institutions []string, logger *slog.Logger) *Enforcer {
	if !tier.Valid() {
		tier = model.DefaultTier
	}
	return &Enforcer{
		source:       source,
		institutions: append([]string(nil), institutions...),
		logger:       logger,
		tier:         tier,
		caps:         model.CapabilitiesFor(tier),
	}
}

// Tier returns the current security tier.
func (e *Enforcer) Tier() model.Tier {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tier
}

// Capabilities returns the session-wide flags derived from the current tier.
func (e *Enforcer) Capabilities() model.Capabilities {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.caps
}

// SetTier swaps the tier and re-derives capabilities. Listeners are notified
// only when the tier actually changes.
func (e *Enforcer) SetTier(tier model.Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("set tier: unknown security tier %q", tier)
	}

	e.mu.Lock()
	if e.tier == tier {
		e.mu.Unlock()
		return nil
	}
	previous := e.tier
	e.tier = tier
	e.caps = model.CapabilitiesFor(tier)
	caps := e.caps
	listeners := slices.Clone(e.listeners)
	e.mu.Unlock()

	e.logger.Warn("security tier changed", "from", string(previous), "to", string(tier))
	for _, fn := range listeners {
		fn(caps)
	}
	return nil
}

// OnCapabilitiesChange registers fn to be called after every tier change.
func (e *Enforcer) OnCapabilitiesChange(fn func(model.Capabilities)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Decide evaluates a navigation and returns its decision. A pending decision
// must be resolved by the caller through Navigate and Resolve; Decide alone
// never lets an untrusted destination through.
func (e *Enforcer) Decide(target string) model.Decision {
	return e.Navigate(target).Decision()
}

// Navigate starts a navigation attempt and runs it through the protocol and
// origin checks.
func (e *Enforcer) Navigate(target string) *Navigation {
	n := &Navigation{Target: target, state: NavRequested, logger: e.logger}
	tier := e.Tier()

	scheme := origin.Scheme(target)
	host := origin.Host(target)
	n.Host = host
	if (scheme != "http" && scheme != "https") || host == "" {
		n.finish(NavBlocked, model.ReasonMalformedTarget, msgMalformed)
		return n
	}

	if !tier.Policy().AllowInsecureProtocol && scheme != "https" {
		e.logger.Warn("blocked insecure navigation", "host", host, "tier", string(tier))
		n.finish(NavBlocked, model.ReasonProtocolViolation, fmt.Sprintf(msgInsecure, tier))
		return n
	}
	n.state = NavProtocolChecked

	origins, cacheState := e.source.Current()
	trusted := origin.MatchesAny(host, origins)
	n.state = NavOriginChecked

	if trusted {
		n.finish(NavAllowed, model.ReasonNone, "")
		return n
	}

	e.logger.Info("navigation requires confirmation",
		"host", host,
		"cache_state", cacheState.String(),
	)
	n.state = NavPendingUserDecision
	n.decision = model.Decision{
		Verdict: model.VerdictPendingUserDecision,
		Reason:  model.ReasonUntrustedOrigin,
		Host:    host,
		Message: msgUntrusted,
	}
	return n
}

// ResolveTLSError decides what to do when the transport reports a certificate
// failure for target. At the basic tier the connection always proceeds. At
// stricter tiers it proceeds only for hosts that are both on the allow-list
// and on the institutions list.
func (e *Enforcer) ResolveTLSError(target string) model.TLSDecision {
	host := origin.Host(target)
	tier := e.Tier()

	if !tier.Policy().RequireCertificateValidation {
		e.logger.Warn("proceeding despite certificate error", "host", host, "tier", string(tier))
		return model.TLSDecision{Action: model.TLSProceed, Host: host, Message: msgCertWarning}
	}

	origins, _ := e.source.Current()
	if host != "" && origin.MatchesAny(host, e.institutions) && origin.MatchesAny(host, origins) {
		e.logger.Warn("certificate error overridden for trusted institution", "host", host, "tier", string(tier))
		return model.TLSDecision{Action: model.TLSProceed, Host: host, Message: msgCertWarning}
	}

	e.logger.Warn("connection cancelled on certificate error", "host", host, "tier", string(tier))
	return model.TLSDecision{Action: model.TLSCancel, Host: host, Message: msgCertBlocked}
}

// NavState is the progress of a single navigation attempt.
type NavState string

const (
	NavRequested           NavState = "requested"
	NavProtocolChecked     NavState = "protocol_checked"
	NavOriginChecked       NavState = "origin_checked"
	NavAllowed             NavState = "allowed"
	NavPendingUserDecision NavState = "pending_user_decision"
	NavBlocked             NavState = "blocked"
)

// Terminal reports whether no further transition is possible.
func (s NavState) Terminal() bool {
	return s == NavAllowed || s == NavBlocked
}

// Navigation is one navigation attempt. A pending navigation moves to a
// terminal state only through Resolve.
type Navigation struct {
	Target string
	Host   string

	logger *slog.Logger

	mu       sync.Mutex
	state    NavState
	decision model.Decision
}

// State returns the current state.
func (n *Navigation) State() NavState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Decision returns the current decision.
func (n *Navigation) Decision() model.Decision {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.decision
}

// Resolve applies the user's explicit choice to a pending navigation.
func (n *Navigation) Resolve(userAllowed bool) (model.Decision, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != NavPendingUserDecision {
		return n.decision, fmt.Errorf("resolve %s navigation to %q: %w", n.state, n.Host, ErrNotPending)
	}

	if userAllowed {
		n.logger.Warn("user allowed untrusted destination", "host", n.Host)
		n.state = NavAllowed
		n.decision = model.Decision{Verdict: model.VerdictAllowed, Reason: model.ReasonUntrustedOrigin, Host: n.Host}
		return n.decision, nil
	}

	n.state = NavBlocked
	n.decision = model.Decision{Verdict: model.VerdictBlocked, Reason: model.ReasonUserDeclined, Host: n.Host, Message: msgDeclined}
	return n.decision, nil
}

func (n *Navigation) finish(state NavState, reason model.Reason, message string) {
	verdict := model.VerdictAllowed
	if state == NavBlocked {
		verdict = model.VerdictBlocked
	}
	n.state = state
	n.decision = model.Decision{Verdict: verdict, Reason: reason, Host: n.Host, Message: message}
}
