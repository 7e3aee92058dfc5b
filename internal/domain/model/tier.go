package model

import (
	"fmt"
	"strings"
)

// Tier is an operator-selected bundle of trust strictness and capability flags.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierStandard Tier = "standard"
	TierMaximum  Tier = "maximum"
)

// DefaultTier is used when no tier has been selected.
const DefaultTier = TierStandard

// Policy is the immutable rule set attached to a Tier.
type Policy struct {
	AllowInsecureProtocol        bool
	RequireCertificateValidation bool
	AllowDownloads               bool
	AllowClipboard               bool
	AllowScreenCapture           bool
}

// policies is the single source of tier behavior. Values are copied out, so
// callers cannot mutate the table.
var policies = map[Tier]Policy{
	TierBasic: {
		AllowInsecureProtocol:        true,
		RequireCertificateValidation: false,
		AllowDownloads:               true,
		AllowClipboard:               true,
		AllowScreenCapture:           true,
	},
	TierStandard: {
		AllowInsecureProtocol:        false,
		RequireCertificateValidation: true,
		AllowDownloads:               true,
		AllowClipboard:               true,
		AllowScreenCapture:           true,
	},
	TierMaximum: {
		AllowInsecureProtocol:        false,
		RequireCertificateValidation: true,
		AllowDownloads:               false,
		AllowClipboard:               false,
		AllowScreenCapture:           false,
	},
}

// Policy returns the rule set for the tier. Unknown tiers get the default tier's policy.
func (t Tier) Policy() Policy {
	if p, ok := policies[t]; ok {
		return p
	}
	return policies[DefaultTier]
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	_, ok := policies[t]
	return ok
}

// ParseTier parses a tier name case-insensitively. The legacy names low,
// medium and high are accepted as aliases.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic", "low":
		return TierBasic, nil
	case "standard", "medium":
		return TierStandard, nil
	case "maximum", "high":
		return TierMaximum, nil
	default:
		return "", fmt.Errorf("unknown security tier %q", s)
	}
}

// Capabilities are the session-wide runtime flags derived from a tier.
type Capabilities struct {
	Tier                  Tier
	DownloadsEnabled      bool
	ClipboardEnabled      bool
	ScreenCaptureDisabled bool
}

// CapabilitiesFor derives the session flags for a tier.
func CapabilitiesFor(t Tier) Capabilities {
	p := t.Policy()
	return Capabilities{
		Tier:                  t,
		DownloadsEnabled:      p.AllowDownloads,
		ClipboardEnabled:      p.AllowClipboard,
		ScreenCaptureDisabled: !p.AllowScreenCapture,
	}
}
