package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLifetime(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "1h", want: time.Hour},
		{in: "30m", want: 30 * time.Minute},
		{in: "45s", want: 45 * time.Second},
		{in: " 2h ", want: 2 * time.Hour},
		{in: "", wantErr: true},
		{in: "h", wantErr: true},
		{in: "0h", wantErr: true},
		{in: "-1h", wantErr: true},
		{in: "1d", wantErr: true},
		{in: "1.5h", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLifetime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, time.Hour, LifetimeOrDefault("garbage"))
	assert.Equal(t, 10*time.Minute, LifetimeOrDefault("10m"))
}

func TestToken_Valid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var missing *Token
	assert.False(t, missing.Valid(now))
	assert.False(t, (&Token{ExpiresAt: now.Add(time.Hour)}).Valid(now))
	assert.False(t, (&Token{Value: "t", ExpiresAt: now}).Valid(now))
	assert.True(t, (&Token{Value: "t", ExpiresAt: now.Add(time.Second)}).Valid(now))
}

func TestClaims_Subject(t *testing.T) {
	assert.Equal(t, "admin", Claims{}.Subject())
	assert.Equal(t, "ops", Claims{Username: "ops"}.Subject())
}

func TestSnapshot_State(t *testing.T) {
	fetched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := NewSnapshot([]string{"https://a.example"}, fetched)

	var none *Snapshot
	assert.Equal(t, CacheEmpty, none.State(fetched))
	assert.Equal(t, CacheFresh, snap.State(fetched.Add(4*time.Minute)))
	assert.Equal(t, CacheStaleUsable, snap.State(fetched.Add(FreshFor)))
	assert.Equal(t, CacheStaleUsable, snap.State(fetched.Add(6*24*time.Hour)))
	assert.Equal(t, CacheStaleExpired, snap.State(fetched.Add(GraceFor)))

	assert.True(t, CacheFresh.Usable())
	assert.True(t, CacheStaleUsable.Usable())
	assert.False(t, CacheStaleExpired.Usable())
	assert.False(t, CacheEmpty.Usable())
	assert.LessOrEqual(t, FreshFor, GraceFor)
}

func TestSnapshot_CopiesOrigins(t *testing.T) {
	origins := []string{"https://a.example"}
	snap := NewSnapshot(origins, time.Now())
	origins[0] = "https://mutated.example"

	assert.Equal(t, "https://a.example", snap.Origins[0])

	list := snap.List()
	list[0] = "https://other.example"
	assert.Equal(t, "https://a.example", snap.Origins[0])
}

func TestTierPolicies(t *testing.T) {
	basic := TierBasic.Policy()
	assert.True(t, basic.AllowInsecureProtocol)
	assert.False(t, basic.RequireCertificateValidation)
	assert.True(t, basic.AllowDownloads)

	standard := TierStandard.Policy()
	assert.False(t, standard.AllowInsecureProtocol)
	assert.True(t, standard.RequireCertificateValidation)
	assert.True(t, standard.AllowDownloads)
	assert.True(t, standard.AllowClipboard)
	assert.True(t, standard.AllowScreenCapture)

	maximum := TierMaximum.Policy()
	assert.False(t, maximum.AllowInsecureProtocol)
	assert.False(t, maximum.AllowDownloads)
	assert.False(t, maximum.AllowClipboard)
	assert.False(t, maximum.AllowScreenCapture)

	assert.Equal(t, standard, Tier("bogus").Policy())
}

func TestParseTier(t *testing.T) {
	for in, want := range map[string]Tier{
		"basic": TierBasic, "LOW": TierBasic,
		"Standard": TierStandard, "medium": TierStandard,
		"maximum": TierMaximum, "high": TierMaximum,
	} {
		got, err := ParseTier(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTier("paranoid")
	assert.Error(t, err)
}

func TestCapabilitiesFor(t *testing.T) {
	maxCaps := CapabilitiesFor(TierMaximum)
	assert.False(t, maxCaps.DownloadsEnabled)
	assert.False(t, maxCaps.ClipboardEnabled)
	assert.True(t, maxCaps.ScreenCaptureDisabled)

	stdCaps := CapabilitiesFor(TierStandard)
	assert.True(t, stdCaps.DownloadsEnabled)
	assert.True(t, stdCaps.ClipboardEnabled)
	assert.False(t, stdCaps.ScreenCaptureDisabled)
}
