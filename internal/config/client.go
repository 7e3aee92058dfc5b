package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/originguard/internal/domain/model"
)

// ClientConfig is the client's private configuration, stored as TOML under
// the user's config directory.
type ClientConfig struct {
	ServerURL           string   `toml:"server_url"`
	Username            string   `toml:"username"`
	Password            string   `toml:"password,omitempty"`
	Tier                string   `toml:"tier"`
	StatePath           string   `toml:"state_path"`
	RefreshInterval     string   `toml:"refresh_interval"`
	FallbackDomains     []string `toml:"fallback_domains"`
	TrustedInstitutions []string `toml:"trusted_institutions"`

	// StateKey encrypts the stored bearer token. Read from
	// ORIGINGUARD_STATE_KEY (64 hex chars), never written to disk.
	StateKey []byte `toml:"-"`
}

// DefaultClientDir returns $XDG_CONFIG_HOME/originguard (or the platform equivalent).
func DefaultClientDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(dir, "originguard"), nil
}

// DefaultClientConfig returns the configuration used when no file exists.
func DefaultClientConfig(dir string) *ClientConfig {
	return &ClientConfig{
		ServerURL:           "http://127.0.0.1:5001",
		Username:            model.AdminRole,
		Tier:                string(model.DefaultTier),
		StatePath:           filepath.Join(dir, "state.db"),
		RefreshInterval:     model.FreshFor.String(),
		FallbackDomains:     []string{},
		TrustedInstitutions: []string{},
	}
}

// LoadClient reads the TOML file at path, falling back to defaults when the
// file does not exist, then applies environment overrides:
// ORIGINGUARD_SERVER_URL, ORIGINGUARD_CLIENT_PASSWORD, ORIGINGUARD_TIER and
// ORIGINGUARD_STATE_KEY.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig(filepath.Dir(path))

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read client config: %w", err)
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse client config %s: %w", path, err)
		}
	}

	if v := os.Getenv("ORIGINGUARD_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("ORIGINGUARD_CLIENT_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("ORIGINGUARD_TIER"); v != "" {
		cfg.Tier = v
	}
	if v := os.Getenv("ORIGINGUARD_STATE_KEY"); v != "" {
		key, err := hex.DecodeString(v)
		if err != nil || len(key) != 32 {
			return nil, errors.New("ORIGINGUARD_STATE_KEY must be 64 hex characters (32 bytes)")
		}
		cfg.StateKey = key
	}

	if _, err := cfg.Interval(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveClient writes cfg to path atomically with mode 0600. The password is
// never persisted; it belongs in ORIGINGUARD_CLIENT_PASSWORD.
func SaveClient(path string, cfg *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create client config dir: %w", err)
	}

	out := *cfg
	out.Password = ""

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("encode client config: %w", err)
	}

	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("write client config: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("restrict client config: %w", err)
	}
	return nil
}

// SecurityTier returns the configured tier, or the default tier when the
// value is missing or unknown.
func (c *ClientConfig) SecurityTier() model.Tier {
	t, err := model.ParseTier(c.Tier)
	if err != nil {
		return model.DefaultTier
	}
	return t
}

// Interval returns the background refresh interval.
func (c *ClientConfig) Interval() (time.Duration, error) {
	if c.RefreshInterval == "" {
		return model.FreshFor, nil
	}
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("refresh_interval has invalid duration %q", c.RefreshInterval)
	}
	return d, nil
}
