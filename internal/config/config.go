// Package config loads the authority's configuration from environment
// variables and the client's configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ericfisherdev/originguard/internal/domain/model"
)

// Startup misconfiguration errors. Any of these aborts the authority.
var (
	ErrMissingAdminPassword = errors.New("ORIGINGUARD_ADMIN_PASSWORD is required")
	ErrMissingJWTSecret     = errors.New("ORIGINGUARD_JWT_SECRET is required")
	ErrWeakJWTSecret        = errors.New("ORIGINGUARD_JWT_SECRET must be at least 32 bytes")
)

// minSecretLen is the shortest accepted HS256 signing secret.
const minSecretLen = 32

// Config holds the allow-list authority configuration loaded from environment variables.
type Config struct {
	ListenAddr     string
	DBPath         string
	AdminUsername  string
	AdminPassword  string
	JWTSecret      []byte
	JWTExpiresIn   string
	LoginPerMinute int
	LoginBurst     int
}

// Load reads configuration from environment variables and returns a validated Config.
// ORIGINGUARD_ADMIN_PASSWORD (plaintext or bcrypt hash) and ORIGINGUARD_JWT_SECRET are required.
// Optional variables with defaults: ORIGINGUARD_LISTEN_ADDR (127.0.0.1:5001),
// ORIGINGUARD_DB_PATH (originguard.db), ORIGINGUARD_ADMIN_USERNAME (admin),
// ORIGINGUARD_JWT_EXPIRES_IN (1h), ORIGINGUARD_LOGIN_PER_MINUTE (5), ORIGINGUARD_LOGIN_BURST (5).
func Load() (*Config, error) {
	password := os.Getenv("ORIGINGUARD_ADMIN_PASSWORD")
	if password == "" {
		return nil, ErrMissingAdminPassword
	}

	secret := os.Getenv("ORIGINGUARD_JWT_SECRET")
	if secret == "" {
		return nil, ErrMissingJWTSecret
	}
	if len(secret) < minSecretLen {
		return nil, ErrWeakJWTSecret
	}

	expiresIn := model.DefaultLifetime
	if v, ok := os.LookupEnv("ORIGINGUARD_JWT_EXPIRES_IN"); ok && v != "" {
		if _, err := model.ParseLifetime(v); err != nil {
			return nil, fmt.Errorf("ORIGINGUARD_JWT_EXPIRES_IN: %w", err)
		}
		expiresIn = v
	}

	listenAddr := "127.0.0.1:5001"
	if v, ok := os.LookupEnv("ORIGINGUARD_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "originguard.db"
	if v, ok := os.LookupEnv("ORIGINGUARD_DB_PATH"); ok {
		dbPath = v
	}

	username := model.AdminRole
	if v, ok := os.LookupEnv("ORIGINGUARD_ADMIN_USERNAME"); ok && v != "" {
		username = v
	}

	perMinute, err := positiveInt("ORIGINGUARD_LOGIN_PER_MINUTE", 5)
	if err != nil {
		return nil, err
	}
	burst, err := positiveInt("ORIGINGUARD_LOGIN_BURST", 5)
	if err != nil {
		return nil, err
	}

	return &Config{
		ListenAddr:     listenAddr,
		DBPath:         dbPath,
		AdminUsername:  username,
		AdminPassword:  password,
		JWTSecret:      []byte(secret),
		JWTExpiresIn:   expiresIn,
		LoginPerMinute: perMinute,
		LoginBurst:     burst,
	}, nil
}

func positiveInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s has invalid value %q: expected a positive integer", key, v)
	}
	return n, nil
}
