package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AdminRole is the only role the auth authority issues.
const AdminRole = "admin"

// Claims is the verified content of a bearer credential.
type Claims struct {
	Username  string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Subject returns the identity a mutation is attributed to. Credentials
// without a username are attributed to the admin role.
func (c Claims) Subject() string {
	if c.Username == "" {
		return AdminRole
	}
	return c.Username
}

// Token is an issued bearer credential together with its lifetime as
// advertised to the client ("1h", "30m", ...).
type Token struct {
	Value     string
	ExpiresIn string
	ExpiresAt time.Time
}

// Valid reports whether the token is present and not yet expired at now.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && t.Value != "" && now.Before(t.ExpiresAt)
}

// DefaultLifetime is the credential lifetime used when none is configured.
const DefaultLifetime = "1h"

// ParseLifetime parses a lifetime of the form <N>(h|m|s), N a positive integer.
func ParseLifetime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid lifetime %q: expected <N>(h|m|s)", s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid lifetime %q: expected <N>(h|m|s)", s)
	}

	switch s[len(s)-1] {
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 's':
		return time.Duration(n) * time.Second, nil
	default:
		return 0, fmt.Errorf("invalid lifetime %q: expected <N>(h|m|s)", s)
	}
}

// LifetimeOrDefault parses s, falling back to one hour for anything
// ParseLifetime rejects. Clients use it on server-advertised values.
func LifetimeOrDefault(s string) time.Duration {
	d, err := ParseLifetime(s)
	if err != nil {
		return time.Hour
	}
	return d
}
