// Package origin validates, normalizes and matches network origins of the
// form scheme://host[:port].
package origin

import (
	"errors"
	"net/url"
	"strings"
)

// Size limits for a vetted origin.
const (
	MaxLength     = 2083
	MaxHostLength = 255
)

// ErrInvalid is returned by Normalize for candidates Validate rejects.
var ErrInvalid = errors.New("invalid origin")

// Validate reports whether candidate is a well-formed, size-bounded http or
// https URL. It never panics.
func Validate(candidate string) bool {
	_, err := parse(candidate)
	return err == nil
}

// Normalize validates candidate and reduces it to scheme://host[:port] with
// scheme and host lowercased. Path, query, fragment and userinfo are dropped.
func Normalize(candidate string) (string, error) {
	u, err := parse(candidate)
	if err != nil {
		return "", err
	}

	host := strings.ToLower(u.Host)
	return u.Scheme + "://" + host, nil
}

// Scheme returns the lowercased scheme of target, or "" if it does not parse.
func Scheme(target string) string {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// Host extracts a lowercased hostname from either a full URL or a bare
// domain such as "examplebank.com". Ports and trailing dots are stripped.
func Host(entry string) string {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return ""
	}

	if strings.Contains(entry, "://") {
		u, err := url.Parse(entry)
		if err != nil {
			return ""
		}
		return canonicalHost(u.Hostname())
	}

	// Bare domain, possibly with a port or path.
	if i := strings.IndexAny(entry, "/?#"); i >= 0 {
		entry = entry[:i]
	}
	u := url.URL{Host: entry}
	return canonicalHost(u.Hostname())
}

// MatchesDomain reports whether host equals domain or is a subdomain of it.
// Matching happens on label boundaries, so "evil-examplebank.com" does not
// match "examplebank.com".
func MatchesDomain(host, domain string) bool {
	host = canonicalHost(host)
	domain = canonicalHost(domain)
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// MatchesAny reports whether host matches any of the given entries. Entries
// may be full origins or bare domains.
func MatchesAny(host string, entries []string) bool {
	for _, e := range entries {
		if MatchesDomain(host, Host(e)) {
			return true
		}
	}
	return false
}

func parse(candidate string) (*url.URL, error) {
	if candidate == "" || len(candidate) > MaxLength {
		return nil, ErrInvalid
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return nil, ErrInvalid
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, ErrInvalid
	}
	u.Scheme = scheme

	hostname := u.Hostname()
	if hostname == "" || len(hostname) > MaxHostLength {
		return nil, ErrInvalid
	}
	if strings.ContainsAny(hostname, " \t") {
		return nil, ErrInvalid
	}

	return u, nil
}

func canonicalHost(h string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
}
