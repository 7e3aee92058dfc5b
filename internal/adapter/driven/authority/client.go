// Package authority implements the AuthorityClient port over the allow-list
// authority's HTTP API.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/originguard/internal/domain/model"
	"github.com/ericfisherdev/originguard/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AuthorityClient = (*Client)(nil)

// Network timeouts for authority calls.
const (
	connectTimeout = 15 * time.Second
	readTimeout    = 20 * time.Second
	writeTimeout   = 20 * time.Second

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 4 << 10
)

// Client implements driven.AuthorityClient.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	now     func() time.Time
}

// NewClient creates an authority client with the following transport stack:
//  1. httpcache (ETag-based conditional requests for the list endpoint)
//  2. net/http transport with connect and read timeouts
func NewClient(baseURL string) (*Client, error) {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
	}
	cache := httpcache.NewMemoryCacheTransport()
	cache.Transport = base

	httpClient := &http.Client{
		Transport: cache,
		Timeout:   connectTimeout + writeTimeout + readTimeout,
	}
	return NewClientWithHTTPClient(httpClient, baseURL)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parsing base URL %q: scheme must be http or https", baseURL)
	}

	return &Client{http: httpClient, baseURL: u, now: time.Now}, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn string `json:"expiresIn"`
}

type listResponse struct {
	URLs  []string `json:"urls"`
	Count int      `json:"count"`
}

type urlRequest struct {
	URL string `json:"url"`
}

type updateRequest struct {
	OldURL string `json:"oldUrl"`
	NewURL string `json:"newUrl"`
}

type entryJSON struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	AddedBy   string    `json:"addedBy"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type mutationResponse struct {
	Message string    `json:"message"`
	Doc     entryJSON `json:"doc"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Login exchanges the administrator credentials for a bearer token. The
// token's expiry is computed locally from the advertised lifetime.
func (c *Client) Login(ctx context.Context, username, password string) (model.Token, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/login", "", nil, loginRequest{Username: username, Password: password}, &resp); err != nil {
		return model.Token{}, err
	}
	if resp.Token == "" {
		return model.Token{}, fmt.Errorf("login: empty token in response: %w", driven.ErrTransient)
	}

	return model.Token{
		Value:     resp.Token,
		ExpiresIn: resp.ExpiresIn,
		ExpiresAt: c.now().Add(model.LifetimeOrDefault(resp.ExpiresIn)),
	}, nil
}

// List fetches the current allow-list.
func (c *Client) List(ctx context.Context, token string) ([]string, error) {
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/api/whitelist", token, nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.URLs == nil {
		resp.URLs = []string{}
	}
	return resp.URLs, nil
}

// Add adds an origin to the allow-list.
func (c *Client) Add(ctx context.Context, token, origin string) (model.Entry, error) {
	var resp mutationResponse
	if err := c.do(ctx, http.MethodPost, "/api/whitelist/add", token, nil, urlRequest{URL: origin}, &resp); err != nil {
		return model.Entry{}, err
	}
	return mapEntry(resp.Doc), nil
}

// Update replaces oldOrigin with newOrigin.
func (c *Client) Update(ctx context.Context, token, oldOrigin, newOrigin string) (model.Entry, error) {
	var resp mutationResponse
	body := updateRequest{OldURL: oldOrigin, NewURL: newOrigin}
	if err := c.do(ctx, http.MethodPut, "/api/whitelist/update", token, nil, body, &resp); err != nil {
		return model.Entry{}, err
	}
	return mapEntry(resp.Doc), nil
}

// Remove deletes an origin. The origin is sent in both the body and the
// query string since some intermediaries drop DELETE bodies.
func (c *Client) Remove(ctx context.Context, token, origin string) (model.Entry, error) {
	var resp mutationResponse
	query := url.Values{"url": []string{origin}}
	if err := c.do(ctx, http.MethodDelete, "/api/whitelist/delete", token, query, urlRequest{URL: origin}, &resp); err != nil {
		return model.Entry{}, err
	}
	return mapEntry(resp.Doc), nil
}

// do sends a JSON request and decodes a JSON response into out. Non-2xx
// statuses and network failures are mapped onto driven sentinel errors.
func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, body, out any) error {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encoding request: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		return fmt.Errorf("%s %s: %w: %v", method, path, driven.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method, path, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// A truncated body is a transport problem, not a contract violation.
		var syntaxErr *json.SyntaxError
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &syntaxErr) {
			return fmt.Errorf("%s %s: decoding response: %w: %v", method, path, driven.ErrTransient, err)
		}
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	return nil
}

// statusError maps an HTTP error status onto a driven sentinel, carrying the
// server's message.
func statusError(method, path string, resp *http.Response) error {
	var body errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}

	var sentinel error
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		sentinel = driven.ErrInvalid
	case resp.StatusCode == http.StatusUnauthorized:
		sentinel = driven.ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		sentinel = driven.ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		sentinel = driven.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		sentinel = driven.ErrConflict
	case resp.StatusCode == http.StatusTooManyRequests:
		sentinel = driven.ErrRateLimited
	case resp.StatusCode >= 500:
		sentinel = driven.ErrTransient
	default:
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, body.Message)
	}

	return fmt.Errorf("%s %s: %w: %s", method, path, sentinel, body.Message)
}

func mapEntry(e entryJSON) model.Entry {
	return model.Entry{
		ID:        e.ID,
		Origin:    e.URL,
		AddedBy:   e.AddedBy,
		UpdatedBy: e.UpdatedBy,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
