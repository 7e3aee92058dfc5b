// Package httphandler is the HTTP driving adapter serving the allow-list
// authority's REST API.
package httphandler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/originguard/internal/application"
	"github.com/ericfisherdev/originguard/internal/domain/port/driven"
)

// maxBodyBytes bounds request bodies. The largest legal body is two origins.
const maxBodyBytes = 16 << 10

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	auth      *application.AuthService
	allowList *application.AllowListService
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(auth *application.AuthService, allowList *application.AllowListService, logger *slog.Logger) *Handler {
	return &Handler{
		auth:      auth,
		allowList: allowList,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request ID, logging and recovery middleware. limiter may be nil to
// disable login rate limiting.
func NewServeMux(h *Handler, limiter *LoginLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	var login http.Handler = http.HandlerFunc(h.Login)
	if limiter != nil {
		login = limiter.Middleware(login)
	}
	mux.Handle("POST /api/login", login)

	mux.Handle("GET /api/whitelist", h.requireAdmin(h.ListAllowList))
	mux.Handle("GET /api/whitelist/{$}", h.requireAdmin(h.ListAllowList))
	mux.Handle("POST /api/whitelist/add", h.requireAdmin(h.AddOrigin))
	mux.Handle("PUT /api/whitelist/update", h.requireAdmin(h.UpdateOrigin))
	mux.Handle("DELETE /api/whitelist/delete", h.requireAdmin(h.RemoveOrigin))
	mux.HandleFunc("GET /api/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// Login exchanges the administrator credentials for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, driven.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	case errors.Is(err, driven.ErrUnauthorized):
		h.logger.Warn("failed login", "username", req.Username, "remote_addr", clientIP(r))
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case err != nil:
		h.logger.Error("failed to issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	h.logger.Info("admin signed in", "username", req.Username)
	writeJSON(w, http.StatusOK, LoginResponse{Token: token.Value, ExpiresIn: token.ExpiresIn})
}

// ListAllowList returns every allowed origin, newest first. Responses carry
// an ETag so clients can revalidate cheaply.
func (h *Handler) ListAllowList(w http.ResponseWriter, r *http.Request) {
	urls, err := h.allowList.Origins(r.Context())
	if err != nil {
		h.logger.Error("failed to list allow-list", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	etag := listETag(urls)
	w.Header().Set("Cache-Control", "private, no-cache")
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{URLs: urls, Count: len(urls)})
}

// AddOrigin adds an origin. The url may be given in the body or the query string.
func (h *Handler) AddOrigin(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if err := decodeOptionalBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	raw := firstNonEmpty(req.URL, r.URL.Query().Get("url"))

	entry, err := h.allowList.Add(r.Context(), raw, claimsFromContext(r.Context()))
	switch {
	case errors.Is(err, driven.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "url is required in body or query string (?url=...)")
		return
	case errors.Is(err, driven.ErrInvalid):
		writeError(w, http.StatusBadRequest, "invalid url format")
		return
	case errors.Is(err, driven.ErrConflict):
		writeError(w, http.StatusConflict, "url already whitelisted")
		return
	case err != nil:
		h.logger.Error("failed to add origin", "url", raw, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusCreated, MutationResponse{Message: "added", Doc: toEntryResponse(entry)})
}

// UpdateOrigin replaces oldUrl with newUrl. Fields may be given in the body
// or the query string.
func (h *Handler) UpdateOrigin(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := decodeOptionalBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	query := r.URL.Query()
	oldRaw := firstNonEmpty(req.OldURL, query.Get("oldUrl"))
	newRaw := firstNonEmpty(req.NewURL, query.Get("newUrl"))

	entry, err := h.allowList.Update(r.Context(), oldRaw, newRaw, claimsFromContext(r.Context()))
	switch {
	case errors.Is(err, driven.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "oldUrl and newUrl required (body or query)")
		return
	case errors.Is(err, driven.ErrInvalid):
		writeError(w, http.StatusBadRequest, "newUrl invalid")
		return
	case errors.Is(err, driven.ErrNotFound):
		writeError(w, http.StatusNotFound, "oldUrl not found")
		return
	case errors.Is(err, driven.ErrConflict):
		writeError(w, http.StatusConflict, "newUrl already whitelisted")
		return
	case err != nil:
		h.logger.Error("failed to update origin", "old_url", oldRaw, "new_url", newRaw, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{Message: "updated", Doc: toEntryResponse(entry)})
}

// RemoveOrigin deletes an origin. The url may be given in the body or the
// query string, since not every client can send a DELETE body.
func (h *Handler) RemoveOrigin(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if err := decodeOptionalBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	raw := firstNonEmpty(req.URL, r.URL.Query().Get("url"))

	entry, err := h.allowList.Remove(r.Context(), raw, claimsFromContext(r.Context()))
	switch {
	case errors.Is(err, driven.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "url required (body or ?url=...)")
		return
	case errors.Is(err, driven.ErrNotFound):
		writeError(w, http.StatusNotFound, "url not found")
		return
	case err != nil:
		h.logger.Error("failed to remove origin", "url", raw, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{Message: "deleted", Doc: toEntryResponse(entry)})
}

// Health reports whether the service and its store are reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.allowList.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "unavailable")
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: time.Now().UTC().Format(time.RFC3339)})
}

// decodeBody decodes a required JSON body.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// decodeOptionalBody decodes a JSON body if one was sent. An empty body is
// not an error; fields then come from the query string.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := decodeBody(w, r, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// listETag is a strong validator over the ordered origin list.
func listETag(urls []string) string {
	sum := sha256.Sum256([]byte(strings.Join(urls, "\n")))
	return `"` + hex.EncodeToString(sum[:12]) + `"`
}
