package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/originguard/internal/domain/model"
	"github.com/ericfisherdev/originguard/internal/domain/origin"
	"github.com/ericfisherdev/originguard/internal/domain/port/driven"
)

// AllowListService validates and normalizes origins before they reach the
// store, and attributes every mutation to the caller's identity.
type AllowListService struct {
	store  driven.AllowListStore
	logger *slog.Logger
}

// NewAllowListService creates an AllowListService backed by store.
func NewAllowListService(store driven.AllowListStore, logger *slog.Logger) *AllowListService {
	return &AllowListService{store: store, logger: logger}
}

// List returns all entries, newest first.
func (s *AllowListService) List(ctx context.Context) ([]model.Entry, error) {
	return s.store.List(ctx)
}

// Origins returns just the origin strings, newest first.
func (s *AllowListService) Origins(ctx context.Context) ([]string, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	origins := make([]string, 0, len(entries))
	for _, e := range entries {
		origins = append(origins, e.Origin)
	}
	return origins, nil
}

// Add validates and stores a new origin. Returns ErrBadRequest for an empty
// value, ErrInvalid if validation fails and ErrConflict for duplicates.
func (s *AllowListService) Add(ctx context.Context, raw string, by model.Claims) (model.Entry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Entry{}, fmt.Errorf("url is required: %w", driven.ErrBadRequest)
	}

	normalized, err := origin.Normalize(raw)
	if err != nil {
		return model.Entry{}, fmt.Errorf("add %q: %w", raw, driven.ErrInvalid)
	}

	entry, err := s.store.Add(ctx, normalized, by.Subject())
	if err != nil {
		return model.Entry{}, err
	}

	s.logger.Info("allow-list entry added", "origin", entry.Origin, "by", entry.AddedBy)
	return entry, nil
}

// Update replaces oldRaw with newRaw. Returns ErrBadRequest if either is
// empty, ErrInvalid if newRaw fails validation, ErrNotFound if oldRaw is not
// on the list and ErrConflict if newRaw already is.
func (s *AllowListService) Update(ctx context.Context, oldRaw, newRaw string, by model.Claims) (model.Entry, error) {
	oldRaw, newRaw = strings.TrimSpace(oldRaw), strings.TrimSpace(newRaw)
	if oldRaw == "" || newRaw == "" {
		return model.Entry{}, fmt.Errorf("oldUrl and newUrl required: %w", driven.ErrBadRequest)
	}

	newOrigin, err := origin.Normalize(newRaw)
	if err != nil {
		return model.Entry{}, fmt.Errorf("update to %q: %w", newRaw, driven.ErrInvalid)
	}

	entry, err := s.store.Update(ctx, lookupKey(oldRaw), newOrigin, by.Subject())
	if err != nil {
		return model.Entry{}, err
	}

	s.logger.Info("allow-list entry updated", "old_origin", oldRaw, "origin", entry.Origin, "by", entry.UpdatedBy)
	return entry, nil
}

// Remove deletes an origin. Returns ErrBadRequest for an empty value and
// ErrNotFound if the origin is not on the list.
func (s *AllowListService) Remove(ctx context.Context, raw string, by model.Claims) (model.Entry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Entry{}, fmt.Errorf("url is required: %w", driven.ErrBadRequest)
	}

	entry, err := s.store.Remove(ctx, lookupKey(raw))
	if err != nil {
		return model.Entry{}, err
	}

	s.logger.Info("allow-list entry removed", "origin", entry.Origin, "by", by.Subject())
	return entry, nil
}

// Ping reports whether the backing store is reachable.
func (s *AllowListService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// lookupKey normalizes an existing origin for lookup. Values that do not
// validate are used as given and will simply not be found.
func lookupKey(raw string) string {
	if normalized, err := origin.Normalize(raw); err == nil {
		return normalized
	}
	return raw
}
