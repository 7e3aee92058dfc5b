package model

import "time"

// Cache windows for allow-list snapshots.
const (
	FreshFor = 5 * time.Minute
	GraceFor = 7 * 24 * time.Hour
)

// CacheState classifies a snapshot by its age.
type CacheState int

const (
	// CacheEmpty means no snapshot has ever been fetched.
	CacheEmpty CacheState = iota
	// CacheFresh means the snapshot is younger than FreshFor.
	CacheFresh
	// CacheStaleUsable means the snapshot is past FreshFor but within GraceFor.
	CacheStaleUsable
	// CacheStaleExpired means the snapshot is past GraceFor and only usable as a last resort.
	CacheStaleExpired
)

// String returns a human-readable name for the cache state.
func (s CacheState) String() string {
	switch s {
	case CacheEmpty:
		return "empty"
	case CacheFresh:
		return "fresh"
	case CacheStaleUsable:
		return "stale-usable"
	case CacheStaleExpired:
		return "stale-expired"
	default:
		return "unknown"
	}
}

// Usable reports whether a snapshot in this state may be served on network failure.
func (s CacheState) Usable() bool {
	return s == CacheFresh || s == CacheStaleUsable
}

// Snapshot is an immutable copy of the allow-list as last fetched from the
// authority. Snapshots are replaced whole, never mutated.
type Snapshot struct {
	Origins   []string
	FetchedAt time.Time
}

// NewSnapshot copies origins so later changes by the caller cannot leak in.
func NewSnapshot(origins []string, fetchedAt time.Time) *Snapshot {
	cp := make([]string, len(origins))
	copy(cp, origins)
	return &Snapshot{Origins: cp, FetchedAt: fetchedAt}
}

// State classifies the snapshot at now. A nil snapshot is CacheEmpty.
func (s *Snapshot) State(now time.Time) CacheState {
	if s == nil {
		return CacheEmpty
	}

	age := now.Sub(s.FetchedAt)
	switch {
	case age < FreshFor:
		return CacheFresh
	case age < GraceFor:
		return CacheStaleUsable
	default:
		return CacheStaleExpired
	}
}

// List returns a copy of the snapshot's origins.
func (s *Snapshot) List() []string {
	if s == nil {
		return nil
	}
	cp := make([]string, len(s.Origins))
	copy(cp, s.Origins)
	return cp
}
