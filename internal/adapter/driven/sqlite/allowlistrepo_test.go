package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/ericfisherdev/originguard/internal/domain/port/driven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestAllowListRepo returns a repo whose clock advances one second per call
// so creation order is deterministic.
func newTestAllowListRepo(t *testing.T) *AllowListRepo {
	t.Helper()
	repo := NewAllowListRepo(setupTestDB(t, SchemaAuthority))
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	calls := 0
	repo.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	return repo
}

func TestAllowListRepo_AddAndList(t *testing.T) {
	repo := newTestAllowListRepo(t)
	ctx := context.Background()

	entry, err := repo.Add(ctx, "https://examplebank.com", "admin")
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)
	assert.Equal(t, "https://examplebank.com", entry.Origin)
	assert.Equal(t, "admin", entry.AddedBy)
	assert.False(t, entry.CreatedAt.IsZero())

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://examplebank.com", entries[0].Origin)
}

func TestAllowListRepo_Add_Duplicate(t *testing.T) {
	repo := newTestAllowListRepo(t)
	ctx := context.Background()

	_, err := repo.Add(ctx, "https://examplebank.com", "admin")
	require.NoError(t, err)

	_, err = repo.Add(ctx, "https://examplebank.com", "admin")
	assert.ErrorIs(t, err, driven.ErrConflict)

	// Host comparison is case-insensitive.
	_, err = repo.Add(ctx, "https://ExampleBank.com", "admin")
	assert.ErrorIs(t, err, driven.ErrConflict)

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "duplicate add must not change the count")
}

func TestAllowListRepo_List_NewestFirst(t *testing.T) {
	repo := newTestAllowListRepo(t)
	ctx := context.Background()

	for _, o := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		_, err := repo.Add(ctx, o, "admin")
		require.NoError(t, err)
	}

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "https://c.example", entries[0].Origin)
	assert.Equal(t, "https://b.example", entries[1].Origin)
	assert.Equal(t, "https://a.example", entries[2].Origin)
}

func TestAllowListRepo_List_Empty(t *testing.T) {
	repo := newTestAllowListRepo(t)

	entries, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestAllowListRepo_Update(t *testing.T) {
	repo := newTestAllowListRepo(t)
	ctx := context.Background()

	added, err := repo.Add(ctx, "https://old.example", "alice")
	require.NoError(t, err)

	updated, err := repo.Update(ctx, "https://old.example", "https://new.example", "bob")
	require.NoError(t, err)
	assert.Equal(t, added.ID, updated.ID)
	assert.Equal(t, "https://new.example", updated.Origin)
	assert.Equal(t, "alice", updated.AddedBy)
	assert.Equal(t, "bob", updated.UpdatedBy)
	assert.Equal(t, added.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(added.UpdatedAt))
}

func TestAllowListRepo_Update_NotFound(t *testing.T) {
	repo := newTestAllowListRepo(t)
	ctx := context.Background()

	_, err := repo.Add(ctx, "https://examplebank.com", "admin")
	require.NoError(t, err)

	_, err = repo.Update(ctx, "https://missing.example", "https://new.example", "admin")
	assert.ErrorIs(t, err, driven.ErrNotFound)

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://examplebank.com", entries[0].Origin, "store must be unchanged")
}

func TestAllowListRepo_Update_ToExistingOrigin(t *testing.T) {
	repo := newTestAllowListRepo(t)
	ctx := context.Background()

	_, err := repo.Add(ctx, "https://a.example", "admin")
	require.NoError(t, err)
	_, err = repo.Add(ctx, "https://b.example", "admin")
	require.NoError(t, err)

	_, err = repo.Update(ctx, "https://a.example", "https://b.example", "admin")
	assert.ErrorIs(t, err, driven.ErrConflict)
}

func TestAllowListRepo_Remove(t *testing.T) {
	repo := newTestAllowListRepo(t)
	ctx := context.Background()

	_, err := repo.Add(ctx, "https://examplebank.com", "admin")
	require.NoError(t, err)

	removed, err := repo.Remove(ctx, "https://examplebank.com")
	require.NoError(t, err)
	assert.Equal(t, "https://examplebank.com", removed.Origin)

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAllowListRepo_Remove_NotFound(t *testing.T) {
	repo := newTestAllowListRepo(t)

	_, err := repo.Remove(context.Background(), "https://missing.example")
	assert.ErrorIs(t, err, driven.ErrNotFound)
}

func TestAllowListRepo_Ping(t *testing.T) {
	repo := newTestAllowListRepo(t)
	assert.NoError(t, repo.Ping(context.Background()))
}
