package sqlite

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ericfisherdev/originguard/internal/domain/model"
	"github.com/ericfisherdev/originguard/internal/domain/port/driven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStateKey = bytes.Repeat([]byte{0x42}, 32)

func TestClientStateRepo_Snapshot_RoundTrip(t *testing.T) {
	repo := NewClientStateRepo(setupTestDB(t, SchemaClient), testStateKey)
	ctx := context.Background()

	got, err := repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty store has no snapshot")

	fetched := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.SaveSnapshot(ctx, model.NewSnapshot([]string{"https://a.example", "https://b.example"}, fetched)))

	got, err = repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, got.Origins)
	assert.True(t, fetched.Equal(got.FetchedAt))
}

func TestClientStateRepo_Snapshot_Replaces(t *testing.T) {
	repo := NewClientStateRepo(setupTestDB(t, SchemaClient), testStateKey)
	ctx := context.Background()

	require.NoError(t, repo.SaveSnapshot(ctx, model.NewSnapshot([]string{"https://a.example"}, time.Now())))
	require.NoError(t, repo.SaveSnapshot(ctx, model.NewSnapshot([]string{"https://c.example"}, time.Now())))

	got, err := repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://c.example"}, got.Origins)
}

func TestClientStateRepo_Token_RoundTrip(t *testing.T) {
	db := setupTestDB(t, SchemaClient)
	repo := NewClientStateRepo(db, testStateKey)
	ctx := context.Background()

	expires := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveToken(ctx, model.Token{Value: "jwt-value", ExpiresIn: "1h", ExpiresAt: expires}))

	// Stored value is not plaintext.
	var stored string
	require.NoError(t, db.Reader.QueryRowContext(ctx, `SELECT value FROM credentials`).Scan(&stored))
	assert.NotContains(t, stored, "jwt-value")

	got, err := repo.LoadToken(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "jwt-value", got.Value)
	assert.Equal(t, "1h", got.ExpiresIn)
	assert.True(t, expires.Equal(got.ExpiresAt))

	require.NoError(t, repo.ClearToken(ctx))
	got, err = repo.LoadToken(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClientStateRepo_Token_NoKey(t *testing.T) {
	repo := NewClientStateRepo(setupTestDB(t, SchemaClient), nil)
	ctx := context.Background()

	err := repo.SaveToken(ctx, model.Token{Value: "x", ExpiresAt: time.Now()})
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, err = repo.LoadToken(ctx)
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	// Snapshots do not need the key.
	require.NoError(t, repo.SaveSnapshot(ctx, model.NewSnapshot(nil, time.Now())))
}

func TestClientStateRepo_Token_WrongKey(t *testing.T) {
	db := setupTestDB(t, SchemaClient)
	ctx := context.Background()

	require.NoError(t, NewClientStateRepo(db, testStateKey).SaveToken(ctx, model.Token{Value: "secret", ExpiresAt: time.Now()}))

	other := NewClientStateRepo(db, bytes.Repeat([]byte{0x07}, 32))
	_, err := other.LoadToken(ctx)
	assert.Error(t, err)
}
