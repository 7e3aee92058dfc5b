package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/originguard/internal/domain/model"
	"github.com/ericfisherdev/originguard/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ClientStateStore = (*ClientStateRepo)(nil)

// tokenService is the credentials row holding the authority bearer token.
const tokenService = "authority"

// ClientStateRepo is the SQLite implementation of the ClientStateStore port.
// The bearer token is encrypted with AES-256-GCM before write and decrypted
// after read; the snapshot is stored as JSON.
type ClientStateRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil disables credential storage.
}

// NewClientStateRepo creates a new ClientStateRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable credential storage (credential operations
// return ErrEncryptionKeyNotSet; snapshots still work).
func NewClientStateRepo(db *DB, key []byte) *ClientStateRepo {
	return &ClientStateRepo{db: db, key: key}
}

// SaveSnapshot replaces the stored snapshot.
func (r *ClientStateRepo) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if snap == nil {
		return errors.New("save snapshot: nil snapshot")
	}

	origins, err := json.Marshal(snap.Origins)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	const query = `INSERT OR REPLACE INTO allowlist_snapshot (id, origins, fetched_at) VALUES (1, ?, ?)`
	if _, err := r.db.Writer.ExecContext(ctx, query, string(origins), formatTime(snap.FetchedAt)); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot, or (nil, nil) if none exists.
func (r *ClientStateRepo) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	const query = `SELECT origins, fetched_at FROM allowlist_snapshot WHERE id = 1`

	var encoded, fetchedAt string
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&encoded, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var origins []string
	if err := json.Unmarshal([]byte(encoded), &origins); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	at, err := parseTime(fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("parse fetched_at: %w", err)
	}

	return model.NewSnapshot(origins, at), nil
}

// SaveToken stores or replaces the bearer token.
func (r *ClientStateRepo) SaveToken(ctx context.Context, token model.Token) error {
	encrypted, err := r.encrypt(token.Value)
	if err != nil {
		return err
	}

	const query = `INSERT OR REPLACE INTO credentials (service, value, expires_in, expires_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`
	_, err = r.db.Writer.ExecContext(ctx, query, tokenService, encrypted, token.ExpiresIn, formatTime(token.ExpiresAt))
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// LoadToken returns the stored bearer token, or (nil, nil) if none exists.
func (r *ClientStateRepo) LoadToken(ctx context.Context) (*model.Token, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT value, expires_in, expires_at FROM credentials WHERE service = ?`
	var encrypted, expiresIn, expiresAt string
	err := r.db.Reader.QueryRowContext(ctx, query, tokenService).Scan(&encrypted, &expiresIn, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	plaintext, err := r.decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt token: %w", err)
	}

	at, err := parseTime(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	return &model.Token{Value: plaintext, ExpiresIn: expiresIn, ExpiresAt: at}, nil
}

// ClearToken removes the stored bearer token.
func (r *ClientStateRepo) ClearToken(ctx context.Context) error {
	const query = `DELETE FROM credentials WHERE service = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, tokenService); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce (12 bytes) prepended to the ciphertext.
func (r *ClientStateRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// nonce || ciphertext || tag
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *ClientStateRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
