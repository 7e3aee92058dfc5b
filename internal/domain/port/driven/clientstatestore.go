package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/originguard/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by ClientStateStore credential operations
// when the store was constructed without an encryption key.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set ORIGINGUARD_STATE_KEY")

// ClientStateStore defines the driven port for the client's private local
// state: the last allow-list snapshot and the current bearer credential.
type ClientStateStore interface {
	// SaveSnapshot replaces the stored snapshot.
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error

	// LoadSnapshot returns the stored snapshot, or (nil, nil) if none exists.
	LoadSnapshot(ctx context.Context) (*model.Snapshot, error)

	// SaveToken replaces the stored credential. The value is encrypted at rest.
	SaveToken(ctx context.Context, token model.Token) error

	// LoadToken returns the stored credential, or (nil, nil) if none exists.
	LoadToken(ctx context.Context) (*model.Token, error)

	// ClearToken removes the stored credential.
	ClearToken(ctx context.Context) error
}
