package driven

import (
	"context"

	"github.com/ericfisherdev/originguard/internal/domain/model"
)

// AllowListStore defines the driven port for allow-list persistence.
// Origins passed in are already normalized.
// Add returns ErrConflict if the origin already exists.
// Update returns ErrNotFound if oldOrigin does not exist and ErrConflict if
// newOrigin belongs to another entry.
// Remove returns ErrNotFound if the origin does not exist.
type AllowListStore interface {
	List(ctx context.Context) ([]model.Entry, error)
	Add(ctx context.Context, origin, addedBy string) (model.Entry, error)
	Update(ctx context.Context, oldOrigin, newOrigin, updatedBy string) (model.Entry, error)
	Remove(ctx context.Context, origin string) (model.Entry, error)
	Ping(ctx context.Context) error
}
