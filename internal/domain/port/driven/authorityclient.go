package driven

import (
	"context"

	"github.com/ericfisherdev/originguard/internal/domain/model"
)

// AuthorityClient defines the driven port the client side uses to reach the
// allow-list authority. Implementations map HTTP outcomes onto the sentinel
// errors in this package: network failures and 5xx become ErrTransient.
type AuthorityClient interface {
	Login(ctx context.Context, username, password string) (model.Token, error)
	List(ctx context.Context, token string) ([]string, error)
	Add(ctx context.Context, token, origin string) (model.Entry, error)
	Update(ctx context.Context, token, oldOrigin, newOrigin string) (model.Entry, error)
	Remove(ctx context.Context, token, origin string) (model.Entry, error)
}
