package pollsDb

import (
	"context"
	"errors"

	"reward-polls/modules/aggregate"
	"reward-polls/modules/common"

	"github.com/moznion/go-optional"
)

var ErrNotFound = errors.New("poll metadata not found")

// Polls is the metadata store. It is a cache of what the ledger holds and
// may lag behind it.
type Polls interface {
	aggregate.Plugin
	Upsert(ctx context.Context, poll common.Poll) error
	Get(ctx context.Context, id string) (optional.Option[common.Poll], error)
	FindByCreator(ctx context.Context, creator string) ([]common.Poll, error)
	ListAll(ctx context.Context) ([]common.Poll, error)
	// SetClaimState only moves the claimed count forward
	SetClaimState(ctx context.Context, id string, claimed uint32, refunded bool) error
}
