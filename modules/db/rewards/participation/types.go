package participationDb

import (
	"context"
	"time"

	"reward-polls/modules/aggregate"
	"reward-polls/modules/common"

	"github.com/moznion/go-optional"
)

// Participations stores one record per (poll, participant). Uniqueness is a
// storage constraint: Insert of a second record fails with
// common.ErrDuplicateParticipation.
type Participations interface {
	aggregate.Plugin
	Insert(ctx context.Context, record common.ParticipationRecord) error
	Find(ctx context.Context, pollId, participant string) (optional.Option[common.ParticipationRecord], error)
	Exists(ctx context.Context, pollId, participant string) (bool, error)
	// MarkClaimed flips claimed false->true, it never reverts
	MarkClaimed(ctx context.Context, pollId, participant, txId string, at time.Time) error
	FindByPoll(ctx context.Context, pollId string) ([]common.ParticipationRecord, error)
	FindByParticipant(ctx context.Context, participant string) ([]common.ParticipationRecord, error)
	FindUnclaimed(ctx context.Context, participant string) ([]common.ParticipationRecord, error)
}
