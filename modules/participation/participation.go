package participation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reward-polls/lib/logger"
	"reward-polls/modules/common"
	participationDb "reward-polls/modules/db/rewards/participation"

	"github.com/moznion/go-optional"
)

// Ledger records at most one answer set per (poll, participant). The
// uniqueness is the store's constraint, nothing here reads before writing.
type Ledger struct {
	records participationDb.Participations

	now func() time.Time
	log *slog.Logger
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) {
		l.log = log
	}
}

func New(records participationDb.Participations, opts ...Option) *Ledger {
	l := &Ledger{
		records: records,
		now:     time.Now,
		log:     logger.New("participation"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) HasParticipated(ctx context.Context, pollId, participant string) (bool, error) {
	return l.records.Exists(ctx, pollId, participant)
}

// RecordParticipation validates answers against poll and stores them
// unclaimed. A second record for the same pair fails with
// common.ErrDuplicateParticipation.
func (l *Ledger) RecordParticipation(ctx context.Context, poll common.Poll, participant string, answers []common.Answer) (common.ParticipationRecord, error) {
	if err := ValidateAnswers(poll.Questions, answers); err != nil {
		return common.ParticipationRecord{}, err
	}

	record := common.ParticipationRecord{
		PollId:      poll.Id,
		Participant: participant,
		Answers:     answers,
		Timestamp:   l.now().UTC().Truncate(time.Millisecond),
		Claimed:     false,
	}
	if err := l.records.Insert(ctx, record); err != nil {
		if errors.Is(err, common.ErrDuplicateParticipation) {
			return common.ParticipationRecord{}, err
		}
		return common.ParticipationRecord{}, fmt.Errorf("storing participation: %w", err)
	}

	l.log.Debug("participation recorded", "poll", poll.Id, "participant", participant)
	return record, nil
}

func (l *Ledger) Record(ctx context.Context, pollId, participant string) (optional.Option[common.ParticipationRecord], error) {
	return l.records.Find(ctx, pollId, participant)
}

// MarkClaimed flips the claimed flag once the reward transfer is confirmed.
func (l *Ledger) MarkClaimed(ctx context.Context, pollId, participant, txId string, at time.Time) error {
	return l.records.MarkClaimed(ctx, pollId, participant, txId, at)
}

func (l *Ledger) RecordsForPoll(ctx context.Context, pollId string) ([]common.ParticipationRecord, error) {
	return l.records.FindByPoll(ctx, pollId)
}

func (l *Ledger) RecordsForParticipant(ctx context.Context, participant string) ([]common.ParticipationRecord, error) {
	return l.records.FindByParticipant(ctx, participant)
}

// Unclaimed lists the participant's recorded answers still waiting for a
// payout.
func (l *Ledger) Unclaimed(ctx context.Context, participant string) ([]common.ParticipationRecord, error) {
	return l.records.FindUnclaimed(ctx, participant)
}
