package results

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reward-polls/lib/logger"
	"reward-polls/modules/common"
	"reward-polls/modules/participation"
)

// PollSource resolves a poll by id.
type PollSource interface {
	GetPoll(ctx context.Context, pollId string) (common.Poll, error)
}

type Aggregator struct {
	polls         PollSource
	participation *participation.Ledger
	log           *slog.Logger
}

func New(polls PollSource, p *participation.Ledger) *Aggregator {
	return &Aggregator{
		polls:         polls,
		participation: p,
		log:           logger.New("results"),
	}
}

func (a *Aggregator) PollResults(ctx context.Context, pollId string) (Statistics, error) {
	poll, err := a.polls.GetPoll(ctx, pollId)
	if err != nil {
		return Statistics{}, err
	}
	records, err := a.participation.RecordsForPoll(ctx, pollId)
	if err != nil {
		return Statistics{}, fmt.Errorf("loading answers of %s: %w", pollId, err)
	}
	return ComputeStatistics(poll, records), nil
}

// ParticipantView is one poll as seen by someone who answered it.
type ParticipantView struct {
	PollId    string            `json:"pollId"`
	Topic     string            `json:"topic,omitempty"`
	Questions []common.Question `json:"questions,omitempty"`
	Answers   []common.Answer   `json:"answers"`
	Timestamp time.Time         `json:"timestamp"`
	Claimed   bool              `json:"claimed"`
	ClaimTx   string            `json:"claimTx,omitempty"`
	Reward    uint64            `json:"reward"`
}

// ParticipantHistory lists everything participant answered, oldest first.
// Polls that cannot be resolved still appear, without topic or questions.
func (a *Aggregator) ParticipantHistory(ctx context.Context, participant string) ([]ParticipantView, error) {
	records, err := a.participation.RecordsForParticipant(ctx, participant)
	if err != nil {
		return nil, err
	}

	views := make([]ParticipantView, 0, len(records))
	for _, record := range records {
		view := ParticipantView{
			PollId:    record.PollId,
			Answers:   record.Answers,
			Timestamp: record.Timestamp,
			Claimed:   record.Claimed,
			ClaimTx:   record.ClaimTx,
		}
		poll, err := a.polls.GetPoll(ctx, record.PollId)
		if err != nil {
			a.log.Warn("poll of participation record not resolved", "poll", record.PollId, "err", err)
		} else {
			view.Topic = poll.Topic
			view.Questions = poll.Questions
			if record.Claimed {
				view.Reward = poll.RewardPerParticipant
			}
		}
		views = append(views, view)
	}
	return views, nil
}
