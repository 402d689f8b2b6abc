package polls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reward-polls/lib/logger"
	"reward-polls/modules/common"
	pollsDb "reward-polls/modules/db/rewards/polls"
	"reward-polls/modules/ledger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var requestValidator = validator.New(
	validator.WithRequiredStructEnabled(),
)

// CreatePollRequest is what a creator submits. The creator itself is the
// signer's principal.
type CreatePollRequest struct {
	Topic                string            `json:"topic" validate:"required,max=200"`
	RewardPerParticipant uint64            `json:"rewardPerParticipant" validate:"gt=0"`
	TotalParticipants    uint32            `json:"totalParticipants" validate:"gt=0"`
	ActiveUntil          time.Time         `json:"activeUntil" validate:"required"`
	Questions            []common.Question `json:"questions" validate:"min=1,max=10,dive"`
}

// Registry owns poll creation. The ledger is written first and the metadata
// store only after confirmation, so the store never lists an unfunded poll.
type Registry struct {
	gw    ledger.Gateway
	polls pollsDb.Polls
	conf  common.PollsConfig

	now   func() time.Time
	newId func() string
	log   *slog.Logger
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func WithIdGenerator(newId func() string) Option {
	return func(r *Registry) {
		r.newId = newId
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

func New(gw ledger.Gateway, polls pollsDb.Polls, conf common.PollsConfig, opts ...Option) *Registry {
	r := &Registry{
		gw:    gw,
		polls: polls,
		conf:  conf,
		now:   time.Now,
		newId: newPollId,
		log:   logger.New("poll-registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newPollId() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (r *Registry) location() *time.Location {
	if r.conf == nil {
		return time.UTC
	}
	return r.conf.Location()
}

// Validate checks a request without touching the ledger.
func (r *Registry) Validate(req CreatePollRequest) error {
	if err := requestValidator.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidPollSpecification, err)
	}
	if strings.TrimSpace(req.Topic) == "" {
		return fmt.Errorf("%w: empty topic", common.ErrInvalidPollSpecification)
	}
	for i, q := range req.Questions {
		for _, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return fmt.Errorf("%w: question %d has an empty option", common.ErrInvalidPollSpecification, i)
			}
		}
	}
	if !common.IsLive(req.ActiveUntil, r.now(), r.location()) {
		return fmt.Errorf("%w: activeUntil %s is not in the future", common.ErrInvalidPollSpecification, req.ActiveUntil.Format(time.DateOnly))
	}
	return nil
}

// CreatePoll escrows the reward pool and registers the poll. The returned
// poll exists on the ledger even when the metadata upsert failed, in which
// case the error wraps the store failure and the next sync restores the
// metadata from the ledger.
func (r *Registry) CreatePoll(ctx context.Context, req CreatePollRequest, signer ledger.Signer) (common.Poll, error) {
	if signer == nil {
		return common.Poll{}, fmt.Errorf("%w: missing creator signer", common.ErrInvalidPollSpecification)
	}
	if err := r.Validate(req); err != nil {
		return common.Poll{}, err
	}

	pollId := r.newId()
	creator := signer.Principal()
	ins := ledger.CreatePoll{
		PollId:               pollId,
		Creator:              creator,
		Topic:                req.Topic,
		RewardPerParticipant: req.RewardPerParticipant,
		TotalParticipants:    req.TotalParticipants,
		ActiveUntil:          req.ActiveUntil.UTC(),
		Questions:            req.Questions,
	}

	conf, err := r.gw.Execute(ctx, ins, signer)
	if err != nil {
		if rejection, ok := ledger.RejectionOf(err); ok {
			switch rejection.Reason {
			case ledger.InsufficientFunds:
				return common.Poll{}, fmt.Errorf("%w: %s", common.ErrInsufficientFunds, rejection.Msg)
			case ledger.Overflow, ledger.InvalidInstruction:
				return common.Poll{}, fmt.Errorf("%w: %w", common.ErrInvalidPollSpecification, err)
			}
		}
		return common.Poll{}, fmt.Errorf("create poll %s: %w", pollId, err)
	}

	poll := common.Poll{
		Id:                   pollId,
		Creator:              creator,
		Topic:                ins.Topic,
		RewardPerParticipant: ins.RewardPerParticipant,
		TotalParticipants:    ins.TotalParticipants,
		ActiveUntil:          ins.ActiveUntil,
		CreatedAt:            conf.Timestamp,
		Questions:            ins.Questions,
		Vault:                r.gw.DeriveAddress(common.NAMESPACE_VAULT, pollId).String(),
		Account:              r.gw.DeriveAddress(common.NAMESPACE_POLL, pollId).String(),
	}

	r.log.Info("poll created", "poll", pollId, "creator", creator, "tx", conf.TxId, "pool", poll.TotalReward())

	if err := r.polls.Upsert(ctx, poll); err != nil {
		r.log.Error("poll metadata upsert failed", "poll", pollId, "err", err)
		return poll, fmt.Errorf("poll %s is funded but its metadata was not stored: %w", pollId, err)
	}
	return poll, nil
}

// GetPoll merges the cached metadata with the poll account. The ledger wins
// for claim and refund state.
func (r *Registry) GetPoll(ctx context.Context, pollId string) (common.Poll, error) {
	account, err := ledger.ReadPoll(ctx, r.gw, pollId)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return common.Poll{}, fmt.Errorf("%w: %s", common.ErrPollNotFound, pollId)
	}
	if err != nil {
		return common.Poll{}, err
	}

	poll := account.Poll()
	cached, err := r.polls.Get(ctx, pollId)
	if err != nil {
		r.log.Warn("poll metadata lookup failed", "poll", pollId, "err", err)
		return poll, nil
	}
	if cached.IsSome() {
		meta := cached.Unwrap()
		if !meta.CreatedAt.IsZero() {
			poll.CreatedAt = meta.CreatedAt
		}
	}
	return poll, nil
}

// PollsByCreator lists a creator's polls, most recent first.
func (r *Registry) PollsByCreator(ctx context.Context, creator string) ([]common.Poll, error) {
	return r.polls.FindByCreator(ctx, creator)
}

// RefundPoll returns the unclaimed part of the pool to the creator once the
// poll is over.
func (r *Registry) RefundPoll(ctx context.Context, pollId string, signer ledger.Signer) (ledger.Confirmation, error) {
	if signer == nil {
		return ledger.Confirmation{}, fmt.Errorf("%w: refund of poll %s", common.ErrMissingSigner, pollId)
	}
	conf, err := r.gw.Execute(ctx, ledger.RefundPoll{
		PollId:  pollId,
		Creator: signer.Principal(),
	}, signer)
	if err != nil {
		if ledger.IsRejected(err, ledger.PollNotFound) {
			return conf, fmt.Errorf("%w: %s", common.ErrPollNotFound, pollId)
		}
		return conf, err
	}

	r.log.Info("poll refunded", "poll", pollId, "tx", conf.TxId)

	account, err := ledger.ReadPoll(ctx, r.gw, pollId)
	if err != nil {
		r.log.Warn("could not read refunded poll", "poll", pollId, "err", err)
		return conf, nil
	}
	if err := r.polls.SetClaimState(ctx, pollId, account.ClaimedParticipants, true); err != nil {
		r.log.Warn("poll metadata refund update failed", "poll", pollId, "err", err)
	}
	return conf, nil
}
