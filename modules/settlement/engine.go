package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reward-polls/lib/logger"
	"reward-polls/modules/common"
	"reward-polls/modules/ledger"
	"reward-polls/modules/participation"

	"github.com/go-playground/validator/v10"
)

var submitValidator = validator.New(
	validator.WithRequiredStructEnabled(),
)

// Engine runs the submit-then-claim saga. Answers are stored before any
// value moves, so a failed payout leaves a pending claim that Claim can
// settle later. The ledger alone decides whether a reward is paid.
type Engine struct {
	gw            ledger.Gateway
	participation *participation.Ledger
	conf          common.PollsConfig
	metrics       *Metrics

	now func() time.Time
	log *slog.Logger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func New(gw ledger.Gateway, p *participation.Ledger, conf common.PollsConfig, opts ...Option) *Engine {
	e := &Engine{
		gw:            gw,
		participation: p,
		conf:          conf,
		now:           time.Now,
		log:           logger.New("settlement"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = newMetrics("settlement")
	}
	return e
}

func (e *Engine) location() *time.Location {
	if e.conf == nil {
		return time.UTC
	}
	return e.conf.Location()
}

// SubmitAndClaim validates and stores the answers, then claims the reward.
// The returned error is nil only when the outcome is Settled. Errors from
// the claim step are *ClaimError and match common.ErrClaimFailed.
func (e *Engine) SubmitAndClaim(ctx context.Context, req SubmitRequest, signer ledger.Signer) (Outcome, error) {
	out, err := e.submitAndClaim(ctx, req, signer)
	e.metrics.submitted(out.State)
	if err != nil {
		e.log.Debug("submission stopped", "poll", req.PollId, "participant", req.Participant, "state", out.State, "err", err)
	}
	return out, err
}

func (e *Engine) submitAndClaim(ctx context.Context, req SubmitRequest, signer ledger.Signer) (Outcome, error) {
	out := Outcome{State: Validating}

	poll, err := e.validate(ctx, req, signer)
	if errors.Is(err, common.ErrDuplicateParticipation) {
		out.State = AlreadyParticipated
		return out, err
	}
	if err != nil {
		out.State = RejectedInput
		return out, err
	}

	record, err := e.participation.RecordParticipation(ctx, poll, req.Participant, req.Answers)
	if errors.Is(err, common.ErrDuplicateParticipation) {
		out.State = AlreadyParticipated
		return out, err
	}
	if err != nil {
		out.State = RejectedInput
		return out, err
	}
	out.State = Recorded
	out.Record = record

	return e.claim(ctx, out, signer)
}

func (e *Engine) validate(ctx context.Context, req SubmitRequest, signer ledger.Signer) (common.Poll, error) {
	if signer == nil || signer.Principal() != req.Participant {
		return common.Poll{}, common.ErrSignerMismatch
	}
	// advisory, the unique record is what actually enforces it
	participated, err := e.participation.HasParticipated(ctx, req.PollId, req.Participant)
	if err != nil {
		return common.Poll{}, fmt.Errorf("checking participation: %w", err)
	}
	if participated {
		return common.Poll{}, fmt.Errorf("%w: %s", common.ErrDuplicateParticipation, req.PollId)
	}
	if err := submitValidator.Struct(req); err != nil {
		return common.Poll{}, fmt.Errorf("%w: %w", common.ErrAnswerSchemaMismatch, err)
	}

	account, err := ledger.ReadPoll(ctx, e.gw, req.PollId)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return common.Poll{}, fmt.Errorf("%w: %s", common.ErrPollNotFound, req.PollId)
	}
	if err != nil {
		return common.Poll{}, fmt.Errorf("reading poll %s: %w", req.PollId, err)
	}
	poll := account.Poll()

	if !common.IsLive(poll.ActiveUntil, e.now(), e.location()) {
		return common.Poll{}, fmt.Errorf("%w: %s closed on %s", common.ErrPollInactive, poll.Id, poll.ActiveUntil.Format(time.DateOnly))
	}
	if poll.Creator == req.Participant {
		return common.Poll{}, common.ErrCreatorParticipation
	}
	if err := participation.ValidateAnswers(poll.Questions, req.Answers); err != nil {
		return common.Poll{}, err
	}
	return poll, nil
}

// Claim retries the claim step for answers already recorded by the
// signer. It never re-submits answers.
func (e *Engine) Claim(ctx context.Context, pollId string, signer ledger.Signer) (Outcome, error) {
	if signer == nil {
		return Outcome{State: RejectedInput}, common.ErrSignerMismatch
	}
	participant := signer.Principal()

	found, err := e.participation.Record(ctx, pollId, participant)
	if err != nil {
		return Outcome{State: RejectedInput}, fmt.Errorf("looking up participation: %w", err)
	}
	if found.IsNone() {
		return Outcome{State: RejectedInput}, fmt.Errorf("%w: %s", common.ErrNotParticipating, pollId)
	}

	return e.claim(ctx, Outcome{State: Recorded, Record: found.Unwrap()}, signer)
}

// PendingClaims lists the participant's stored answers whose reward was not
// confirmed yet.
func (e *Engine) PendingClaims(ctx context.Context, participant string) ([]common.ParticipationRecord, error) {
	return e.participation.Unclaimed(ctx, participant)
}

func (e *Engine) claim(ctx context.Context, out Outcome, signer ledger.Signer) (Outcome, error) {
	record := out.Record
	out.State = Claiming

	if err := e.ensureRecipient(ctx, record.Participant, signer); err != nil {
		out.State = ClaimFailed
		e.metrics.claimed(string(RecipientSetupFailed), 0)
		return out, &ClaimError{Reason: RecipientSetupFailed, Err: err}
	}

	conf, err := e.gw.Execute(ctx, ledger.ClaimReward{
		PollId:      record.PollId,
		Participant: record.Participant,
	}, signer)
	if err != nil {
		claimErr := claimFailure(err)
		if claimErr.Reason == AlreadyClaimed {
			e.repairClaimedFlag(ctx, record)
		}
		out.State = ClaimFailed
		e.metrics.claimed(string(claimErr.Reason), 0)
		e.log.Info("claim failed", "poll", record.PollId, "participant", record.Participant, "reason", claimErr.Reason)
		return out, claimErr
	}

	out.State = Settled
	out.Confirmation = conf
	if account, err := ledger.ReadPoll(ctx, e.gw, record.PollId); err == nil {
		out.Reward = account.RewardPerParticipant
	}
	e.metrics.claimed("settled", out.Reward)
	e.log.Info("reward settled", "poll", record.PollId, "participant", record.Participant, "tx", conf.TxId)

	if err := e.participation.MarkClaimed(ctx, record.PollId, record.Participant, conf.TxId, conf.Timestamp); err != nil {
		// the transfer is final, the flag is repaired by the next sync
		e.log.Error("reward paid but claimed flag not stored", "poll", record.PollId, "participant", record.Participant, "tx", conf.TxId, "err", err)
		return out, nil
	}
	out.Record.Claimed = true
	out.Record.ClaimTx = conf.TxId
	out.Record.ClaimedAt = &conf.Timestamp
	return out, nil
}

// ensureRecipient opens the participant's token account when it does not
// exist yet. Losing a race to open it counts as success.
func (e *Engine) ensureRecipient(ctx context.Context, participant string, signer ledger.Signer) error {
	addr := e.gw.DeriveAddress(common.NAMESPACE_TOKEN, participant)
	exists, err := ledger.HasAccount(ctx, e.gw, addr)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = e.gw.Execute(ctx, ledger.OpenAccount{Owner: participant}, signer)
	if err == nil || ledger.IsRejected(err, ledger.AccountExists) {
		return nil
	}
	return err
}

func (e *Engine) repairClaimedFlag(ctx context.Context, record common.ParticipationRecord) {
	if record.Claimed {
		return
	}
	at := e.now()
	addr := e.gw.DeriveAddress(common.NAMESPACE_CLAIM, record.PollId+"/"+record.Participant)
	if data, err := e.gw.ReadAccount(ctx, addr); err == nil {
		if receipt, err := ledger.DecodeClaimReceipt(data); err == nil {
			at = receipt.ClaimedAt
		}
	}
	if err := e.participation.MarkClaimed(ctx, record.PollId, record.Participant, "", at); err != nil {
		e.log.Warn("could not repair claimed flag", "poll", record.PollId, "participant", record.Participant, "err", err)
	}
}
