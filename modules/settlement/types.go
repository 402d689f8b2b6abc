package settlement

import (
	"fmt"

	"reward-polls/modules/common"
	"reward-polls/modules/ledger"
)

type State string

const (
	Validating State = "validating"
	Recorded   State = "recorded"
	Claiming   State = "claiming"
	Settled    State = "settled"

	// RejectedInput covers every failure before the answers were stored
	RejectedInput       State = "rejected_input"
	AlreadyParticipated State = "already_participated"
	// ClaimFailed means the answers are stored and the payout is pending
	ClaimFailed State = "claim_failed"
)

// Terminal reports whether the saga stops in s.
func (s State) Terminal() bool {
	switch s {
	case Settled, RejectedInput, AlreadyParticipated, ClaimFailed:
		return true
	default:
		return false
	}
}

type ClaimFailureReason string

const (
	VaultExhausted       ClaimFailureReason = "vault_exhausted"
	AlreadyFullyClaimed  ClaimFailureReason = "already_fully_claimed"
	RecipientSetupFailed ClaimFailureReason = "recipient_setup_failed"
	LedgerUnreachable    ClaimFailureReason = "ledger_unreachable"
	AlreadyClaimed       ClaimFailureReason = "already_claimed"
	LedgerRejected       ClaimFailureReason = "ledger_rejected"
)

// ClaimError is returned once the participation record exists but the
// reward was not transferred by this call.
type ClaimError struct {
	Reason ClaimFailureReason
	Err    error
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("%s: %s: %v", common.ErrClaimFailed, e.Reason, e.Err)
}

func (e *ClaimError) Unwrap() error {
	return e.Err
}

func (e *ClaimError) Is(target error) bool {
	return target == common.ErrClaimFailed
}

// Retryable reports whether re-issuing the claim can succeed without
// anything else changing first.
func (e *ClaimError) Retryable() bool {
	switch e.Reason {
	case LedgerUnreachable, RecipientSetupFailed:
		return true
	default:
		return false
	}
}

func claimFailure(err error) *ClaimError {
	rejection, ok := ledger.RejectionOf(err)
	if !ok {
		return &ClaimError{Reason: LedgerUnreachable, Err: err}
	}
	switch rejection.Reason {
	case ledger.VaultExhausted:
		return &ClaimError{Reason: VaultExhausted, Err: err}
	case ledger.AlreadyFullyClaimed:
		return &ClaimError{Reason: AlreadyFullyClaimed, Err: err}
	case ledger.AlreadyClaimed:
		return &ClaimError{Reason: AlreadyClaimed, Err: err}
	case ledger.RecipientNotProvisioned:
		return &ClaimError{Reason: RecipientSetupFailed, Err: err}
	default:
		return &ClaimError{Reason: LedgerRejected, Err: err}
	}
}

// SubmitRequest carries a participant's answers for one poll.
type SubmitRequest struct {
	PollId      string          `json:"pollId" validate:"required"`
	Participant string          `json:"participant" validate:"required"`
	Answers     []common.Answer `json:"answers" validate:"required,min=1"`
}

// Outcome is where the saga stopped. Record is set from Recorded on,
// Confirmation only when Settled.
type Outcome struct {
	State        State
	Record       common.ParticipationRecord
	Confirmation ledger.Confirmation
	Reward       uint64
}
