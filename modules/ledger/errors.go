package ledger

import (
	"errors"
	"fmt"
)

var ErrAccountNotFound = errors.New("account not found")

type RejectionReason string

const (
	InsufficientFunds       RejectionReason = "insufficient_funds"
	PollExists              RejectionReason = "poll_exists"
	PollNotFound            RejectionReason = "poll_not_found"
	AccountExists           RejectionReason = "account_exists"
	AccountNotFound         RejectionReason = "account_not_found"
	RecipientNotProvisioned RejectionReason = "recipient_not_provisioned"
	AlreadyClaimed          RejectionReason = "already_claimed"
	AlreadyFullyClaimed     RejectionReason = "already_fully_claimed"
	VaultExhausted          RejectionReason = "vault_exhausted"
	AlreadyRefunded         RejectionReason = "already_refunded"
	PollStillActive         RejectionReason = "poll_still_active"
	Unauthorized            RejectionReason = "unauthorized"
	BadSignature            RejectionReason = "bad_signature"
	Overflow                RejectionReason = "overflow"
	InvalidInstruction      RejectionReason = "invalid_instruction"
)

// Rejection is returned by Execute when the ledger refused an instruction.
// Nothing of a rejected instruction is applied.
type Rejection struct {
	Reason RejectionReason
	Msg    string
}

func (r *Rejection) Error() string {
	if r.Msg == "" {
		return fmt.Sprintf("ledger rejected instruction: %s", r.Reason)
	}
	return fmt.Sprintf("ledger rejected instruction: %s: %s", r.Reason, r.Msg)
}

func reject(reason RejectionReason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// RejectionOf unwraps err into a Rejection. ok is false for transport and
// context errors, where the outcome of the instruction is unknown.
func RejectionOf(err error) (*Rejection, bool) {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}

func IsRejected(err error, reason RejectionReason) bool {
	rejection, ok := RejectionOf(err)
	return ok && rejection.Reason == reason
}
