package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reward-polls/lib/encoding"
	"reward-polls/modules/common"
)

type AccountKind string

const (
	KindToken AccountKind = "token"
	KindPoll  AccountKind = "poll"
	KindClaim AccountKind = "claim"
)

// TokenAccount holds reward units. Vaults are token accounts owned by a
// poll account.
type TokenAccount struct {
	Kind    AccountKind `json:"kind"`
	Owner   string      `json:"owner"`
	Balance uint64      `json:"balance"`
}

type PollAccount struct {
	Kind                 AccountKind       `json:"kind"`
	PollId               string            `json:"poll_id"`
	Creator              string            `json:"creator"`
	Topic                string            `json:"topic"`
	RewardPerParticipant uint64            `json:"reward_per_participant"`
	TotalParticipants    uint32            `json:"total_participants"`
	ClaimedParticipants  uint32            `json:"claimed_participants"`
	ActiveUntil          time.Time         `json:"active_until"`
	CreatedAt            time.Time         `json:"created_at"`
	Questions            []common.Question `json:"questions"`
	Vault                Address           `json:"vault"`
	Refunded             bool              `json:"refunded"`
}

// Poll converts the on-ledger state to the metadata view.
func (pa PollAccount) Poll() common.Poll {
	return common.Poll{
		Id:                   pa.PollId,
		Creator:              pa.Creator,
		Topic:                pa.Topic,
		RewardPerParticipant: pa.RewardPerParticipant,
		TotalParticipants:    pa.TotalParticipants,
		ClaimedParticipants:  pa.ClaimedParticipants,
		ActiveUntil:          pa.ActiveUntil,
		CreatedAt:            pa.CreatedAt,
		Questions:            pa.Questions,
		Vault:                pa.Vault.String(),
		Account:              PollAddress(pa.PollId).String(),
		Refunded:             pa.Refunded,
	}
}

// ClaimReceipt marks that a participant was paid for a poll.
type ClaimReceipt struct {
	Kind        AccountKind `json:"kind"`
	PollId      string      `json:"poll_id"`
	Participant string      `json:"participant"`
	Amount      uint64      `json:"amount"`
	ClaimedAt   time.Time   `json:"claimed_at"`
}

func decodeAccount[T any](data []byte, kind AccountKind) (T, error) {
	var account T
	header := struct {
		Kind AccountKind `json:"kind"`
	}{}
	if err := encoding.DecodeDagCbor(data, &header); err != nil {
		return account, err
	}
	if header.Kind != kind {
		return account, fmt.Errorf("account is a %q, not a %q", header.Kind, kind)
	}
	if err := encoding.DecodeDagCbor(data, &account); err != nil {
		return account, err
	}
	return account, nil
}

func DecodeTokenAccount(data []byte) (TokenAccount, error) {
	return decodeAccount[TokenAccount](data, KindToken)
}

func DecodePollAccount(data []byte) (PollAccount, error) {
	return decodeAccount[PollAccount](data, KindPoll)
}

func DecodeClaimReceipt(data []byte) (ClaimReceipt, error) {
	return decodeAccount[ClaimReceipt](data, KindClaim)
}

// ReadPoll reads and decodes a poll account through any gateway.
func ReadPoll(ctx context.Context, gw Gateway, pollId string) (PollAccount, error) {
	data, err := gw.ReadAccount(ctx, gw.DeriveAddress(common.NAMESPACE_POLL, pollId))
	if err != nil {
		return PollAccount{}, err
	}
	return DecodePollAccount(data)
}

// ReadBalance returns the balance of a token account.
func ReadBalance(ctx context.Context, gw Gateway, addr Address) (uint64, error) {
	data, err := gw.ReadAccount(ctx, addr)
	if err != nil {
		return 0, err
	}
	account, err := DecodeTokenAccount(data)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// HasAccount reports whether addr holds an account. Errors other than
// ErrAccountNotFound are returned as is.
func HasAccount(ctx context.Context, gw Gateway, addr Address) (bool, error) {
	_, err := gw.ReadAccount(ctx, addr)
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
