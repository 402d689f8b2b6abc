package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"reward-polls/lib/encoding"
	"reward-polls/modules/common"
)

// Instruction is executed atomically by the ledger. Authority is the
// principal that has to sign it.
type Instruction interface {
	Kind() string
	Authority() string
}

// OpenAccount creates the token account of Owner.
type OpenAccount struct {
	Owner string `json:"owner"`
}

func (OpenAccount) Kind() string        { return "open_account" }
func (o OpenAccount) Authority() string { return o.Owner }

// CreatePoll escrows RewardPerParticipant*TotalParticipants from the
// creator's token account into a new vault and writes the poll account.
type CreatePoll struct {
	PollId               string            `json:"poll_id"`
	Creator              string            `json:"creator"`
	Topic                string            `json:"topic"`
	RewardPerParticipant uint64            `json:"reward_per_participant"`
	TotalParticipants    uint32            `json:"total_participants"`
	ActiveUntil          time.Time         `json:"active_until"`
	Questions            []common.Question `json:"questions"`
}

func (CreatePoll) Kind() string        { return "create_poll" }
func (c CreatePoll) Authority() string { return c.Creator }

// ClaimReward pays one reward from the vault to Participant.
type ClaimReward struct {
	PollId      string `json:"poll_id"`
	Participant string `json:"participant"`
}

func (ClaimReward) Kind() string        { return "claim_reward" }
func (c ClaimReward) Authority() string { return c.Participant }

// RefundPoll returns what is left in the vault to the creator once the poll
// is over.
type RefundPoll struct {
	PollId  string `json:"poll_id"`
	Creator string `json:"creator"`
}

func (RefundPoll) Kind() string        { return "refund_poll" }
func (r RefundPoll) Authority() string { return r.Creator }

// credit mints units into an account. Only reachable through Ledger.Credit.
type credit struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
}

func (credit) Kind() string        { return "credit" }
func (c credit) Authority() string { return "" }

type envelope struct {
	Kind string      `json:"kind"`
	Body Instruction `json:"body"`
}

type rawEnvelope struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}

// EncodeInstruction produces the canonical bytes that get signed.
func EncodeInstruction(ins Instruction) ([]byte, error) {
	return encoding.EncodeDagCbor(envelope{Kind: ins.Kind(), Body: ins})
}

func DecodeInstruction(payload []byte) (Instruction, error) {
	raw := rawEnvelope{}
	if err := encoding.DecodeDagCbor(payload, &raw); err != nil {
		return nil, err
	}

	switch raw.Kind {
	case OpenAccount{}.Kind():
		return decodeBody[OpenAccount](raw.Body)
	case CreatePoll{}.Kind():
		return decodeBody[CreatePoll](raw.Body)
	case ClaimReward{}.Kind():
		return decodeBody[ClaimReward](raw.Body)
	case RefundPoll{}.Kind():
		return decodeBody[RefundPoll](raw.Body)
	case credit{}.Kind():
		return decodeBody[credit](raw.Body)
	default:
		return nil, fmt.Errorf("unknown instruction kind %q", raw.Kind)
	}
}

func decodeBody[T Instruction](body json.RawMessage) (Instruction, error) {
	var ins T
	if err := json.Unmarshal(body, &ins); err != nil {
		return nil, err
	}
	return ins, nil
}
