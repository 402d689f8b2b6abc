package common

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type QuestionType string

const (
	QuestionSingle   QuestionType = "Single"
	QuestionMultiple QuestionType = "Multiple"
)

// ParseQuestionType also accepts the legacy "one"/"many" tags.
func ParseQuestionType(s string) (QuestionType, error) {
	switch strings.ToLower(s) {
	case "single", "one":
		return QuestionSingle, nil
	case "multiple", "many":
		return QuestionMultiple, nil
	default:
		return "", fmt.Errorf("unknown question type %q", s)
	}
}

func (qt QuestionType) Valid() bool {
	return qt == QuestionSingle || qt == QuestionMultiple
}

func (qt *QuestionType) UnmarshalText(text []byte) error {
	parsed, err := ParseQuestionType(string(text))
	if err != nil {
		return err
	}
	*qt = parsed
	return nil
}

type Question struct {
	Type    QuestionType `json:"type" bson:"type" validate:"required,oneof=Single Multiple"`
	Options []string     `json:"options" bson:"options" validate:"min=1,max=10,unique,dive,required,max=100"`
}

// Poll is the metadata view of a poll. The ledger's poll account is
// authoritative for ClaimedParticipants and for the vault balance.
type Poll struct {
	Id                   string     `json:"id" bson:"id"`
	Creator              string     `json:"creator" bson:"creator"`
	Topic                string     `json:"topic" bson:"topic"`
	RewardPerParticipant uint64     `json:"rewardPerParticipant" bson:"reward_per_participant"`
	TotalParticipants    uint32     `json:"totalParticipants" bson:"total_participants"`
	ClaimedParticipants  uint32     `json:"claimedParticipants" bson:"claimed_participants"`
	ActiveUntil          time.Time  `json:"activeUntil" bson:"active_until"`
	CreatedAt            time.Time  `json:"createdAt" bson:"created_at"`
	Questions            []Question `json:"questions" bson:"questions"`

	// Derived ledger addresses, kept so readers do not need the gateway
	Vault   string `json:"vault" bson:"vault"`
	Account string `json:"account" bson:"account"`

	Refunded bool `json:"refunded,omitempty" bson:"refunded,omitempty"`
}

// TotalReward is the amount escrowed at creation.
func (p Poll) TotalReward() uint64 {
	return p.RewardPerParticipant * uint64(p.TotalParticipants)
}

func (p Poll) FullyClaimed() bool {
	return p.ClaimedParticipants >= p.TotalParticipants
}

// Answer is a tagged union: a Single answer carries exactly one value, a
// Multiple answer carries a set of values.
type Answer struct {
	Type   QuestionType `bson:"type"`
	Values []string     `bson:"values"`
}

func SingleAnswer(value string) Answer {
	return Answer{Type: QuestionSingle, Values: []string{value}}
}

func MultipleAnswer(values ...string) Answer {
	return Answer{Type: QuestionMultiple, Values: values}
}

type answerJson struct {
	Type  QuestionType    `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Type {
	case QuestionSingle:
		value := ""
		if len(a.Values) > 0 {
			value = a.Values[0]
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return json.Marshal(answerJson{Type: a.Type, Value: raw})
	case QuestionMultiple:
		values := a.Values
		if values == nil {
			values = []string{}
		}
		raw, err := json.Marshal(values)
		if err != nil {
			return nil, err
		}
		return json.Marshal(answerJson{Type: a.Type, Value: raw})
	default:
		return nil, fmt.Errorf("answer has unknown type %q", a.Type)
	}
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	aj := answerJson{}
	if err := json.Unmarshal(data, &aj); err != nil {
		return err
	}

	switch aj.Type {
	case QuestionSingle:
		var value string
		if err := json.Unmarshal(aj.Value, &value); err != nil {
			return fmt.Errorf("single answer value must be a string: %w", err)
		}
		*a = SingleAnswer(value)
	case QuestionMultiple:
		var values []string
		if err := json.Unmarshal(aj.Value, &values); err != nil {
			return fmt.Errorf("multiple answer value must be a list of strings: %w", err)
		}
		*a = MultipleAnswer(values...)
	default:
		return fmt.Errorf("answer has unknown type %q", aj.Type)
	}
	return nil
}

type ParticipationRecord struct {
	PollId      string    `json:"pollId" bson:"poll_id"`
	Participant string    `json:"participant" bson:"participant"`
	Answers     []Answer  `json:"answers" bson:"answers"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
	Claimed     bool      `json:"claimed" bson:"claimed"`

	// Set once the reward transfer was confirmed
	ClaimTx   string     `json:"claimTx,omitempty" bson:"claim_tx,omitempty"`
	ClaimedAt *time.Time `json:"claimedAt,omitempty" bson:"claimed_at,omitempty"`
}
