package test_utils

import (
	"context"
	"slices"
	"sync"
	"time"

	"reward-polls/modules/aggregate"
	"reward-polls/modules/common"

	"github.com/moznion/go-optional"
)

// MockParticipationDb enforces the (poll, participant) uniqueness the mongo
// index gives the real store.
type MockParticipationDb struct {
	aggregate.Plugin
	mu      sync.Mutex
	Records []common.ParticipationRecord
	// Err makes every call fail while set
	Err error
}

func NewMockParticipationDb() *MockParticipationDb {
	return &MockParticipationDb{Records: make([]common.ParticipationRecord, 0)}
}

func (m *MockParticipationDb) indexOf(pollId, participant string) int {
	return slices.IndexFunc(m.Records, func(r common.ParticipationRecord) bool {
		return r.PollId == pollId && r.Participant == participant
	})
}

func (m *MockParticipationDb) Insert(ctx context.Context, record common.ParticipationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.indexOf(record.PollId, record.Participant) >= 0 {
		return common.ErrDuplicateParticipation
	}
	m.Records = append(m.Records, record)
	return nil
}

func (m *MockParticipationDb) Find(ctx context.Context, pollId, participant string) (optional.Option[common.ParticipationRecord], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	idx := m.indexOf(pollId, participant)
	if idx < 0 {
		return optional.None[common.ParticipationRecord](), nil
	}
	return optional.Some(m.Records[idx]), nil
}

func (m *MockParticipationDb) Exists(ctx context.Context, pollId, participant string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	return m.indexOf(pollId, participant) >= 0, nil
}

func (m *MockParticipationDb) MarkClaimed(ctx context.Context, pollId, participant, txId string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	idx := m.indexOf(pollId, participant)
	if idx < 0 {
		return common.ErrNotParticipating
	}
	if !m.Records[idx].Claimed {
		m.Records[idx].Claimed = true
		m.Records[idx].ClaimTx = txId
		m.Records[idx].ClaimedAt = &at
	}
	return nil
}

func (m *MockParticipationDb) filter(match func(common.ParticipationRecord) bool) ([]common.ParticipationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]common.ParticipationRecord, 0)
	for _, r := range m.Records {
		if match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockParticipationDb) FindByPoll(ctx context.Context, pollId string) ([]common.ParticipationRecord, error) {
	return m.filter(func(r common.ParticipationRecord) bool {
		return r.PollId == pollId
	})
}

func (m *MockParticipationDb) FindByParticipant(ctx context.Context, participant string) ([]common.ParticipationRecord, error) {
	return m.filter(func(r common.ParticipationRecord) bool {
		return r.Participant == participant
	})
}

func (m *MockParticipationDb) FindUnclaimed(ctx context.Context, participant string) ([]common.ParticipationRecord, error) {
	return m.filter(func(r common.ParticipationRecord) bool {
		return r.Participant == participant && !r.Claimed
	})
}
