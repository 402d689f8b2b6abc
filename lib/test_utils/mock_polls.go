package test_utils

import (
	"context"
	"slices"
	"sync"

	"reward-polls/modules/aggregate"
	"reward-polls/modules/common"

	"github.com/moznion/go-optional"
)

type MockPollsDb struct {
	aggregate.Plugin
	mu    sync.Mutex
	Polls map[string]common.Poll
	// Err makes every call fail while set
	Err error
}

func NewMockPollsDb() *MockPollsDb {
	return &MockPollsDb{Polls: make(map[string]common.Poll)}
}

func (m *MockPollsDb) Upsert(ctx context.Context, poll common.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Polls[poll.Id] = poll
	return nil
}

func (m *MockPollsDb) Get(ctx context.Context, id string) (optional.Option[common.Poll], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	poll, ok := m.Polls[id]
	if !ok {
		return optional.None[common.Poll](), nil
	}
	return optional.Some(poll), nil
}

func (m *MockPollsDb) FindByCreator(ctx context.Context, creator string) ([]common.Poll, error) {
	all, err := m.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]common.Poll, 0)
	for _, poll := range all {
		if poll.Creator == creator {
			out = append(out, poll)
		}
	}
	slices.SortStableFunc(out, func(a, b common.Poll) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (m *MockPollsDb) ListAll(ctx context.Context) ([]common.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]common.Poll, 0, len(m.Polls))
	for _, poll := range m.Polls {
		out = append(out, poll)
	}
	slices.SortFunc(out, func(a, b common.Poll) int {
		if c := b.ActiveUntil.Compare(a.ActiveUntil); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (m *MockPollsDb) SetClaimState(ctx context.Context, id string, claimed uint32, refunded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	poll, ok := m.Polls[id]
	if !ok || poll.ClaimedParticipants > claimed {
		return nil
	}
	poll.ClaimedParticipants = claimed
	if refunded {
		poll.Refunded = true
	}
	m.Polls[id] = poll
	return nil
}
