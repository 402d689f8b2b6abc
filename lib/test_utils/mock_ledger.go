package test_utils

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"reward-polls/modules/aggregate"
	ledgerDb "reward-polls/modules/db/rewards/ledger"
	"reward-polls/modules/ledger"
)

type MockJournal struct {
	aggregate.Plugin
	mu      sync.Mutex
	Entries []ledgerDb.JournalEntry
	// AppendErr makes every Append fail while set
	AppendErr error
}

func (m *MockJournal) Append(ctx context.Context, entry ledgerDb.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	for _, e := range m.Entries {
		if e.Seq == entry.Seq {
			return errors.New("duplicate journal sequence")
		}
	}
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockJournal) All(ctx context.Context) ([]ledgerDb.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.Entries)
	slices.SortFunc(out, func(a, b ledgerDb.JournalEntry) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out, nil
}

var ErrLedgerUnreachable = errors.New("ledger unreachable")

// FlakyGateway wraps a gateway and fails selected calls with
// ErrLedgerUnreachable. A nil hook never fails.
type FlakyGateway struct {
	ledger.Gateway
	FailRead    func(addr ledger.Address) bool
	FailExecute func(ins ledger.Instruction) bool
	// FailAfterExecute applies the instruction but reports a failure, like a
	// connection lost before the confirmation arrived
	FailAfterExecute func(ins ledger.Instruction) bool
}

func (f *FlakyGateway) ReadAccount(ctx context.Context, addr ledger.Address) ([]byte, error) {
	if f.FailRead != nil && f.FailRead(addr) {
		return nil, ErrLedgerUnreachable
	}
	return f.Gateway.ReadAccount(ctx, addr)
}

func (f *FlakyGateway) Execute(ctx context.Context, ins ledger.Instruction, signer ledger.Signer) (ledger.Confirmation, error) {
	if f.FailExecute != nil && f.FailExecute(ins) {
		return ledger.Confirmation{}, ErrLedgerUnreachable
	}
	conf, err := f.Gateway.Execute(ctx, ins, signer)
	if err == nil && f.FailAfterExecute != nil && f.FailAfterExecute(ins) {
		return ledger.Confirmation{}, ErrLedgerUnreachable
	}
	return conf, err
}
