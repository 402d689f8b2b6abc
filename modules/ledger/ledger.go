package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"reward-polls/lib/encoding"
	"reward-polls/lib/logger"
	"reward-polls/modules/aggregate"
	"reward-polls/modules/common"
	ledgerDb "reward-polls/modules/db/rewards/ledger"

	"github.com/chebyrash/promise"
	"github.com/multiformats/go-multicodec"
)

// Gateway is the only way the rest of the node talks to the ledger.
// Execute either applies an instruction completely or not at all. A
// *Rejection means the ledger refused it, any other error means the
// outcome is unknown.
type Gateway interface {
	DeriveAddress(namespace, id string) Address
	ReadAccount(ctx context.Context, addr Address) ([]byte, error)
	Execute(ctx context.Context, ins Instruction, signer Signer) (Confirmation, error)
}

type Confirmation struct {
	TxId      string
	Seq       uint64
	Timestamp time.Time
}

// Ledger is an in-process ledger. Instructions are applied one at a time
// and every committed instruction is appended to the journal, which is
// replayed on Init.
type Ledger struct {
	journal ledgerDb.Journal
	conf    common.PollsConfig

	mu       sync.RWMutex
	accounts map[Address][]byte
	pollIds  []string
	seq      uint64

	now func() time.Time
	log *slog.Logger
}

var _ Gateway = &Ledger{}
var _ aggregate.Plugin = &Ledger{}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) {
		l.log = log
	}
}

// New creates a ledger. journal may be nil, in which case nothing survives
// a restart.
func New(journal ledgerDb.Journal, conf common.PollsConfig, opts ...Option) *Ledger {
	l := &Ledger{
		journal:  journal,
		conf:     conf,
		accounts: make(map[Address][]byte),
		now:      time.Now,
		log:      logger.New("ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Init() error {
	if l.journal == nil {
		return nil
	}

	ctx := context.Background()
	entries, err := l.journal.All(ctx)
	if err != nil {
		return fmt.Errorf("reading ledger journal: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entry := range entries {
		ins, err := DecodeInstruction(entry.Payload)
		if err != nil {
			return fmt.Errorf("journal entry %d: %w", entry.Seq, err)
		}
		// entries passed every check when committed, clock and timezone
		// dependent ones are not run again
		s := newSession(l.accounts, l.location())
		s.replay = true
		if err := s.apply(ins, entry.Timestamp); err != nil {
			return fmt.Errorf("replaying journal entry %d: %w", entry.Seq, err)
		}
		s.commit()
		l.indexPoll(ins)
		l.seq = entry.Seq
	}

	l.log.Info("ledger replayed", "entries", len(entries), "accounts", len(l.accounts))
	return nil
}

func (l *Ledger) Start() *promise.Promise[any] {
	return aggregate.Resolved()
}

func (l *Ledger) Stop() error {
	return nil
}

func (l *Ledger) location() *time.Location {
	if l.conf == nil {
		return time.UTC
	}
	return l.conf.Location()
}

func (l *Ledger) indexPoll(ins Instruction) {
	if cp, ok := ins.(CreatePoll); ok {
		l.pollIds = append(l.pollIds, cp.PollId)
	}
}

// PollIds lists every poll created on the ledger, oldest first.
func (l *Ledger) PollIds(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.pollIds), nil
}

func (l *Ledger) DeriveAddress(namespace, id string) Address {
	return DeriveAddress(namespace, id)
}

func (l *Ledger) ReadAccount(ctx context.Context, addr Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	data, ok := l.accounts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (l *Ledger) Execute(ctx context.Context, ins Instruction, signer Signer) (Confirmation, error) {
	if ins == nil {
		return Confirmation{}, reject(InvalidInstruction, "nil instruction")
	}
	if _, ok := ins.(credit); ok {
		return Confirmation{}, reject(Unauthorized, "credit cannot be submitted")
	}
	if signer == nil {
		return Confirmation{}, reject(Unauthorized, "unsigned %s", ins.Kind())
	}

	payload, err := EncodeInstruction(ins)
	if err != nil {
		return Confirmation{}, reject(InvalidInstruction, "%v", err)
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		return Confirmation{}, fmt.Errorf("signing %s: %w", ins.Kind(), err)
	}

	principal := signer.Principal()
	if principal != ins.Authority() {
		return Confirmation{}, reject(Unauthorized, "%s must be signed by %s", ins.Kind(), ins.Authority())
	}
	if !VerifySignature(principal, payload, sig) {
		return Confirmation{}, reject(BadSignature, "%s", ins.Kind())
	}

	return l.commit(ctx, ins, payload, principal)
}

// Credit mints amount into the token account of owner, opening it when
// needed. It is how genesis balances and faucets get funded.
func (l *Ledger) Credit(ctx context.Context, owner string, amount uint64) (Confirmation, error) {
	ins := credit{Owner: owner, Amount: amount}
	payload, err := EncodeInstruction(ins)
	if err != nil {
		return Confirmation{}, err
	}
	return l.commit(ctx, ins, payload, "")
}

func (l *Ledger) commit(ctx context.Context, ins Instruction, payload []byte, signer string) (Confirmation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Confirmation{}, err
	}

	now := l.now().UTC().Truncate(time.Millisecond)
	s := newSession(l.accounts, l.location())
	if err := s.apply(ins, now); err != nil {
		if rejection, ok := RejectionOf(err); ok {
			l.log.Debug("instruction rejected", "kind", ins.Kind(), "reason", rejection.Reason, "msg", rejection.Msg)
		}
		return Confirmation{}, err
	}

	txCid, err := encoding.HashBytes(payload, multicodec.DagCbor)
	if err != nil {
		return Confirmation{}, err
	}
	conf := Confirmation{
		TxId:      txCid.String(),
		Seq:       l.seq + 1,
		Timestamp: now,
	}

	if l.journal != nil {
		err := l.journal.Append(ctx, ledgerDb.JournalEntry{
			Seq:       conf.Seq,
			TxId:      conf.TxId,
			Kind:      ins.Kind(),
			Signer:    signer,
			Payload:   payload,
			Timestamp: now,
		})
		if err != nil {
			return Confirmation{}, fmt.Errorf("journal append: %w", err)
		}
	}

	s.commit()
	l.indexPoll(ins)
	l.seq = conf.Seq
	l.log.Debug("instruction committed", "kind", ins.Kind(), "seq", conf.Seq, "tx", conf.TxId)
	return conf, nil
}
