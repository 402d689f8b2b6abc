package pollsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"reward-polls/lib/logger"
	agg "reward-polls/modules/aggregate"
	"reward-polls/modules/common"
	pollsDb "reward-polls/modules/db/rewards/polls"
	"reward-polls/modules/ledger"
	"reward-polls/modules/participation"

	"github.com/chebyrash/promise"
	"github.com/robfig/cron/v3"
)

// Source is the ledger as seen by the syncer.
type Source interface {
	ledger.Gateway
	PollIds(ctx context.Context) ([]string, error)
}

// Syncer copies ledger state into the metadata and participation stores:
// polls whose metadata was never stored, claimed counts and refunds of
// polls, and claimed flags whose update was lost after a confirmed
// transfer. The ledger is never written.
type Syncer struct {
	conf          SyncConfig
	polls         pollsDb.Polls
	participation *participation.Ledger
	gw            Source

	cron    *cron.Cron
	stop    chan struct{}
	running atomic.Bool
	log     *slog.Logger
}

type Report struct {
	Polls         int
	PollsRestored int
	PollsUpdated  int
	FlagsRepaired int
}

var _ agg.Plugin = &Syncer{}

func New(conf SyncConfig, polls pollsDb.Polls, p *participation.Ledger, gw Source) *Syncer {
	return &Syncer{
		conf:          conf,
		polls:         polls,
		participation: p,
		gw:            gw,
		cron:          cron.New(),
		stop:          make(chan struct{}),
		log:           logger.New("pollsync"),
	}
}

func (s *Syncer) Init() error {
	schedule := s.conf.Get().Schedule
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	return nil
}

func (s *Syncer) Start() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-s.stop
			cancel()
		}()

		go s.task(ctx)

		_, err := s.cron.AddFunc(s.conf.Get().Schedule, func() {
			select {
			case <-s.stop:
				return
			default:
				go s.task(ctx)
			}
		})
		if err != nil {
			reject(err)
			return
		}
		s.cron.Start()
		resolve(nil)
	})
}

func (s *Syncer) Stop() error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.cron.Stop().Done()
	return nil
}

func (s *Syncer) task(ctx context.Context) {
	// a slow pass must not pile up behind the next tick
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	defer s.running.Store(false)

	report, err := s.SyncOnce(ctx)
	if err != nil {
		s.log.Warn("poll sync incomplete", "err", err)
	}
	s.log.Debug("poll sync done", "polls", report.Polls, "restored", report.PollsRestored, "updated", report.PollsUpdated, "repaired", report.FlagsRepaired)
}

// SyncOnce runs one pass over every known poll. A failing poll does not
// stop the pass, its error is joined into the result.
func (s *Syncer) SyncOnce(ctx context.Context) (Report, error) {
	report := Report{}
	all, err := s.polls.ListAll(ctx)
	if err != nil {
		return report, err
	}

	restored, errs := s.restoreMissing(ctx, all)
	report.PollsRestored = len(restored)
	all = append(all, restored...)

	for _, cached := range all {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		report.Polls++

		updated, err := s.syncPoll(ctx, cached)
		if err != nil {
			errs = append(errs, fmt.Errorf("poll %s: %w", cached.Id, err))
			continue
		}
		if updated {
			report.PollsUpdated++
		}

		repaired, err := s.repairFlags(ctx, cached.Id)
		report.FlagsRepaired += repaired
		if err != nil {
			errs = append(errs, fmt.Errorf("poll %s flags: %w", cached.Id, err))
		}
	}
	return report, errors.Join(errs...)
}

// restoreMissing stores the metadata of ledger polls the store has never
// seen, as left behind by a failed upsert after creation.
func (s *Syncer) restoreMissing(ctx context.Context, cached []common.Poll) ([]common.Poll, []error) {
	ids, err := s.gw.PollIds(ctx)
	if err != nil {
		return nil, []error{fmt.Errorf("listing ledger polls: %w", err)}
	}

	known := make(map[string]struct{}, len(cached))
	for _, poll := range cached {
		known[poll.Id] = struct{}{}
	}

	var restored []common.Poll
	var errs []error
	for _, id := range ids {
		if _, ok := known[id]; ok {
			continue
		}
		account, err := ledger.ReadPoll(ctx, s.gw, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("poll %s: %w", id, err))
			continue
		}
		poll := account.Poll()
		if err := s.polls.Upsert(ctx, poll); err != nil {
			errs = append(errs, fmt.Errorf("restoring poll %s: %w", id, err))
			continue
		}
		s.log.Info("poll metadata restored", "poll", id, "creator", poll.Creator)
		restored = append(restored, poll)
	}
	return restored, errs
}

func (s *Syncer) syncPoll(ctx context.Context, cached common.Poll) (bool, error) {
	account, err := ledger.ReadPoll(ctx, s.gw, cached.Id)
	if err != nil {
		return false, err
	}
	if account.ClaimedParticipants == cached.ClaimedParticipants && account.Refunded == cached.Refunded {
		return false, nil
	}
	return true, s.polls.SetClaimState(ctx, cached.Id, account.ClaimedParticipants, account.Refunded)
}

func (s *Syncer) repairFlags(ctx context.Context, pollId string) (int, error) {
	records, err := s.participation.RecordsForPoll(ctx, pollId)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, record := range records {
		if record.Claimed {
			continue
		}
		addr := s.gw.DeriveAddress(common.NAMESPACE_CLAIM, record.PollId+"/"+record.Participant)
		data, err := s.gw.ReadAccount(ctx, addr)
		if errors.Is(err, ledger.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return repaired, err
		}
		receipt, err := ledger.DecodeClaimReceipt(data)
		if err != nil {
			return repaired, err
		}
		if err := s.participation.MarkClaimed(ctx, record.PollId, record.Participant, "", receipt.ClaimedAt); err != nil {
			return repaired, err
		}
		repaired++
	}
	return repaired, nil
}
