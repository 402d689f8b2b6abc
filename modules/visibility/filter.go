package visibility

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"reward-polls/lib/logger"
	"reward-polls/modules/common"
	pollsDb "reward-polls/modules/db/rewards/polls"
	"reward-polls/modules/ledger"

	"github.com/JustinKnueppel/go-result"
	"golang.org/x/sync/errgroup"
)

const DEFAULT_CONCURRENCY = 8

// Filter decides which polls a viewer is shown. It holds no poll state:
// every call reads the metadata store and the ledger afresh. The solvency
// check is a hint only, claims are authorized by the ledger.
type Filter struct {
	polls pollsDb.Polls
	gw    ledger.Gateway
	conf  common.PollsConfig

	concurrency int
	now         func() time.Time
	log         *slog.Logger
}

type Option func(*Filter)

func WithClock(now func() time.Time) Option {
	return func(f *Filter) {
		f.now = now
	}
}

func WithConcurrency(n int) Option {
	return func(f *Filter) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(f *Filter) {
		f.log = log
	}
}

func New(polls pollsDb.Polls, gw ledger.Gateway, conf common.PollsConfig, opts ...Option) *Filter {
	f := &Filter{
		polls:       polls,
		gw:          gw,
		conf:        conf,
		concurrency: DEFAULT_CONCURRENCY,
		now:         time.Now,
		log:         logger.New("visibility"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Filter) location() *time.Location {
	if f.conf == nil {
		return time.UTC
	}
	return f.conf.Location()
}

// ListVisiblePolls returns the live polls not authored by viewer whose
// vault can still pay one reward, latest deadline first. A poll whose
// vault cannot be read is left out and logged. Only a failure to list the
// metadata store is returned.
func (f *Filter) ListVisiblePolls(ctx context.Context, viewer string) ([]common.Poll, error) {
	all, err := f.polls.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing polls: %w", err)
	}

	now := f.now()
	loc := f.location()
	candidates := make([]common.Poll, 0, len(all))
	for _, poll := range all {
		if !common.IsLive(poll.ActiveUntil, now, loc) {
			continue
		}
		if poll.Creator == viewer {
			continue
		}
		candidates = append(candidates, poll)
	}

	solvent := make([]result.Result[bool], len(candidates))
	g := errgroup.Group{}
	g.SetLimit(f.concurrency)
	for i, poll := range candidates {
		g.Go(func() error {
			solvent[i] = f.checkSolvency(ctx, poll)
			return nil
		})
	}
	_ = g.Wait()

	visible := make([]common.Poll, 0, len(candidates))
	for i, poll := range candidates {
		res := solvent[i]
		if res.IsErr() {
			f.log.Warn("dropping poll from listing",
				"poll", poll.Id,
				"viewer", viewer,
				"err", fmt.Errorf("%w: %w", common.ErrVisibilityCheckDegraded, res.UnwrapErr()),
			)
			continue
		}
		if res.Unwrap() {
			visible = append(visible, poll)
		}
	}

	slices.SortStableFunc(visible, func(a, b common.Poll) int {
		return b.ActiveUntil.Compare(a.ActiveUntil)
	})
	return visible, nil
}

func (f *Filter) checkSolvency(ctx context.Context, poll common.Poll) result.Result[bool] {
	vault := f.gw.DeriveAddress(common.NAMESPACE_VAULT, poll.Id)
	balance, err := ledger.ReadBalance(ctx, f.gw, vault)
	if err != nil {
		return result.Err[bool](err)
	}
	return result.Ok(balance >= poll.RewardPerParticipant)
}
