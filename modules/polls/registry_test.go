package polls_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"reward-polls/lib/logger"
	"reward-polls/lib/test_utils"
	"reward-polls/modules/common"
	"reward-polls/modules/ledger"
	"reward-polls/modules/polls"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)

type fixture struct {
	ledger   *ledger.Ledger
	store    *test_utils.MockPollsDb
	registry *polls.Registry
	creator  *ledger.KeySigner
}

func newFixture(t *testing.T, funds uint64) *fixture {
	clock := func() time.Time { return now }
	l := ledger.New(nil, nil, ledger.WithClock(clock), ledger.WithLogger(logger.Discard()))
	require.NoError(t, l.Init())

	creator, err := ledger.GenerateKeySigner()
	require.NoError(t, err)
	if funds > 0 {
		_, err = l.Credit(context.Background(), creator.Principal(), funds)
		require.NoError(t, err)
	}

	store := test_utils.NewMockPollsDb()
	ids := 0
	return &fixture{
		ledger: l,
		store:  store,
		registry: polls.New(l, store, nil,
			polls.WithClock(clock),
			polls.WithLogger(logger.Discard()),
			polls.WithIdGenerator(func() string {
				ids++
				return "poll" + string(rune('0'+ids))
			}),
		),
		creator: creator,
	}
}

func validRequest() polls.CreatePollRequest {
	return polls.CreatePollRequest{
		Topic:                "Team lunch",
		RewardPerParticipant: 10,
		TotalParticipants:    3,
		ActiveUntil:          time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		Questions: []common.Question{
			{Type: common.QuestionSingle, Options: []string{"pizza", "sushi"}},
			{Type: common.QuestionMultiple, Options: []string{"mon", "tue", "wed"}},
		},
	}
}

func TestCreatePollFundsVault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)

	poll, err := f.registry.CreatePoll(ctx, validRequest(), f.creator)
	require.NoError(t, err)
	assert.Equal(t, "poll1", poll.Id)
	assert.Equal(t, f.creator.Principal(), poll.Creator)
	assert.Equal(t, ledger.VaultAddress("poll1").String(), poll.Vault)

	vault, err := ledger.ReadBalance(ctx, f.ledger, ledger.VaultAddress(poll.Id))
	require.NoError(t, err)
	assert.Equal(t, uint64(30), vault)

	stored, ok := f.store.Polls[poll.Id]
	require.True(t, ok)
	assert.Equal(t, poll.Topic, stored.Topic)
}

func TestCreatePollInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 29)

	_, err := f.registry.CreatePoll(ctx, validRequest(), f.creator)
	require.ErrorIs(t, err, common.ErrInsufficientFunds)
	assert.Empty(t, f.store.Polls)

	exists, err := ledger.HasAccount(ctx, f.ledger, ledger.PollAddress("poll1"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreatePollValidation(t *testing.T) {
	cases := map[string]func(*polls.CreatePollRequest){
		"empty topic":       func(r *polls.CreatePollRequest) { r.Topic = "" },
		"blank topic":       func(r *polls.CreatePollRequest) { r.Topic = "   " },
		"long topic":        func(r *polls.CreatePollRequest) { r.Topic = strings.Repeat("a", 201) },
		"zero reward":       func(r *polls.CreatePollRequest) { r.RewardPerParticipant = 0 },
		"zero participants": func(r *polls.CreatePollRequest) { r.TotalParticipants = 0 },
		"no questions":      func(r *polls.CreatePollRequest) { r.Questions = nil },
		"eleven questions": func(r *polls.CreatePollRequest) {
			for len(r.Questions) < 11 {
				r.Questions = append(r.Questions, r.Questions[0])
			}
		},
		"no options":    func(r *polls.CreatePollRequest) { r.Questions[0].Options = nil },
		"empty option":  func(r *polls.CreatePollRequest) { r.Questions[0].Options = []string{"a", ""} },
		"long option":   func(r *polls.CreatePollRequest) { r.Questions[0].Options = []string{strings.Repeat("x", 101)} },
		"bad type":      func(r *polls.CreatePollRequest) { r.Questions[0].Type = "Ranked" },
		"deadline past": func(r *polls.CreatePollRequest) { r.ActiveUntil = now.AddDate(0, 0, -1) },
		"no deadline":   func(r *polls.CreatePollRequest) { r.ActiveUntil = time.Time{} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, 100)
			req := validRequest()
			mutate(&req)

			_, err := f.registry.CreatePoll(context.Background(), req, f.creator)
			require.ErrorIs(t, err, common.ErrInvalidPollSpecification)
			assert.Equal(t, uint64(100), balance(t, f.ledger, f.creator.Principal()))
		})
	}
}

func TestCreatePollEndingToday(t *testing.T) {
	f := newFixture(t, 100)
	req := validRequest()
	req.ActiveUntil = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

	_, err := f.registry.CreatePoll(context.Background(), req, f.creator)
	require.NoError(t, err)
}

func TestCreatePollMetadataFailure(t *testing.T) {
	f := newFixture(t, 100)
	f.store.Err = errors.New("mongo down")

	poll, err := f.registry.CreatePoll(context.Background(), validRequest(), f.creator)
	require.Error(t, err)
	assert.Equal(t, "poll1", poll.Id)

	// the ledger is authoritative, the poll exists there
	got, err := f.registry.GetPoll(context.Background(), poll.Id)
	require.NoError(t, err)
	assert.Equal(t, poll.Topic, got.Topic)
}

func TestGetPoll(t *testing.T) {
	f := newFixture(t, 100)

	_, err := f.registry.GetPoll(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrPollNotFound)

	poll, err := f.registry.CreatePoll(context.Background(), validRequest(), f.creator)
	require.NoError(t, err)

	got, err := f.registry.GetPoll(context.Background(), poll.Id)
	require.NoError(t, err)
	assert.Equal(t, poll.Questions, got.Questions)
	assert.Equal(t, uint32(0), got.ClaimedParticipants)
	assert.True(t, poll.ActiveUntil.Equal(got.ActiveUntil))
}

func TestPollsByCreator(t *testing.T) {
	f := newFixture(t, 100)

	first, err := f.registry.CreatePoll(context.Background(), validRequest(), f.creator)
	require.NoError(t, err)
	now = now.Add(time.Minute)
	defer func() { now = now.Add(-time.Minute) }()
	second, err := f.registry.CreatePoll(context.Background(), validRequest(), f.creator)
	require.NoError(t, err)

	list, err := f.registry.PollsByCreator(context.Background(), f.creator.Principal())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Id, list[0].Id)
	assert.Equal(t, first.Id, list[1].Id)
}

func TestRefundPoll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)

	poll, err := f.registry.CreatePoll(ctx, validRequest(), f.creator)
	require.NoError(t, err)

	_, err = f.registry.RefundPoll(ctx, poll.Id, f.creator)
	assert.True(t, ledger.IsRejected(err, ledger.PollStillActive), err)

	_, err = f.registry.RefundPoll(ctx, poll.Id, nil)
	require.ErrorIs(t, err, common.ErrMissingSigner)

	saved := now
	now = time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)
	defer func() { now = saved }()

	_, err = f.registry.RefundPoll(ctx, poll.Id, f.creator)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), balance(t, f.ledger, f.creator.Principal()))
	assert.True(t, f.store.Polls[poll.Id].Refunded)

	_, err = f.registry.RefundPoll(ctx, "missing", f.creator)
	require.ErrorIs(t, err, common.ErrPollNotFound)
}

func balance(t *testing.T, gw ledger.Gateway, owner string) uint64 {
	b, err := ledger.ReadBalance(context.Background(), gw, ledger.TokenAddress(owner))
	require.NoError(t, err)
	return b
}
