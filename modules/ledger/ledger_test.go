package ledger_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"reward-polls/lib/logger"
	"reward-polls/lib/test_utils"
	"reward-polls/modules/common"
	"reward-polls/modules/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLedger struct {
	*ledger.Ledger
	journal *test_utils.MockJournal
	now     time.Time
}

func newTestLedger(t *testing.T) *testLedger {
	tl := &testLedger{
		journal: &test_utils.MockJournal{},
		now:     time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	tl.Ledger = ledger.New(tl.journal, nil,
		ledger.WithClock(func() time.Time { return tl.now }),
		ledger.WithLogger(logger.Discard()),
	)
	require.NoError(t, tl.Init())
	return tl
}

func newSigner(t *testing.T) *ledger.KeySigner {
	signer, err := ledger.GenerateKeySigner()
	require.NoError(t, err)
	return signer
}

func balanceOf(t *testing.T, gw ledger.Gateway, owner string) uint64 {
	balance, err := ledger.ReadBalance(context.Background(), gw, ledger.TokenAddress(owner))
	require.NoError(t, err)
	return balance
}

func createPoll(pollId, creator string, reward uint64, total uint32) ledger.CreatePoll {
	return ledger.CreatePoll{
		PollId:               pollId,
		Creator:              creator,
		Topic:                "lunch",
		RewardPerParticipant: reward,
		TotalParticipants:    total,
		ActiveUntil:          time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC),
		Questions: []common.Question{
			{Type: common.QuestionSingle, Options: []string{"pizza", "sushi"}},
		},
	}
}

func TestDeriveAddress(t *testing.T) {
	a := ledger.DeriveAddress(common.NAMESPACE_POLL, "p1")
	assert.Equal(t, a, ledger.DeriveAddress(common.NAMESPACE_POLL, "p1"))
	assert.NotEqual(t, a, ledger.DeriveAddress(common.NAMESPACE_VAULT, "p1"))
	assert.NotEqual(t, a, ledger.DeriveAddress(common.NAMESPACE_POLL, "p2"))
	assert.Equal(t, ledger.VaultAddress("p1"), ledger.DeriveAddress(common.NAMESPACE_VAULT, "p1"))
}

func TestInstructionRoundTrip(t *testing.T) {
	ins := createPoll("p1", "alice", 10, 3)
	payload, err := ledger.EncodeInstruction(ins)
	require.NoError(t, err)

	decoded, err := ledger.DecodeInstruction(payload)
	require.NoError(t, err)
	cp, ok := decoded.(ledger.CreatePoll)
	require.True(t, ok)
	assert.Equal(t, ins.PollId, cp.PollId)
	assert.Equal(t, ins.Questions, cp.Questions)
	assert.True(t, ins.ActiveUntil.Equal(cp.ActiveUntil))

	again, err := ledger.EncodeInstruction(cp)
	require.NoError(t, err)
	assert.Equal(t, payload, again)
}

func TestCreatePollEscrows(t *testing.T) {
	ctx := context.Background()
	tl := newTestLedger(t)
	creator := newSigner(t)

	_, err := tl.Credit(ctx, creator.Principal(), 100)
	require.NoError(t, err)

	conf, err := tl.Execute(ctx, createPoll("p1", creator.Principal(), 10, 3), creator)
	require.NoError(t, err)
	assert.NotEmpty(t, conf.TxId)
	assert.Equal(t, uint64(2), conf.Seq)

	assert.Equal(t, uint64(70), balanceOf(t, tl, creator.Principal()))
	vault, err := ledger.ReadBalance(ctx, tl, ledger.VaultAddress("p1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(30), vault)

	poll, err := ledger.ReadPoll(ctx, tl, "p1")
	require.NoError(t, err)
	assert.Equal(t, creator.Principal(), poll.Creator)
	assert.Equal(t, uint32(0), poll.ClaimedParticipants)
	assert.Equal(t, ledger.VaultAddress("p1"), poll.Vault)
}

func TestCreatePollRejections(t *testing.T) {
	ctx := context.Background()
	tl := newTestLedger(t)
	creator := newSigner(t)
	other := newSigner(t)

	_, err := tl.Execute(ctx, createPoll("p1", creator.Principal(), 10, 3), creator)
	assert.True(t, ledger.IsRejected(err, ledger.InsufficientFunds), err)

	_, err = tl.Credit(ctx, creator.Principal(), 20)
	require.NoError(t, err)

	_, err = tl.Execute(ctx, createPoll("p1", creator.Principal(), 10, 3), creator)
	assert.True(t, ledger.IsRejected(err, ledger.InsufficientFunds), err)
	assert.Equal(t, uint64(20), balanceOf(t, tl, creator.Principal()))

	exists, err := ledger.HasAccount(ctx, tl, ledger.PollAddress("p1"))
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = tl.Execute(ctx, createPoll("p1", creator.Principal(), 10, 1), other)
	assert.True(t, ledger.IsRejected(err, ledger.Unauthorized), err)

	_, err = tl.Execute(ctx, createPoll("p1", creator.Principal(), 10, 1), nil)
	assert.True(t, ledger.IsRejected(err, ledger.Unauthorized), err)

	_, err = tl.Execute(ctx, createPoll("p1", creator.Principal(), 10, 1), creator)
	require.NoError(t, err)
	_, err = tl.Execute(ctx, createPoll("p1", creator.Principal(), 10, 1), creator)
	assert.True(t, ledger.IsRejected(err, ledger.PollExists), err)
}

func TestBalancesStayWithinInt64(t *testing.T) {
	ctx := context.Background()
	tl := newTestLedger(t)
	creator := newSigner(t)
	participant := newSigner(t)

	_, err := tl.Execute(ctx, createPoll("p1", creator.Principal(), math.MaxUint64/2, 3), creator)
	assert.True(t, ledger.IsRejected(err, ledger.Overflow), err)

	_, err = tl.Credit(ctx, creator.Principal(), 30)
	require.NoError(t, err)
	_, err = tl.Execute(ctx, createPoll("p1", creator.Principal(), 10, 3), creator)
	require.NoError(t, err)

	_, err = tl.Credit(ctx, participant.Principal(), math.MaxInt64-5)
	require.NoError(t, err)
	_, err = tl.Credit(ctx, participant.Principal(), 10)
	assert.True(t, ledger.IsRejected(err, ledger.Overflow), err)

	_, err = tl.Execute(ctx, ledger.ClaimReward{PollId: "p1", Participant: participant.Principal()}, participant)
	assert.True(t, ledger.IsRejected(err, ledger.Overflow), err)

	vault, err := ledger.ReadBalance(ctx, tl, ledger.VaultAddress("p1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(30), vault)
	assert.Equal(t, uint64(math.MaxInt64-5), balanceOf(t, tl, participant.Principal()))
}

func TestClaimReward(t *testing.T) {
	ctx := context.Background()
	tl := newTestLedger(t)
	creator := newSigner(t)
	bob := newSigner(t)
	carol := newSigner(t)
	dave := newSigner(t)

	_, err := tl.Credit(ctx, creator.Principal(), 20)
	require.NoError(t, err)
	_, err = tl.Execute(ctx, createPoll("p1", creator.Principal(), 10, 2), creator)
	require.NoError(t, err)

	claim := func(s *ledger.KeySigner) error {
		_, err := tl.Execute(ctx, ledger.ClaimReward{PollId: "p1", Participant: s.Principal()}, s)
		return err
	}
	open := func(s *ledger.KeySigner) {
		_, err := tl.Execute(ctx, ledger.OpenAccount{Owner: s.Principal()}, s)
		require.NoError(t, err)
	}

	assert.True(t, ledger.IsRejected(claim(bob), ledger.RecipientNotProvisioned))

	open(bob)
	require.NoError(t, claim(bob))
	assert.Equal(t, uint64(10), balanceOf(t, tl, bob.Principal()))
	assert.True(t, ledger.IsRejected(claim(bob), ledger.AlreadyClaimed))

	open(carol)
	require.NoError(t, claim(carol))

	open(dave)
	assert.True(t, ledger.IsRejected(claim(dave), ledger.AlreadyFullyClaimed))
	assert.Equal(t, uint64(0), balanceOf(t, tl, dave.Principal()))

	poll, err := ledger.ReadPoll(ctx, tl, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), poll.ClaimedParticipants)
	vault, err := ledger.ReadBalance(ctx, tl, poll.Vault)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), vault)

	_, err = tl.Execute(ctx, ledger.ClaimReward{PollId: "missing", Participant: bob.Principal()}, bob)
	assert.True(t, ledger.IsRejected(err, ledger.PollNotFound), err)

	_, err = tl.Execute(ctx, ledger.OpenAccount{Owner: bob.Principal()}, bob)
	assert.True(t, ledger.IsRejected(err, ledger.AccountExists), err)
}

func TestConcurrentClaimsNeverOverpay(t *testing.T) {
	ctx := context.Background()
	tl := newTestLedger(t)
	creator := newSigner(t)

	_, err := tl.Credit(ctx, creator.Principal(), 30)
	require.NoError(t, err)
	_, err = tl.Execute(ctx, createPoll("p1", creator.Principal(), 10, 3), creator)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var paid atomic.Int32
	for i := 0; i < 10; i++ {
		s := newSigner(t)
		_, err := tl.Execute(ctx, ledger.OpenAccount{Owner: s.Principal()}, s)
		require.NoError(t, err)

		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tl.Execute(ctx, ledger.ClaimReward{PollId: "p1", Participant: s.Principal()}, s)
			if err == nil {
				paid.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), paid.Load())
	poll, err := ledger.ReadPoll(ctx, tl, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), poll.ClaimedParticipants)
}

func TestRefundPoll(t *testing.T) {
	ctx := context.Background()
	tl := newTestLedger(t)
	creator := newSigner(t)
	bob := newSigner(t)

	_, err := tl.Credit(ctx, creator.Principal(), 30)
	require.NoError(t, err)
	_, err = tl.Execute(ctx, createPoll("p1", creator.Principal(), 10, 3), creator)
	require.NoError(t, err)
	_, err = tl.Execute(ctx, ledger.OpenAccount{Owner: bob.Principal()}, bob)
	require.NoError(t, err)
	_, err = tl.Execute(ctx, ledger.ClaimReward{PollId: "p1", Participant: bob.Principal()}, bob)
	require.NoError(t, err)

	refund := ledger.RefundPoll{PollId: "p1", Creator: creator.Principal()}

	// the deadline is the end of the active day
	tl.now = time.Date(2025, time.March, 5, 23, 59, 0, 0, time.UTC)
	_, err = tl.Execute(ctx, refund, creator)
	assert.True(t, ledger.IsRejected(err, ledger.PollStillActive), err)

	tl.now = time.Date(2025, time.March, 6, 0, 0, 0, 0, time.UTC)
	_, err = tl.Execute(ctx, ledger.RefundPoll{PollId: "p1", Creator: bob.Principal()}, bob)
	assert.True(t, ledger.IsRejected(err, ledger.Unauthorized), err)

	_, err = tl.Execute(ctx, refund, creator)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), balanceOf(t, tl, creator.Principal()))

	_, err = tl.Execute(ctx, refund, creator)
	assert.True(t, ledger.IsRejected(err, ledger.AlreadyRefunded), err)

	poll, err := ledger.ReadPoll(ctx, tl, "p1")
	require.NoError(t, err)
	assert.True(t, poll.Refunded)
}

func TestJournalReplay(t *testing.T) {
	ctx := context.Background()
	tl := newTestLedger(t)
	creator := newSigner(t)
	bob := newSigner(t)

	_, err := tl.Credit(ctx, creator.Principal(), 50)
	require.NoError(t, err)
	_, err = tl.Execute(ctx, createPoll("p1", creator.Principal(), 10, 3), creator)
	require.NoError(t, err)
	_, err = tl.Execute(ctx, ledger.OpenAccount{Owner: bob.Principal()}, bob)
	require.NoError(t, err)
	_, err = tl.Execute(ctx, ledger.ClaimReward{PollId: "p1", Participant: bob.Principal()}, bob)
	require.NoError(t, err)

	// rejected instructions are not journaled
	_, err = tl.Execute(ctx, ledger.ClaimReward{PollId: "p1", Participant: bob.Principal()}, bob)
	require.Error(t, err)
	require.Len(t, tl.journal.Entries, 4)

	restored := ledger.New(tl.journal, nil, ledger.WithLogger(logger.Discard()))
	require.NoError(t, restored.Init())

	assert.Equal(t, uint64(20), balanceOf(t, restored, creator.Principal()))
	assert.Equal(t, uint64(10), balanceOf(t, restored, bob.Principal()))
	poll, err := ledger.ReadPoll(ctx, restored, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), poll.ClaimedParticipants)

	conf, err := restored.Credit(ctx, bob.Principal(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), conf.Seq)
}

func TestReplayIgnoresTimezoneChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	pollsConf := common.NewPollsConfig(dir)
	require.NoError(t, pollsConf.Init())

	journal := &test_utils.MockJournal{}
	now := time.Date(2025, time.March, 4, 1, 0, 0, 0, time.UTC)
	gw := ledger.New(journal, pollsConf,
		ledger.WithClock(func() time.Time { return now }),
		ledger.WithLogger(logger.Discard()),
	)
	require.NoError(t, gw.Init())

	creator := newSigner(t)
	_, err := gw.Credit(ctx, creator.Principal(), 30)
	require.NoError(t, err)
	ins := createPoll("p1", creator.Principal(), 10, 3)
	ins.ActiveUntil = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
	_, err = gw.Execute(ctx, ins, creator)
	require.NoError(t, err)
	_, err = gw.Execute(ctx, ledger.RefundPoll{PollId: "p1", Creator: creator.Principal()}, creator)
	require.NoError(t, err)

	// in New York the refund time is still March 3rd
	require.NoError(t, pollsConf.SetTimezone("America/New_York"))
	restored := ledger.New(journal, pollsConf,
		ledger.WithClock(func() time.Time { return now }),
		ledger.WithLogger(logger.Discard()),
	)
	require.NoError(t, restored.Init())

	poll, err := ledger.ReadPoll(ctx, restored, "p1")
	require.NoError(t, err)
	assert.True(t, poll.Refunded)
	assert.Equal(t, uint64(30), balanceOf(t, restored, creator.Principal()))
}

func TestPollIds(t *testing.T) {
	ctx := context.Background()
	tl := newTestLedger(t)
	creator := newSigner(t)

	_, err := tl.Credit(ctx, creator.Principal(), 100)
	require.NoError(t, err)
	for _, id := range []string{"p1", "p2"} {
		_, err = tl.Execute(ctx, createPoll(id, creator.Principal(), 10, 3), creator)
		require.NoError(t, err)
	}
	_, err = tl.Execute(ctx, createPoll("p1", creator.Principal(), 10, 3), creator)
	require.Error(t, err)

	ids, err := tl.PollIds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	restored := ledger.New(tl.journal, nil, ledger.WithLogger(logger.Discard()))
	require.NoError(t, restored.Init())
	ids, err = restored.PollIds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)
}

func TestUnreachableIsNotARejection(t *testing.T) {
	tl := newTestLedger(t)
	creator := newSigner(t)

	_, err := tl.Credit(context.Background(), creator.Principal(), 50)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tl.Execute(ctx, createPoll("p1", creator.Principal(), 10, 3), creator)
	require.Error(t, err)
	_, rejected := ledger.RejectionOf(err)
	assert.False(t, rejected)

	tl.journal.AppendErr = errors.New("disk full")
	_, err = tl.Execute(context.Background(), createPoll("p1", creator.Principal(), 10, 3), creator)
	require.Error(t, err)
	_, rejected = ledger.RejectionOf(err)
	assert.False(t, rejected)

	// nothing of the failed instruction was applied
	assert.Equal(t, uint64(50), balanceOf(t, tl, creator.Principal()))
}
