package ledger

import (
	"math"
	"math/bits"
	"time"

	"reward-polls/lib/encoding"
	"reward-polls/modules/common"
)

// session buffers the writes of one instruction on top of the committed
// state. Dropping a session reverts it.
type session struct {
	base   map[Address][]byte
	writes map[Address][]byte
	loc    *time.Location
	replay bool
}

func newSession(base map[Address][]byte, loc *time.Location) *session {
	return &session{
		base:   base,
		writes: make(map[Address][]byte),
		loc:    loc,
	}
}

func (s *session) get(addr Address) ([]byte, bool) {
	if data, ok := s.writes[addr]; ok {
		return data, true
	}
	data, ok := s.base[addr]
	return data, ok
}

func (s *session) exists(addr Address) bool {
	_, ok := s.get(addr)
	return ok
}

func (s *session) put(addr Address, account any) error {
	data, err := encoding.EncodeDagCbor(account)
	if err != nil {
		return err
	}
	s.writes[addr] = data
	return nil
}

func (s *session) commit() {
	for addr, data := range s.writes {
		s.base[addr] = data
	}
	s.writes = make(map[Address][]byte)
}

func (s *session) token(addr Address) (TokenAccount, bool, error) {
	data, ok := s.get(addr)
	if !ok {
		return TokenAccount{}, false, nil
	}
	account, err := DecodeTokenAccount(data)
	return account, true, err
}

func (s *session) poll(pollId string) (PollAccount, bool, error) {
	data, ok := s.get(PollAddress(pollId))
	if !ok {
		return PollAccount{}, false, nil
	}
	account, err := DecodePollAccount(data)
	return account, true, err
}

func (s *session) apply(ins Instruction, now time.Time) error {
	switch ins := ins.(type) {
	case OpenAccount:
		return s.openAccount(ins)
	case CreatePoll:
		return s.createPoll(ins, now)
	case ClaimReward:
		return s.claimReward(ins, now)
	case RefundPoll:
		return s.refundPoll(ins, now)
	case credit:
		return s.credit(ins)
	default:
		return reject(InvalidInstruction, "unsupported instruction %T", ins)
	}
}

func (s *session) openAccount(ins OpenAccount) error {
	if ins.Owner == "" {
		return reject(InvalidInstruction, "missing owner")
	}
	addr := TokenAddress(ins.Owner)
	if s.exists(addr) {
		return reject(AccountExists, "%s", addr)
	}
	return s.put(addr, TokenAccount{Kind: KindToken, Owner: ins.Owner})
}

func (s *session) credit(ins credit) error {
	addr := TokenAddress(ins.Owner)
	account, ok, err := s.token(addr)
	if err != nil {
		return err
	}
	if !ok {
		account = TokenAccount{Kind: KindToken, Owner: ins.Owner}
	}
	sum, carry := bits.Add64(account.Balance, ins.Amount, 0)
	if carry != 0 || sum > math.MaxInt64 {
		return reject(Overflow, "balance of %s", ins.Owner)
	}
	account.Balance = sum
	return s.put(addr, account)
}

func (s *session) createPoll(ins CreatePoll, now time.Time) error {
	if ins.PollId == "" || ins.RewardPerParticipant == 0 || ins.TotalParticipants == 0 || len(ins.Questions) == 0 {
		return reject(InvalidInstruction, "incomplete poll")
	}
	hi, total := bits.Mul64(ins.RewardPerParticipant, uint64(ins.TotalParticipants))
	if hi != 0 || total > math.MaxInt64 {
		return reject(Overflow, "reward pool of poll %s", ins.PollId)
	}

	pollAddr := PollAddress(ins.PollId)
	vaultAddr := VaultAddress(ins.PollId)
	if s.exists(pollAddr) || s.exists(vaultAddr) {
		return reject(PollExists, "%s", ins.PollId)
	}

	funding, ok, err := s.token(TokenAddress(ins.Creator))
	if err != nil {
		return err
	}
	if !ok || funding.Balance < total {
		return reject(InsufficientFunds, "poll needs %d, creator holds %d", total, funding.Balance)
	}

	funding.Balance -= total
	if err := s.put(TokenAddress(ins.Creator), funding); err != nil {
		return err
	}
	if err := s.put(vaultAddr, TokenAccount{
		Kind:    KindToken,
		Owner:   pollAddr.String(),
		Balance: total,
	}); err != nil {
		return err
	}
	return s.put(pollAddr, PollAccount{
		Kind:                 KindPoll,
		PollId:               ins.PollId,
		Creator:              ins.Creator,
		Topic:                ins.Topic,
		RewardPerParticipant: ins.RewardPerParticipant,
		TotalParticipants:    ins.TotalParticipants,
		ActiveUntil:          ins.ActiveUntil,
		CreatedAt:            now,
		Questions:            ins.Questions,
		Vault:                vaultAddr,
	})
}

func (s *session) claimReward(ins ClaimReward, now time.Time) error {
	poll, ok, err := s.poll(ins.PollId)
	if err != nil {
		return err
	}
	if !ok {
		return reject(PollNotFound, "%s", ins.PollId)
	}

	receiptAddr := ClaimAddress(ins.PollId, ins.Participant)
	if s.exists(receiptAddr) {
		return reject(AlreadyClaimed, "%s already claimed poll %s", ins.Participant, ins.PollId)
	}
	if poll.ClaimedParticipants >= poll.TotalParticipants {
		return reject(AlreadyFullyClaimed, "%d of %d claimed", poll.ClaimedParticipants, poll.TotalParticipants)
	}

	vault, ok, err := s.token(poll.Vault)
	if err != nil {
		return err
	}
	if !ok || vault.Balance < poll.RewardPerParticipant {
		return reject(VaultExhausted, "vault of poll %s", ins.PollId)
	}

	recipientAddr := TokenAddress(ins.Participant)
	recipient, ok, err := s.token(recipientAddr)
	if err != nil {
		return err
	}
	if !ok {
		return reject(RecipientNotProvisioned, "%s", recipientAddr)
	}

	if recipient.Balance > math.MaxInt64-poll.RewardPerParticipant {
		return reject(Overflow, "balance of %s", ins.Participant)
	}
	vault.Balance -= poll.RewardPerParticipant
	recipient.Balance += poll.RewardPerParticipant
	poll.ClaimedParticipants++

	if err := s.put(poll.Vault, vault); err != nil {
		return err
	}
	if err := s.put(recipientAddr, recipient); err != nil {
		return err
	}
	if err := s.put(PollAddress(ins.PollId), poll); err != nil {
		return err
	}
	return s.put(receiptAddr, ClaimReceipt{
		Kind:        KindClaim,
		PollId:      ins.PollId,
		Participant: ins.Participant,
		Amount:      poll.RewardPerParticipant,
		ClaimedAt:   now,
	})
}

func (s *session) refundPoll(ins RefundPoll, now time.Time) error {
	poll, ok, err := s.poll(ins.PollId)
	if err != nil {
		return err
	}
	if !ok {
		return reject(PollNotFound, "%s", ins.PollId)
	}
	if poll.Creator != ins.Creator {
		return reject(Unauthorized, "only the creator can refund poll %s", ins.PollId)
	}
	if poll.Refunded {
		return reject(AlreadyRefunded, "%s", ins.PollId)
	}
	if !s.replay && common.IsLive(poll.ActiveUntil, now, s.loc) {
		return reject(PollStillActive, "poll %s runs until %s", ins.PollId, common.Deadline(poll.ActiveUntil, s.loc))
	}

	vault, _, err := s.token(poll.Vault)
	if err != nil {
		return err
	}
	creatorAddr := TokenAddress(poll.Creator)
	creator, ok, err := s.token(creatorAddr)
	if err != nil {
		return err
	}
	if !ok {
		creator = TokenAccount{Kind: KindToken, Owner: poll.Creator}
	}

	if creator.Balance > math.MaxInt64-vault.Balance {
		return reject(Overflow, "balance of %s", poll.Creator)
	}
	creator.Balance += vault.Balance
	vault.Balance = 0
	poll.Refunded = true

	if err := s.put(creatorAddr, creator); err != nil {
		return err
	}
	if err := s.put(poll.Vault, vault); err != nil {
		return err
	}
	return s.put(PollAddress(ins.PollId), poll)
}
