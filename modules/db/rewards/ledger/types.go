package ledgerDb

import (
	"context"
	"time"

	"reward-polls/modules/aggregate"
)

// JournalEntry is one committed ledger instruction. Replaying all entries
// in Seq order rebuilds the ledger state.
type JournalEntry struct {
	Seq       uint64    `bson:"seq"`
	TxId      string    `bson:"tx_id"`
	Kind      string    `bson:"kind"`
	Signer    string    `bson:"signer,omitempty"`
	Payload   []byte    `bson:"payload"`
	Timestamp time.Time `bson:"timestamp"`
}

type Journal interface {
	aggregate.Plugin
	Append(ctx context.Context, entry JournalEntry) error
	// All returns every entry ordered by Seq
	All(ctx context.Context) ([]JournalEntry, error)
}
