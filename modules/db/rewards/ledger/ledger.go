package ledgerDb

import (
	"context"

	"reward-polls/modules/db"
	"reward-polls/modules/db/rewards"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type journal struct {
	*db.Collection
}

func New(d *rewards.RewardsDb) Journal {
	return NewFromCollection(db.NewCollection(d.DbInstance, "ledger_oplog"))
}

func NewFromCollection(col *db.Collection) Journal {
	col.WithIndexes(mongo.IndexModel{
		Keys:    bson.D{{Key: "seq", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return &journal{col}
}

func (j *journal) Append(ctx context.Context, entry JournalEntry) error {
	_, err := j.InsertOne(ctx, entry)
	return err
}

func (j *journal) All(ctx context.Context) ([]JournalEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := j.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := make([]JournalEntry, 0)
	for cursor.Next(ctx) {
		entry := JournalEntry{}
		if err := cursor.Decode(&entry); err != nil {
			return nil, err
		}
		results = append(results, entry)
	}
	return results, cursor.Err()
}
