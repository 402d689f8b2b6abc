package pollsDb

import (
	"context"
	"errors"

	"reward-polls/modules/common"
	"reward-polls/modules/db"
	"reward-polls/modules/db/rewards"

	"github.com/moznion/go-optional"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type polls struct {
	*db.Collection
}

func New(d *rewards.RewardsDb) Polls {
	return newPolls(db.NewCollection(d.DbInstance, "polls"))
}

// NewFromCollection is used when the collection handle already exists.
func NewFromCollection(col *db.Collection) Polls {
	return newPolls(col)
}

func newPolls(col *db.Collection) *polls {
	col.WithIndexes(
		mongo.IndexModel{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		mongo.IndexModel{
			Keys: bson.D{{Key: "creator", Value: 1}, {Key: "created_at", Value: -1}},
		},
	)
	return &polls{col}
}

func (p *polls) Upsert(ctx context.Context, poll common.Poll) error {
	_, err := p.UpdateOne(ctx, bson.M{
		"id": poll.Id,
	}, bson.M{
		"$set": poll,
	}, options.Update().SetUpsert(true))
	return err
}

func (p *polls) Get(ctx context.Context, id string) (optional.Option[common.Poll], error) {
	findResult := p.FindOne(ctx, bson.M{
		"id": id,
	})
	if errors.Is(findResult.Err(), mongo.ErrNoDocuments) {
		return optional.None[common.Poll](), nil
	}
	if findResult.Err() != nil {
		return nil, findResult.Err()
	}

	poll := common.Poll{}
	if err := findResult.Decode(&poll); err != nil {
		return nil, err
	}
	return optional.Some(poll), nil
}

func (p *polls) FindByCreator(ctx context.Context, creator string) ([]common.Poll, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := p.Find(ctx, bson.M{
		"creator": creator,
	}, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cursor)
}

func (p *polls) ListAll(ctx context.Context) ([]common.Poll, error) {
	opts := options.Find().SetSort(bson.D{{Key: "active_until", Value: -1}})
	cursor, err := p.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cursor)
}

func (p *polls) SetClaimState(ctx context.Context, id string, claimed uint32, refunded bool) error {
	set := bson.M{
		"claimed_participants": claimed,
	}
	if refunded {
		set["refunded"] = true
	}
	_, err := p.UpdateOne(ctx, bson.M{
		"id": id,
		"claimed_participants": bson.M{
			"$lte": claimed,
		},
	}, bson.M{
		"$set": set,
	})
	return err
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]common.Poll, error) {
	defer cursor.Close(ctx)

	results := make([]common.Poll, 0)
	for cursor.Next(ctx) {
		poll := common.Poll{}
		if err := cursor.Decode(&poll); err != nil {
			return nil, err
		}
		results = append(results, poll)
	}
	return results, cursor.Err()
}
