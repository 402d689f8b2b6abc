package participationDb

import (
	"context"
	"errors"
	"time"

	"reward-polls/modules/common"
	"reward-polls/modules/db"
	"reward-polls/modules/db/rewards"

	"github.com/moznion/go-optional"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type participations struct {
	*db.Collection
}

func New(d *rewards.RewardsDb) Participations {
	return newParticipations(db.NewCollection(d.DbInstance, "participations"))
}

func NewFromCollection(col *db.Collection) Participations {
	return newParticipations(col)
}

func newParticipations(col *db.Collection) *participations {
	col.WithIndexes(
		mongo.IndexModel{
			Keys:    bson.D{{Key: "poll_id", Value: 1}, {Key: "participant", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		mongo.IndexModel{
			Keys: bson.D{{Key: "participant", Value: 1}, {Key: "claimed", Value: 1}},
		},
	)
	return &participations{col}
}

func (p *participations) Insert(ctx context.Context, record common.ParticipationRecord) error {
	_, err := p.InsertOne(ctx, record)
	if mongo.IsDuplicateKeyError(err) {
		return common.ErrDuplicateParticipation
	}
	return err
}

func (p *participations) Find(ctx context.Context, pollId, participant string) (optional.Option[common.ParticipationRecord], error) {
	findResult := p.FindOne(ctx, bson.M{
		"poll_id":     pollId,
		"participant": participant,
	})
	if errors.Is(findResult.Err(), mongo.ErrNoDocuments) {
		return optional.None[common.ParticipationRecord](), nil
	}
	if findResult.Err() != nil {
		return nil, findResult.Err()
	}

	record := common.ParticipationRecord{}
	if err := findResult.Decode(&record); err != nil {
		return nil, err
	}
	return optional.Some(record), nil
}

func (p *participations) Exists(ctx context.Context, pollId, participant string) (bool, error) {
	count, err := p.CountDocuments(ctx, bson.M{
		"poll_id":     pollId,
		"participant": participant,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *participations) MarkClaimed(ctx context.Context, pollId, participant, txId string, at time.Time) error {
	res, err := p.UpdateOne(ctx, bson.M{
		"poll_id":     pollId,
		"participant": participant,
		"claimed":     false,
	}, bson.M{
		"$set": bson.M{
			"claimed":    true,
			"claim_tx":   txId,
			"claimed_at": at,
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// either already claimed, which is fine, or missing
		exists, err := p.Exists(ctx, pollId, participant)
		if err != nil {
			return err
		}
		if !exists {
			return common.ErrNotParticipating
		}
	}
	return nil
}

func (p *participations) FindByPoll(ctx context.Context, pollId string) ([]common.ParticipationRecord, error) {
	return p.findMany(ctx, bson.M{"poll_id": pollId})
}

func (p *participations) FindByParticipant(ctx context.Context, participant string) ([]common.ParticipationRecord, error) {
	return p.findMany(ctx, bson.M{"participant": participant})
}

func (p *participations) FindUnclaimed(ctx context.Context, participant string) ([]common.ParticipationRecord, error) {
	return p.findMany(ctx, bson.M{"participant": participant, "claimed": false})
}

func (p *participations) findMany(ctx context.Context, filter bson.M) ([]common.ParticipationRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := p.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := make([]common.ParticipationRecord, 0)
	for cursor.Next(ctx) {
		record := common.ParticipationRecord{}
		if err := cursor.Decode(&record); err != nil {
			return nil, err
		}
		results = append(results, record)
	}
	return results, cursor.Err()
}
