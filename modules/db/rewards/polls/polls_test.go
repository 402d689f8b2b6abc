package pollsDb_test

import (
	"context"
	"testing"
	"time"

	"reward-polls/modules/common"
	"reward-polls/modules/db"
	pollsDb "reward-polls/modules/db/rewards/polls"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func toDoc(t require.TestingT, v interface{}) bson.D {
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	doc := bson.D{}
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func TestPolls(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	poll := common.Poll{
		Id:                   "poll-1",
		Creator:              "carol",
		Topic:                "Lunch",
		RewardPerParticipant: 10,
		TotalParticipants:    2,
		ActiveUntil:          time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC),
		CreatedAt:            time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		Questions: []common.Question{
			{Type: common.QuestionSingle, Options: []string{"A", "B"}},
		},
	}

	mt.Run("upsert", func(mt *mtest.T) {
		store := pollsDb.NewFromCollection(db.WrapCollection(mt.Coll))
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: "x"}}}},
		))

		assert.NoError(mt, store.Upsert(ctx, poll))
	})

	mt.Run("get", func(mt *mtest.T) {
		store := pollsDb.NewFromCollection(db.WrapCollection(mt.Coll))
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDoc(mt, poll)))

		found, err := store.Get(ctx, "poll-1")
		require.NoError(mt, err)
		require.True(mt, found.IsSome())
		got := found.Unwrap()
		assert.Equal(mt, poll.Topic, got.Topic)
		assert.Equal(mt, poll.Questions, got.Questions)
		assert.True(mt, poll.ActiveUntil.Equal(got.ActiveUntil))
	})

	mt.Run("get missing", func(mt *mtest.T) {
		store := pollsDb.NewFromCollection(db.WrapCollection(mt.Coll))
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		found, err := store.Get(ctx, "nope")
		require.NoError(mt, err)
		assert.True(mt, found.IsNone())
	})

	mt.Run("list all", func(mt *mtest.T) {
		store := pollsDb.NewFromCollection(db.WrapCollection(mt.Coll))
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		second := poll
		second.Id = "poll-2"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDoc(mt, poll), toDoc(mt, second)))

		all, err := store.ListAll(ctx)
		require.NoError(mt, err)
		assert.Len(mt, all, 2)
	})

	mt.Run("server errors are returned", func(mt *mtest.T) {
		store := pollsDb.NewFromCollection(db.WrapCollection(mt.Coll))
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad query",
			Name:    "BadValue",
		}))

		_, err := store.FindByCreator(ctx, "carol")
		assert.Error(mt, err)
	})
}
