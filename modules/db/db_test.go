package db_test

import (
	"testing"

	"reward-polls/modules/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestDbConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	conf := db.NewDbConfig(dir)
	require.NoError(t, conf.Init())

	assert.Equal(t, "mongodb://localhost:27017", conf.Get().DbURI)
	assert.Equal(t, "reward-polls", conf.Get().DbName)

	require.NoError(t, conf.SetDbURI("mongodb://mongo:27017"))
	require.NoError(t, conf.SetDbURI(""))
	assert.Equal(t, "mongodb://mongo:27017", conf.Get().DbURI)
}

func TestWrappedCollectionInit(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates registered indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		col := db.WrapCollection(mt.Coll)
		assert.Equal(mt, mt.Coll.Name(), col.Name())
		col.WithIndexes(mongoIndex("poll_id"))
		assert.NoError(mt, col.Init())
	})

	mt.Run("surfaces index errors", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    85,
			Message: "index options conflict",
			Name:    "IndexOptionsConflict",
		}))

		col := db.WrapCollection(mt.Coll).WithIndexes(mongoIndex("poll_id"))
		assert.Error(mt, col.Init())
	})
}

func mongoIndex(key string) mongo.IndexModel {
	return mongo.IndexModel{Keys: bson.D{{Key: key, Value: 1}}}
}
