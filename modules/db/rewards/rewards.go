package rewards

import (
	"context"

	a "reward-polls/modules/aggregate"
	"reward-polls/modules/db"

	"go.mongodb.org/mongo-driver/bson"
)

type RewardsDb struct {
	*db.DbInstance
}

var _ a.Plugin = &RewardsDb{}

func New(d db.Db, dbConf db.DbConfig) *RewardsDb {
	return &RewardsDb{db.NewDbInstance(d, dbConf)}
}

// Nuke empties every collection. Used by devnet resets and tests.
func (db *RewardsDb) Nuke() error {
	ctx := context.Background()

	colsNames, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return err
	}

	for _, colName := range colsNames {
		_, err := db.Collection(colName).DeleteMany(ctx, bson.M{})
		if err != nil {
			return err
		}
	}

	return nil
}
