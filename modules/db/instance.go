package db

import (
	a "reward-polls/modules/aggregate"

	"github.com/chebyrash/promise"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DbInstance struct {
	*mongo.Database

	db   Db
	conf DbConfig
	opts []*options.DatabaseOptions
}

var _ a.Plugin = &DbInstance{}

// NewDbInstance resolves the database lazily, the client only exists once
// the Db plugin was initialized.
func NewDbInstance(db Db, conf DbConfig, opts ...*options.DatabaseOptions) *DbInstance {
	return &DbInstance{
		db:   db,
		conf: conf,
		opts: opts,
	}
}

// Init implements aggregate.Plugin.
func (d *DbInstance) Init() error {
	d.Database = d.db.Database(d.conf.Get().DbName, d.opts...)
	return nil
}

// Start implements aggregate.Plugin.
func (d *DbInstance) Start() *promise.Promise[any] {
	return a.Resolved()
}

// Stop implements aggregate.Plugin.
func (d *DbInstance) Stop() error {
	return nil
}
