package db

import (
	"context"
	"fmt"
	"time"

	a "reward-polls/modules/aggregate"

	"github.com/chebyrash/promise"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

type Db interface {
	Database(name string, opts ...*options.DatabaseOptions) *mongo.Database
}

type db struct {
	conf DbConfig
	*mongo.Client
}

var _ a.Plugin = &db{}
var _ Db = &db{}

func New(conf DbConfig) *db {
	return &db{conf: conf}
}

// Init connects eagerly so collections created by later plugins can build
// their indexes during their own Init.
func (db *db) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(db.conf.Get().DbURI))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	db.Client = client
	return nil
}

func (db *db) Start() *promise.Promise[any] {
	return a.Resolved()
}

func (db *db) Stop() error {
	if db.Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return db.Disconnect(ctx)
}
