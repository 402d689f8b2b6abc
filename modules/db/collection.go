package db

import (
	"context"
	"fmt"

	a "reward-polls/modules/aggregate"

	"github.com/chebyrash/promise"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Collection struct {
	*mongo.Collection

	db      *DbInstance
	name    string
	opts    []*options.CollectionOptions
	indexes []mongo.IndexModel
}

var _ a.Plugin = &Collection{}

func NewCollection(db *DbInstance, name string, opts ...*options.CollectionOptions) *Collection {
	return &Collection{
		db:   db,
		name: name,
		opts: opts,
	}
}

// WrapCollection builds a Collection around an already open handle.
func WrapCollection(col *mongo.Collection) *Collection {
	return &Collection{
		Collection: col,
		name:       col.Name(),
	}
}

// WithIndexes registers indexes that are created on Init.
func (c *Collection) WithIndexes(indexes ...mongo.IndexModel) *Collection {
	c.indexes = append(c.indexes, indexes...)
	return c
}

func (c *Collection) Name() string {
	return c.name
}

// Init implements aggregate.Plugin.
func (c *Collection) Init() error {
	if c.Collection == nil {
		c.Collection = c.db.Collection(c.name, c.opts...)
	}
	if len(c.indexes) == 0 {
		return nil
	}
	_, err := c.Indexes().CreateMany(context.Background(), c.indexes)
	if err != nil {
		return fmt.Errorf("create indexes on %s: %w", c.name, err)
	}
	return nil
}

// Start implements aggregate.Plugin.
func (c *Collection) Start() *promise.Promise[any] {
	return a.Resolved()
}

// Stop implements aggregate.Plugin.
func (c *Collection) Stop() error {
	return nil
}
