package mongo

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Config struct {
	URI         string
	Database    string
	MaxPoolSize uint64
}

var (
	mongoOnce sync.Once
	client    *mongo.Client
	database  *mongo.Database
)

// Init connects the singleton client and pings it. Safe to call once from
// main; later calls are no-ops.
func Init(cfg Config) error {
	var initErr error
	mongoOnce.Do(func() {
		opts := options.Client().ApplyURI(cfg.URI)
		if cfg.MaxPoolSize > 0 {
			opts.SetMaxPoolSize(cfg.MaxPoolSize)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c, err := mongo.Connect(ctx, opts)
		if err != nil {
			initErr = errors.Wrap(err, "mongo connect")
			return
		}
		if err := c.Ping(ctx, nil); err != nil {
			initErr = errors.Wrap(err, "mongo ping")
			return
		}
		client = c
		database = c.Database(cfg.Database)
	})
	return initErr
}

func DB() *mongo.Database {
	if database == nil {
		panic("mongo not initialized, call Init first")
	}
	return database
}

func Collection(name string) *mongo.Collection {
	return DB().Collection(name)
}

func Close(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}
