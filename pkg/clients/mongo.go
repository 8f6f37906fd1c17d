// Package clients manages the MongoDB client lifecycle for strata.
package clients

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/logger"
)

// MongoClient is a connected MongoDB client.
type MongoClient struct {
	client *mongo.Client
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// ClientOptions builds driver options from cfg.
func ClientOptions(cfg config.ConnectionConfig) (*options.ClientOptions, error) {
	if cfg.URI == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "connection uri is required")
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.ServerSelectionTimeout > 0 {
		opts.SetServerSelectionTimeout(cfg.ServerSelectionTimeout)
	}
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.Username != "" {
		cred := options.Credential{
			Username:   cfg.Username,
			Password:   cfg.Password,
			AuthSource: cfg.AuthSource,
		}
		opts.SetAuth(cred)
	}

	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid connection options")
	}
	return opts, nil
}

// Connect dials the deployment described by cfg and pings the primary or
// nearest server before returning.
func Connect(ctx context.Context, cfg config.ConnectionConfig) (*MongoClient, error) {
	opts, err := ClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.Get().With(zap.String("app_name", cfg.AppName))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to MongoDB")
	}

	if err := client.Ping(ctx, readpref.PrimaryPreferred()); err != nil {
		_ = client.Disconnect(context.Background()) // Best effort disconnect
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to ping MongoDB")
	}

	var info struct {
		Version string `bson:"version"`
	}
	err = client.Database("admin").RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&info)
	if err != nil {
		log.Warn("failed to get server build info", zap.Error(err))
	} else {
		log.Info("connected to MongoDB", zap.String("version", info.Version))
	}

	return &MongoClient{client: client, logger: log}, nil
}

// Client returns the underlying driver client.
func (c *MongoClient) Client() *mongo.Client {
	return c.client
}

// Collection returns a handle for db.coll.
func (c *MongoClient) Collection(db, coll string) *mongo.Collection {
	return c.client.Database(db).Collection(coll)
}

// Disconnect closes every pooled connection. It is safe to call more than
// once.
func (c *MongoClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.client.Disconnect(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to disconnect from MongoDB")
	}
	c.logger.Debug("disconnected from MongoDB")
	return nil
}
