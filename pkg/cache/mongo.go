package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig configures [NewMongoCache].
type MongoConfig struct {
	URI        string
	Database   string // default "mprscape"
	Collection string // default "cache"
	// Timeout bounds connecting and server selection. Zero means 5s.
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
}

// MongoCache stores entries as documents keyed by cache key. A TTL index
// on expire_at lets the server drop expired entries; Get also checks the
// expiry since the TTL monitor runs only periodically.
type MongoCache struct {
	client  *mongo.Client
	coll    *mongo.Collection
	retries int
	delay   time.Duration
}

type mongoEntry struct {
	Key      string     `bson:"_id"`
	Data     []byte     `bson:"data"`
	ExpireAt *time.Time `bson:"expire_at,omitempty"`
}

// NewMongoCache connects to MongoDB, verifies the connection and ensures
// the TTL index exists.
func NewMongoCache(ctx context.Context, cfg MongoConfig) (*MongoCache, error) {
	if cfg.Database == "" {
		cfg.Database = "mprscape"
	}
	if cfg.Collection == "" {
		cfg.Collection = "cache"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping mongo: %v", ErrUnavailable, err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expire_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create ttl index: %w", err)
	}
	return &MongoCache{client: client, coll: coll, retries: cfg.Retries, delay: cfg.RetryDelay}, nil
}

func classifyMongo(err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return Retryable(err)
	}
	return err
}

// Get retrieves a value.
func (c *MongoCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e mongoEntry
	hit := false
	err := RetryWithBackoff(ctx, c.retries, c.delay, func() error {
		err := c.coll.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&e)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		if err != nil {
			return classifyMongo(err)
		}
		hit = true
		return nil
	})
	if err != nil || !hit {
		return nil, false, err
	}
	if e.ExpireAt != nil && time.Now().After(*e.ExpireAt) {
		return nil, false, nil
	}
	return e.Data, true, nil
}

// Set stores a value. A non-positive ttl never expires.
func (c *MongoCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	e := mongoEntry{Key: key, Data: data}
	if ttl > 0 {
		exp := time.Now().Add(ttl).UTC()
		e.ExpireAt = &exp
	}
	return RetryWithBackoff(ctx, c.retries, c.delay, func() error {
		_, err := c.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: key}}, e, options.Replace().SetUpsert(true))
		return classifyMongo(err)
	})
}

// Delete removes a value.
func (c *MongoCache) Delete(ctx context.Context, key string) error {
	return RetryWithBackoff(ctx, c.retries, c.delay, func() error {
		_, err := c.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}})
		return classifyMongo(err)
	})
}

// Close disconnects the client.
func (c *MongoCache) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}

var _ Cache = (*MongoCache)(nil)
