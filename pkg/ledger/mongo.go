package ledger

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// DefaultDatabase is used when no database name is configured.
	DefaultDatabase = "pkgferry"
	collectionName  = "artifacts"
	connectTimeout  = 10 * time.Second
)

// MongoStore mirrors ledger entries into a MongoDB collection, one
// document per identity keyed by name@version.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects to uri and verifies the connection.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = DefaultDatabase
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collectionName),
	}, nil
}

// Record upserts e.
func (s *MongoStore) Record(ctx context.Context, e Entry) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": e.Key()},
		bson.M{"$set": e},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Key(), err)
	}
	return nil
}

// List returns all entries, oldest first.
func (s *MongoStore) List(ctx context.Context) ([]Entry, error) {
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "fetched_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	var out []Entry
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	return out, nil
}

// Close disconnects from the server.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
