package audit

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "webhook_events"

// MongoStore persists webhook events in a MongoDB collection. Deployments
// that keep relational storage lean route the raw payload trail here instead
// of Postgres; both stores implement the same interface.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore returns a Store writing to the given database's
// webhook_events collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	if db == nil {
		panic("audit: mongo database is required")
	}
	return &MongoStore{coll: db.Collection(DefaultCollection)}
}

func (s *MongoStore) Append(ctx context.Context, event Event) error {
	if _, err := s.coll.InsertOne(ctx, event); err != nil {
		return errors.Join(ErrAppendFailed, err)
	}
	return nil
}

func (s *MongoStore) Recent(ctx context.Context, provider string, limit int) ([]Event, error) {
	cursor, err := s.coll.Find(ctx,
		bson.M{"provider": provider},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return events, nil
}
