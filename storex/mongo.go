package storex

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStore keeps one document per key and applies Compute as a
// compare-and-swap on a version counter
type MongoStore[T any] struct {
	Collection *mongo.Collection
	now        func() time.Time
}

type mongoEntry[T any] struct {
	Key       string    `bson:"_id"`
	Value     T         `bson:"value"`
	Version   int64     `bson:"version"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore creates a store over a collection
func NewMongoStore[T any](collection *mongo.Collection) *MongoStore[T] {
	return &MongoStore[T]{Collection: collection, now: time.Now}
}

func (m *MongoStore[T]) load(ctx context.Context, key string) (mongoEntry[T], bool, error) {
	var entry mongoEntry[T]
	err := m.Collection.FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entry, false, nil
		}
		return entry, false, storeErrors.New(ErrMongoFindFailed).
			WithDetail("collection", m.Collection.Name()).
			WithDetail("key", key).
			WithCause(err)
	}
	return entry, true, nil
}

func (m *MongoStore[T]) Get(ctx context.Context, key string) (T, bool, error) {
	entry, ok, err := m.load(ctx, key)
	return entry.Value, ok, err
}

func (m *MongoStore[T]) Compute(ctx context.Context, key string, fn ComputeFunc[T]) (T, bool, error) {
	var zero T

	for attempt := 0; attempt < maxComputeAttempts; attempt++ {
		entry, loaded, err := m.load(ctx, key)
		if err != nil {
			return zero, false, err
		}

		next, op := fn(entry.Value, loaded)

		switch op {
		case CancelOp:
			return entry.Value, loaded, nil

		case DeleteOp:
			if !loaded {
				return zero, false, nil
			}
			res, err := m.Collection.DeleteOne(ctx, bson.M{"_id": key, "version": entry.Version})
			if err != nil {
				return zero, false, storeErrors.New(ErrMongoDeleteFailed).
					WithDetail("collection", m.Collection.Name()).
					WithDetail("key", key).
					WithCause(err)
			}
			if res.DeletedCount == 0 {
				continue
			}
			return zero, false, nil

		default:
			if !loaded {
				_, err := m.Collection.InsertOne(ctx, mongoEntry[T]{
					Key:       key,
					Value:     next,
					Version:   1,
					UpdatedAt: m.now().UTC(),
				})
				if mongo.IsDuplicateKeyError(err) {
					continue
				}
				if err != nil {
					return zero, false, m.writeErr(key, err)
				}
				return next, true, nil
			}

			res, err := m.Collection.UpdateOne(ctx,
				bson.M{"_id": key, "version": entry.Version},
				bson.M{
					"$set": bson.M{"value": next, "updated_at": m.now().UTC()},
					"$inc": bson.M{"version": 1},
				})
			if err != nil {
				return zero, false, m.writeErr(key, err)
			}
			if res.MatchedCount == 0 {
				continue
			}
			return next, true, nil
		}
	}

	return zero, false, storeErrors.New(ErrConflict).
		WithDetail("collection", m.Collection.Name()).
		WithDetail("key", key)
}

func (m *MongoStore[T]) Delete(ctx context.Context, key string) error {
	if _, err := m.Collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return storeErrors.New(ErrMongoDeleteFailed).
			WithDetail("collection", m.Collection.Name()).
			WithDetail("key", key).
			WithCause(err)
	}
	return nil
}

func (m *MongoStore[T]) writeErr(key string, err error) error {
	return storeErrors.New(ErrMongoWriteFailed).
		WithDetail("collection", m.Collection.Name()).
		WithDetail("key", key).
		WithCause(err)
}
