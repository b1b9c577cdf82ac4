package storex

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type counter struct {
	N int `json:"n" bson:"n"`
}

func increment(limit int) ComputeFunc[counter] {
	return func(old counter, loaded bool) (counter, ComputeOp) {
		if old.N >= limit {
			return old, CancelOp
		}
		return counter{N: old.N + 1}, UpdateOp
	}
}

// exerciseStore runs the same contract against every backend
func exerciseStore(t *testing.T, store Store[counter]) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("update cancel delete", func(t *testing.T) {
		v, ok, err := store.Compute(ctx, "k", increment(1))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, v.N)

		v, ok, err = store.Compute(ctx, "k", increment(1))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, v.N)

		got, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, got.N)

		_, ok, err = store.Compute(ctx, "k", func(old counter, loaded bool) (counter, ComputeOp) {
			return old, DeleteOp
		})
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = store.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("cancel on missing key stores nothing", func(t *testing.T) {
		_, ok, err := store.Compute(ctx, "untouched", func(old counter, loaded bool) (counter, ComputeOp) {
			return counter{N: 9}, CancelOp
		})
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, _ = store.Get(ctx, "untouched")
		assert.False(t, ok)
	})

	t.Run("concurrent computes never exceed the limit", func(t *testing.T) {
		const limit = 10
		var wg sync.WaitGroup
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := store.Compute(ctx, "race", increment(limit))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, ok, err := store.Get(ctx, "race")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, limit, got.N)
		require.NoError(t, store.Delete(ctx, "race"))
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore[counter]()
	exerciseStore(t, store)
	assert.Zero(t, store.Len())
}

func TestSQLStoreSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQL(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	store, err := NewSQLStore[counter](db, "buckets")
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx))

	exerciseStore(t, store)
}

func TestSQLStoreRejectsBadTable(t *testing.T) {
	_, err := NewSQLStore[counter](nil, "buckets; DROP TABLE x")
	assert.True(t, IsInvalidTable(err))
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	coll := client.Database("wagate_test").Collection("buckets_" + time.Now().Format("150405"))
	defer coll.Drop(ctx)

	exerciseStore(t, NewMongoStore[counter](coll))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(storeErrors.New(ErrConflict)))
	assert.True(t, IsTransient(storeErrors.New(ErrSQLQueryFailed)))
	assert.True(t, IsTransient(storeErrors.New(ErrConnectionFailed)))
	assert.False(t, IsTransient(storeErrors.New(ErrDecodeFailed)))
	assert.False(t, IsTransient(storeErrors.New(ErrInvalidTable)))
	assert.False(t, IsTransient(nil))
}
