package storex

import (
	"context"

	"github.com/puzpuzpuz/xsync/v4"
)

// MemoryStore keeps values in a concurrent map; Compute runs under the
// map's per-bucket lock
type MemoryStore[T any] struct {
	values *xsync.Map[string, T]
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{values: xsync.NewMap[string, T]()}
}

func (s *MemoryStore[T]) Get(_ context.Context, key string) (T, bool, error) {
	v, ok := s.values.Load(key)
	return v, ok, nil
}

func (s *MemoryStore[T]) Compute(_ context.Context, key string, fn ComputeFunc[T]) (T, bool, error) {
	var (
		result  T
		present bool
	)

	s.values.Compute(key, func(old T, loaded bool) (T, xsync.ComputeOp) {
		next, op := fn(old, loaded)
		switch op {
		case UpdateOp:
			result, present = next, true
			return next, xsync.UpdateOp
		case DeleteOp:
			var zero T
			result, present = zero, false
			return old, xsync.DeleteOp
		default:
			result, present = old, loaded
			return old, xsync.CancelOp
		}
	})

	return result, present, nil
}

func (s *MemoryStore[T]) Delete(_ context.Context, key string) error {
	s.values.Delete(key)
	return nil
}

// Len returns the number of stored keys
func (s *MemoryStore[T]) Len() int {
	return s.values.Size()
}
