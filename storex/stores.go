package storex

import "context"

// ComputeOp tells Compute what to do with the value returned by the callback
type ComputeOp int

const (
	// UpdateOp stores the returned value
	UpdateOp ComputeOp = iota
	// DeleteOp removes the key
	DeleteOp
	// CancelOp leaves the stored value untouched
	CancelOp
)

// ComputeFunc receives the current value (loaded=false when absent) and
// returns the next value and what to do with it. Backends that retry on
// contention may call it more than once, so it must not have side effects
// beyond its return values and variables it fully overwrites.
type ComputeFunc[T any] func(old T, loaded bool) (T, ComputeOp)

// Store is a keyed value store with an atomic read-modify-write primitive.
// No two Compute calls on the same key observe the same old value.
type Store[T any] interface {
	// Get returns the value and whether it exists
	Get(ctx context.Context, key string) (T, bool, error)

	// Compute applies fn atomically and returns the value now stored and
	// whether the key exists afterwards
	Compute(ctx context.Context, key string, fn ComputeFunc[T]) (T, bool, error)

	// Delete removes a key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}
