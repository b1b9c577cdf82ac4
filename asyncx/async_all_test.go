package asyncx

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllKeepsOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}

	got, err := All(context.Background(), items, func(_ context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{50, 10, 40, 20, 30}, got)
}

func TestAllReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")

	got, err := All(context.Background(), []string{"a", "b", "c"}, func(ctx context.Context, s string) (string, error) {
		if s == "b" {
			return "", boom
		}
		<-ctx.Done()
		return s, nil
	})

	assert.Nil(t, got)
	assert.ErrorIs(t, err, boom)
}

func TestLimitBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := make([]int, 20)

	_, err := Limit(context.Background(), items, 3, func(_ context.Context, _ int) (int, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return 0, nil
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestAllEmpty(t *testing.T) {
	got, err := All(context.Background(), []int(nil), func(context.Context, int) (int, error) { return 0, nil })
	require.NoError(t, err)
	assert.Empty(t, got)
}
