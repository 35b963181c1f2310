package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scamgi/inventory-service/internal/pkg/logger"
	"github.com/scamgi/inventory-service/internal/port"
)

func newTestAdapter(t *testing.T) (*RedisAdapter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	adapter := NewRedisAdapter(client, RedisOptions{CommandTimeout: time.Second}, logger.Discard())
	return adapter, mr
}

func TestRead_AbsentKeyIsZero(t *testing.T) {
	adapter, _ := newTestAdapter(t)

	stock, err := adapter.Read(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, stock)
}

func TestRead_CorruptValue(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	require.NoError(t, mr.Set("inventory:broken", "twelve"))

	_, err := adapter.Read(context.Background(), "broken")
	assert.ErrorIs(t, err, port.ErrCorruptValue)
}

func TestSetAbsolute(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.SetAbsolute(ctx, "test-item", 10))
	mr.CheckGet(t, "inventory:test-item", "10")

	stock, err := adapter.Read(ctx, "test-item")
	require.NoError(t, err)
	assert.Equal(t, int64(10), stock)
	assert.False(t, mr.Exists("test-item"), "key must be namespaced")
}

func TestKeyPrefix_Configurable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	adapter := NewRedisAdapter(client, RedisOptions{KeyPrefix: "product:"}, logger.Discard())
	require.NoError(t, adapter.SetAbsolute(context.Background(), "p1", 3))

	mr.CheckGet(t, "product:p1", "3")
}

func TestApplyDelta(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()

	stock, err := adapter.ApplyDelta(ctx, "test-item", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stock)

	stock, err = adapter.ApplyDelta(ctx, "test-item", -3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stock)
}

func TestApplyDelta_CorruptValue(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	require.NoError(t, mr.Set("inventory:broken", "abc"))

	_, err := adapter.ApplyDelta(context.Background(), "broken", 1)
	assert.ErrorIs(t, err, port.ErrCorruptValue)
}

func TestDecrementIfAvailable_Success(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, adapter.SetAbsolute(ctx, "test-item", 10))

	stock, ok, err := adapter.DecrementIfAvailable(ctx, "test-item", 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), stock)
	mr.CheckGet(t, "inventory:test-item", "7")
}

func TestDecrementIfAvailable_InsufficientStock(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, adapter.SetAbsolute(ctx, "test-item", 5))

	stock, ok, err := adapter.DecrementIfAvailable(ctx, "test-item", 10)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(5), stock)
	mr.CheckGet(t, "inventory:test-item", "5")
}

func TestDecrementIfAvailable_KeyNotExists(t *testing.T) {
	adapter, mr := newTestAdapter(t)

	stock, ok, err := adapter.DecrementIfAvailable(context.Background(), "nonexistent", 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, stock)
	assert.False(t, mr.Exists("inventory:nonexistent"), "failed decrement must not materialize the key")
}

func TestDecrementIfAvailable_CorruptValue(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	require.NoError(t, mr.Set("inventory:broken", "1.5"))

	_, _, err := adapter.DecrementIfAvailable(context.Background(), "broken", 1)
	assert.ErrorIs(t, err, port.ErrCorruptValue)
}

func TestDecrementIfAvailable_ExactBeyondFloatPrecision(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()
	const base = int64(1) << 53

	require.NoError(t, adapter.SetAbsolute(ctx, "big", base+5))

	// The decrement itself must not round 2^53+1 down to 2^53.
	stock, ok, err := adapter.DecrementIfAvailable(ctx, "big", base+1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(4), stock)
	mr.CheckGet(t, "inventory:big", "4")
}

func TestDecrementIfAvailable_Concurrent(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()

	initialStock := 20
	totalRequests := 50
	require.NoError(t, adapter.SetAbsolute(ctx, "concurrent-test", int64(initialStock)))

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := adapter.DecrementIfAvailable(ctx, "concurrent-test", 1)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())
	mr.CheckGet(t, "inventory:concurrent-test", "0")
}

func TestCompareAndDecrement_Success(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, adapter.SetAbsolute(ctx, "test-item", 10))

	stock, ok, err := adapter.CompareAndDecrement(ctx, "test-item", 4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(6), stock)
	mr.CheckGet(t, "inventory:test-item", "6")
}

func TestCompareAndDecrement_InsufficientStock(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, adapter.SetAbsolute(ctx, "test-item", 2))

	stock, ok, err := adapter.CompareAndDecrement(ctx, "test-item", 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(2), stock)
	mr.CheckGet(t, "inventory:test-item", "2")
}

func TestCompareAndDecrement_KeyNotExists(t *testing.T) {
	adapter, mr := newTestAdapter(t)

	_, ok, err := adapter.CompareAndDecrement(context.Background(), "nonexistent", 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("inventory:nonexistent"))
}

func TestCompareAndDecrement_CorruptValue(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	require.NoError(t, mr.Set("inventory:broken", "n/a"))

	_, _, err := adapter.CompareAndDecrement(context.Background(), "broken", 1)
	assert.ErrorIs(t, err, port.ErrCorruptValue)
}

func TestCompareAndDecrement_Concurrent(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()

	initialStock := 20
	totalRequests := 50
	require.NoError(t, adapter.SetAbsolute(ctx, "cas-test", int64(initialStock)))

	var successCount, conflictCount, rejectedCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := adapter.CompareAndDecrement(ctx, "cas-test", 1)
			switch {
			case errors.Is(err, port.ErrWriteConflict):
				conflictCount.Add(1)
			case err != nil:
				t.Errorf("unexpected error: %v", err)
			case ok:
				successCount.Add(1)
			default:
				rejectedCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// A single attempt may lose the race, but never oversells.
	stock, err := adapter.Read(ctx, "cas-test")
	require.NoError(t, err)
	assert.Equal(t, int64(initialStock)-int64(successCount.Load()), stock)
	assert.GreaterOrEqual(t, stock, int64(0))
	assert.Equal(t, int32(totalRequests), successCount.Load()+conflictCount.Load()+rejectedCount.Load())
}

func TestStoreUnavailable(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()
	mr.Close()

	_, err := adapter.Read(ctx, "p")
	assert.ErrorIs(t, err, port.ErrStoreUnavailable)

	err = adapter.SetAbsolute(ctx, "p", 1)
	assert.ErrorIs(t, err, port.ErrStoreUnavailable)

	_, err = adapter.ApplyDelta(ctx, "p", 1)
	assert.ErrorIs(t, err, port.ErrStoreUnavailable)

	_, _, err = adapter.DecrementIfAvailable(ctx, "p", 1)
	assert.ErrorIs(t, err, port.ErrStoreUnavailable)

	_, _, err = adapter.CompareAndDecrement(ctx, "p", 1)
	assert.ErrorIs(t, err, port.ErrStoreUnavailable)

	assert.ErrorIs(t, adapter.Ping(ctx), port.ErrStoreUnavailable)
}

func TestPing(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	assert.NoError(t, adapter.Ping(context.Background()))
}
