package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scamgi/inventory-service/internal/port"
)

const (
	DefaultKeyPrefix      = "inventory:"
	defaultCommandTimeout = 2 * time.Second
	corruptReplyPrefix    = "CORRUPT"
)

// Returns {1, new_stock} on success, {0, current_stock} when insufficient.
var decrementStockScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
	current = 0
else
	current = tonumber(current)
	if not current or current % 1 ~= 0 then
		return redis.error_reply('CORRUPT stock value is not an integer')
	end
end

-- Lua numbers are doubles: compare through them, but decrement by the
-- exact integer string.
local amount = tonumber(ARGV[1])
if current < amount then
	return {0, current}
end

return {1, redis.call('DECRBY', KEYS[1], ARGV[1])}
`)

var (
	_ port.StockStore    = (*RedisAdapter)(nil)
	_ port.HealthChecker = (*RedisAdapter)(nil)
)

type RedisOptions struct {
	KeyPrefix      string
	CommandTimeout time.Duration
}

// RedisAdapter is the counter store client. The client handle is shared by
// all callers and never mutated after construction.
type RedisAdapter struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

func NewRedisAdapter(client *redis.Client, opts RedisOptions, logger *slog.Logger) *RedisAdapter {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	return &RedisAdapter{
		client:  client,
		prefix:  opts.KeyPrefix,
		timeout: opts.CommandTimeout,
		logger:  logger.With(slog.String("component", "redis_store")),
	}
}

func (r *RedisAdapter) Read(ctx context.Context, productID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.client.Get(ctx, r.key(productID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, r.fail(ctx, "get", productID, err)
	}

	stock, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		r.logger.ErrorContext(ctx, "stored stock is not an integer",
			slog.String("product_id", productID),
			slog.String("value", raw))
		return 0, fmt.Errorf("redis get %s: %w", productID, port.ErrCorruptValue)
	}

	return stock, nil
}

func (r *RedisAdapter) SetAbsolute(ctx context.Context, productID string, value int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key(productID), value, 0).Err(); err != nil {
		return r.fail(ctx, "set", productID, err)
	}
	return nil
}

func (r *RedisAdapter) ApplyDelta(ctx context.Context, productID string, delta int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	key := r.key(productID)

	var cmd *redis.IntCmd
	if delta < 0 {
		cmd = r.client.DecrBy(ctx, key, -delta)
	} else {
		cmd = r.client.IncrBy(ctx, key, delta)
	}

	stock, err := cmd.Result()
	if err != nil {
		return 0, r.fail(ctx, "incrby", productID, err)
	}
	return stock, nil
}

func (r *RedisAdapter) DecrementIfAvailable(ctx context.Context, productID string, amount int64) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := decrementStockScript.Run(ctx, r.client, []string{r.key(productID)}, amount).Int64Slice()
	if err != nil {
		return 0, false, r.fail(ctx, "decrement script", productID, err)
	}
	if len(result) != 2 {
		return 0, false, fmt.Errorf("redis decrement script %s: unexpected reply %v: %w",
			productID, result, port.ErrStoreUnavailable)
	}

	return result[1], result[0] == 1, nil
}

func (r *RedisAdapter) CompareAndDecrement(ctx context.Context, productID string, amount int64) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	key := r.key(productID)

	var (
		stock int64
		ok    bool
	)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Int64()
		switch {
		case errors.Is(err, redis.Nil):
			current = 0
		case err != nil:
			var numErr *strconv.NumError
			if errors.As(err, &numErr) {
				return fmt.Errorf("%w: %w", port.ErrCorruptValue, err)
			}
			return err
		}

		if current < amount {
			stock, ok = current, false
			return nil
		}

		var decr *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			decr = pipe.DecrBy(ctx, key, amount)
			return nil
		})
		if err != nil {
			return err
		}

		stock, ok = decr.Val(), true
		return nil
	}, key)

	switch {
	case err == nil:
		return stock, ok, nil
	case errors.Is(err, redis.TxFailedErr):
		return 0, false, fmt.Errorf("redis watch %s: %w", productID, port.ErrWriteConflict)
	case errors.Is(err, port.ErrCorruptValue):
		return 0, false, fmt.Errorf("redis watch %s: %w", productID, err)
	default:
		return 0, false, r.fail(ctx, "watch", productID, err)
	}
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w: %w", port.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisAdapter) key(productID string) string {
	return r.prefix + productID
}

// fail classifies a command error into a store error kind.
func (r *RedisAdapter) fail(ctx context.Context, op, productID string, err error) error {
	kind := port.ErrStoreUnavailable
	if isCorruptReply(err) {
		kind = port.ErrCorruptValue
	}

	r.logger.ErrorContext(ctx, "redis command failed",
		slog.String("op", op),
		slog.String("product_id", productID),
		slog.String("error", err.Error()))

	return fmt.Errorf("redis %s %s: %w: %w", op, productID, kind, err)
}

func isCorruptReply(err error) bool {
	var redisErr redis.Error
	if !errors.As(err, &redisErr) {
		return false
	}
	msg := redisErr.Error()
	return strings.HasPrefix(msg, corruptReplyPrefix) || strings.Contains(msg, "not an integer")
}
