package port

import "context"

type StockStore interface {
	// Read returns the stock for productID, 0 when the key is absent
	Read(ctx context.Context, productID string) (int64, error)

	// SetAbsolute overwrites the stock unconditionally
	SetAbsolute(ctx context.Context, productID string, value int64) error

	// ApplyDelta adds delta (which may be negative) and returns the new value.
	// It does not guard against going below zero.
	ApplyDelta(ctx context.Context, productID string, delta int64) (int64, error)

	// DecrementIfAvailable atomically checks and decrements in a single server-side step.
	// Returns the new stock and true, or the current stock and false if insufficient.
	DecrementIfAvailable(ctx context.Context, productID string, amount int64) (int64, bool, error)

	// CompareAndDecrement performs one optimistic read-check-write attempt.
	// Returns ErrWriteConflict if the key was modified concurrently.
	CompareAndDecrement(ctx context.Context, productID string, amount int64) (int64, bool, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}
