package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scamgi/inventory-service/internal/core/domain"
	"github.com/scamgi/inventory-service/internal/pkg/logger"
	"github.com/scamgi/inventory-service/internal/port"
)

const defaultMaxCASRetries = 16

var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrContention means optimistic retries were exhausted. Transient; no stock was changed.
	ErrContention = errors.New("too much contention on product")
)

type LedgerConfig struct {
	Strategy         domain.Strategy
	MaxCASRetries    int
	JournalQueueSize int // 0 disables the movement journal
}

// StockLedger enforces the non-negative stock invariant on top of the counter
// store. It holds no stock state of its own; the store is the serialization point.
type StockLedger struct {
	store      port.StockStore
	strategy   domain.Strategy
	maxRetries int
	logger     *slog.Logger
	now        func() time.Time

	// mu guards journal against a send racing Close.
	mu      sync.RWMutex
	journal chan domain.Movement
	closed  bool
}

var _ port.StockLedger = (*StockLedger)(nil)

func NewStockLedger(store port.StockStore, cfg LedgerConfig, log *slog.Logger) (*StockLedger, error) {
	if cfg.Strategy == "" {
		cfg.Strategy = domain.StrategyScript
	}
	if !cfg.Strategy.Valid() {
		return nil, fmt.Errorf("unknown decrement strategy %q", cfg.Strategy)
	}
	if cfg.MaxCASRetries <= 0 {
		cfg.MaxCASRetries = defaultMaxCASRetries
	}

	l := &StockLedger{
		store:      store,
		strategy:   cfg.Strategy,
		maxRetries: cfg.MaxCASRetries,
		logger:     log.With(slog.String("component", "stock_ledger")),
		now:        time.Now,
	}
	if cfg.JournalQueueSize > 0 {
		l.journal = make(chan domain.Movement, cfg.JournalQueueSize)
	}

	return l, nil
}

func (l *StockLedger) Strategy() domain.Strategy {
	return l.strategy
}

// Get returns the stock for productID. An unknown product has stock 0.
func (l *StockLedger) Get(ctx context.Context, productID string) (int64, error) {
	if err := validateProductID(productID); err != nil {
		return 0, err
	}
	return l.store.Read(ctx, productID)
}

func (l *StockLedger) Increase(ctx context.Context, productID string, amount int64) (int64, error) {
	if err := validateAdjustment(productID, amount); err != nil {
		return 0, err
	}

	stock, err := l.store.ApplyDelta(ctx, productID, amount)
	if err != nil {
		return 0, fmt.Errorf("increase stock: %w", err)
	}

	l.record(ctx, productID, domain.MovementIncrease, amount, stock)
	return stock, nil
}

// Decrease removes amount from the stock of productID if enough is available.
// An unknown product counts as zero stock and fails with ErrInsufficientStock.
func (l *StockLedger) Decrease(ctx context.Context, productID string, amount int64) (int64, error) {
	if err := validateAdjustment(productID, amount); err != nil {
		return 0, err
	}

	var (
		stock int64
		ok    bool
		err   error
	)
	switch l.strategy {
	case domain.StrategyCAS:
		stock, ok, err = l.decreaseOptimistic(ctx, productID, amount)
	default:
		stock, ok, err = l.store.DecrementIfAvailable(ctx, productID, amount)
	}
	if err != nil {
		return 0, fmt.Errorf("decrease stock: %w", err)
	}
	if !ok {
		l.logger.DebugContext(ctx, "decrease rejected",
			slog.String("product_id", productID),
			slog.Int64("amount", amount),
			slog.Int64("available", stock))
		return 0, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, amount, stock)
	}

	l.record(ctx, productID, domain.MovementDecrease, amount, stock)
	return stock, nil
}

func (l *StockLedger) decreaseOptimistic(ctx context.Context, productID string, amount int64) (int64, bool, error) {
	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		stock, ok, err := l.store.CompareAndDecrement(ctx, productID, amount)
		if !errors.Is(err, port.ErrWriteConflict) {
			return stock, ok, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, false, fmt.Errorf("%w: %w", port.ErrStoreUnavailable, ctxErr)
		}
		l.logger.DebugContext(ctx, "decrease write conflict, retrying",
			slog.String("product_id", productID),
			slog.Int("attempt", attempt))
	}

	l.logger.WarnContext(ctx, "decrease retries exhausted",
		slog.String("product_id", productID),
		slog.Int("attempts", l.maxRetries))
	return 0, false, ErrContention
}

// Set overwrites the stock of productID. It is the only way to materialize
// an arbitrary starting value.
func (l *StockLedger) Set(ctx context.Context, productID string, stock int64) error {
	if err := validateProductID(productID); err != nil {
		return err
	}
	if stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrValidation)
	}

	if err := l.store.SetAbsolute(ctx, productID, stock); err != nil {
		return fmt.Errorf("set stock: %w", err)
	}

	l.record(ctx, productID, domain.MovementSet, stock, stock)
	return nil
}

// Movements returns the journal queue, or nil when the journal is disabled.
func (l *StockLedger) Movements() <-chan domain.Movement {
	return l.journal
}

// Close closes the journal queue. Mutations that complete afterwards still
// apply to the store but are no longer journaled. Close is idempotent.
func (l *StockLedger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	if l.journal != nil {
		close(l.journal)
	}
}

// record offers a movement to the journal without blocking the caller.
func (l *StockLedger) record(ctx context.Context, productID string, kind domain.MovementKind, amount, stockAfter int64) {
	if l.journal == nil {
		return
	}

	mv := domain.Movement{
		ID:         uuid.NewString(),
		ProductID:  productID,
		Kind:       kind,
		Amount:     amount,
		StockAfter: stockAfter,
		RequestID:  logger.RequestIDFromContext(ctx),
		OccurredAt: l.now().UTC(),
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.logger.WarnContext(ctx, "ledger closed, movement not journaled",
			slog.String("product_id", productID),
			slog.String("kind", string(kind)))
		return
	}

	select {
	case l.journal <- mv:
	default:
		l.logger.WarnContext(ctx, "journal queue full, dropping movement",
			slog.String("product_id", productID),
			slog.String("kind", string(kind)))
	}
}

func validateProductID(productID string) error {
	if !domain.ValidProductID(productID) {
		return fmt.Errorf("%w: invalid product id", ErrValidation)
	}
	return nil
}

func validateAdjustment(productID string, amount int64) error {
	if err := validateProductID(productID); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if amount > domain.MaxAdjustment {
		return fmt.Errorf("%w: amount must not exceed %d", ErrValidation, int64(domain.MaxAdjustment))
	}
	return nil
}
