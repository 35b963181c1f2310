package port

import "context"

//go:generate mockgen -source=stock_ledger.go -destination=mocks/stock_ledger_mock.go -package=mocks

type StockLedger interface {
	Get(ctx context.Context, productID string) (int64, error)
	Increase(ctx context.Context, productID string, amount int64) (int64, error)
	Decrease(ctx context.Context, productID string, amount int64) (int64, error)
	Set(ctx context.Context, productID string, stock int64) error
}
