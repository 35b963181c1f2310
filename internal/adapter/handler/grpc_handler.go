package handler

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/scamgi/inventory-service/internal/core/service"
	"github.com/scamgi/inventory-service/internal/port"
)

type GRPCHandler struct {
	ledger port.StockLedger
	logger *slog.Logger
}

var _ InventoryServer = (*GRPCHandler)(nil)

func NewGRPCHandler(ledger port.StockLedger, logger *slog.Logger) *GRPCHandler {
	return &GRPCHandler{
		ledger: ledger,
		logger: logger.With(slog.String("handler", "inventory_grpc")),
	}
}

func (h *GRPCHandler) GetStock(ctx context.Context, req *GetStockRequest) (*StockResponse, error) {
	stock, err := h.ledger.Get(ctx, req.ProductID)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &StockResponse{ProductID: req.ProductID, Stock: stock}, nil
}

func (h *GRPCHandler) IncreaseStock(ctx context.Context, req *AdjustStockRPCRequest) (*AdjustStockResponse, error) {
	stock, err := h.ledger.Increase(ctx, req.ProductID, req.Amount)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &AdjustStockResponse{ProductID: req.ProductID, NewStock: stock}, nil
}

func (h *GRPCHandler) DecreaseStock(ctx context.Context, req *AdjustStockRPCRequest) (*AdjustStockResponse, error) {
	stock, err := h.ledger.Decrease(ctx, req.ProductID, req.Amount)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &AdjustStockResponse{ProductID: req.ProductID, NewStock: stock}, nil
}

func (h *GRPCHandler) SetStock(ctx context.Context, req *SetStockRPCRequest) (*SetStockResponse, error) {
	if err := h.ledger.Set(ctx, req.ProductID, req.Stock); err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &SetStockResponse{Message: "Stock set successfully", ProductID: req.ProductID, Stock: req.Stock}, nil
}

func (h *GRPCHandler) toStatus(ctx context.Context, err error) error {
	code := codeFor(err)
	if code == codes.Unavailable || code == codes.DataLoss || code == codes.Internal {
		h.logger.ErrorContext(ctx, "stock operation failed", slog.String("error", err.Error()))
		return status.Error(code, code.String())
	}
	return status.Error(code, err.Error())
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, service.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, service.ErrInsufficientStock):
		return codes.FailedPrecondition
	case errors.Is(err, service.ErrContention), errors.Is(err, port.ErrStoreUnavailable):
		return codes.Unavailable
	case errors.Is(err, port.ErrCorruptValue):
		return codes.DataLoss
	default:
		return codes.Internal
	}
}
