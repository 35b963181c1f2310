package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/scamgi/inventory-service/internal/core/service"
	"github.com/scamgi/inventory-service/internal/port"
)

const (
	maxBodyBytes         = 1 << 20
	defaultMovementLimit = 20
	maxMovementLimit     = 100
)

type HTTPHandler struct {
	ledger  port.StockLedger
	journal port.JournalRepository // nil when the journal is disabled
	health  port.HealthChecker
	logger  *slog.Logger
}

type AdjustStockRequest struct {
	ProductID string `json:"productId"`
	Amount    *int64 `json:"amount"`
}

type SetStockRequest struct {
	ProductID string `json:"productId"`
	Stock     *int64 `json:"stock"`
}

type StockResponse struct {
	ProductID string `json:"productId"`
	Stock     int64  `json:"stock"`
}

type AdjustStockResponse struct {
	ProductID string `json:"productId"`
	NewStock  int64  `json:"newStock"`
}

type SetStockResponse struct {
	Message   string `json:"message"`
	ProductID string `json:"productId"`
	Stock     int64  `json:"stock"`
}

type MovementResponse struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Amount     int64     `json:"amount"`
	StockAfter int64     `json:"stockAfter"`
	RequestID  string    `json:"requestId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type MovementsResponse struct {
	ProductID string             `json:"productId"`
	Movements []MovementResponse `json:"movements"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewHTTPHandler(ledger port.StockLedger, journal port.JournalRepository, health port.HealthChecker, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{
		ledger:  ledger,
		journal: journal,
		health:  health,
		logger:  logger.With(slog.String("handler", "inventory")),
	}
}

// GetStock handles GET /inventory/{productId}
func (h *HTTPHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")

	stock, err := h.ledger.Get(r.Context(), productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StockResponse{ProductID: productID, Stock: stock})
}

// Increase handles POST /inventory/increase
func (h *HTTPHandler) Increase(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAdjust(w, r)
	if !ok {
		return
	}

	stock, err := h.ledger.Increase(r.Context(), req.ProductID, *req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AdjustStockResponse{ProductID: req.ProductID, NewStock: stock})
}

// Decrease handles POST /inventory/decrease
func (h *HTTPHandler) Decrease(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAdjust(w, r)
	if !ok {
		return
	}

	stock, err := h.ledger.Decrease(r.Context(), req.ProductID, *req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AdjustStockResponse{ProductID: req.ProductID, NewStock: stock})
}

// SetStock handles POST /inventory/set
func (h *HTTPHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	var req SetStockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if req.ProductID == "" || req.Stock == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "productId and stock are required"})
		return
	}

	if err := h.ledger.Set(r.Context(), req.ProductID, *req.Stock); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SetStockResponse{
		Message:   "Stock set successfully",
		ProductID: req.ProductID,
		Stock:     *req.Stock,
	})
}

// ListMovements handles GET /inventory/{productId}/movements
func (h *HTTPHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")

	limit := defaultMovementLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxMovementLimit {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: fmt.Sprintf("limit must be between 1 and %d", maxMovementLimit),
			})
			return
		}
		limit = n
	}

	movements, err := h.journal.ListMovements(r.Context(), productID, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list movements",
			slog.String("product_id", productID),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "failed to list movements"})
		return
	}

	resp := MovementsResponse{ProductID: productID, Movements: make([]MovementResponse, 0, len(movements))}
	for _, mv := range movements {
		resp.Movements = append(resp.Movements, MovementResponse{
			ID:         mv.ID,
			Kind:       string(mv.Kind),
			Amount:     mv.Amount,
			StockAfter: mv.StockAfter,
			RequestID:  mv.RequestID,
			OccurredAt: mv.OccurredAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) decodeAdjust(w http.ResponseWriter, r *http.Request) (AdjustStockRequest, bool) {
	var req AdjustStockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return req, false
	}
	if req.ProductID == "" || req.Amount == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "productId and amount are required"})
		return req, false
	}
	return req, true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "stock operation failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		message = http.StatusText(status)
	}

	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// statusFor maps an error kind to its HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, service.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, service.ErrContention):
		return http.StatusInternalServerError, "contention"
	case errors.Is(err, port.ErrCorruptValue):
		return http.StatusInternalServerError, "corrupt_value"
	case errors.Is(err, port.ErrStoreUnavailable):
		return http.StatusInternalServerError, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
