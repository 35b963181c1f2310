package port

import (
	"context"

	"github.com/scamgi/inventory-service/internal/core/domain"
)

//go:generate mockgen -source=journal_repository.go -destination=mocks/journal_repository_mock.go -package=mocks

type JournalRepository interface {
	// RecordMovement appends one movement to the journal
	RecordMovement(ctx context.Context, movement domain.Movement) error

	// ListMovements returns up to limit movements for productID, newest first
	ListMovements(ctx context.Context, productID string, limit int) ([]domain.Movement, error)
}
