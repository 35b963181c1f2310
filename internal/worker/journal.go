// Package worker drains the ledger's movement queue into the journal store.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/scamgi/inventory-service/internal/core/domain"
	"github.com/scamgi/inventory-service/internal/port"
)

const defaultWriteTimeout = 5 * time.Second

type JournalPool struct {
	repo         port.JournalRepository
	workers      int
	writeTimeout time.Duration
	logger       *slog.Logger
	wg           sync.WaitGroup
}

func NewJournalPool(repo port.JournalRepository, workers int, writeTimeout time.Duration, logger *slog.Logger) *JournalPool {
	if workers <= 0 {
		workers = 1
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &JournalPool{
		repo:         repo,
		workers:      workers,
		writeTimeout: writeTimeout,
		logger:       logger.With(slog.String("component", "journal_pool")),
	}
}

// Start launches the workers. They exit once queue is closed and drained.
func (p *JournalPool) Start(queue <-chan domain.Movement) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.loop(id, queue)
		}(i)
	}
	p.logger.Info("journal workers started", slog.Int("workers", p.workers))
}

// Wait blocks until every worker has exited.
func (p *JournalPool) Wait() {
	p.wg.Wait()
}

func (p *JournalPool) loop(id int, queue <-chan domain.Movement) {
	for mv := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)

		// Stock has already changed in Redis; a lost journal entry is logged, not compensated.
		if err := p.repo.RecordMovement(ctx, mv); err != nil {
			p.logger.Error("failed to record movement",
				slog.Int("worker", id),
				slog.String("movement_id", mv.ID),
				slog.String("product_id", mv.ProductID),
				slog.String("kind", string(mv.Kind)),
				slog.String("error", err.Error()))
		} else {
			p.logger.Debug("recorded movement",
				slog.Int("worker", id),
				slog.String("movement_id", mv.ID))
		}

		cancel()
	}
}
