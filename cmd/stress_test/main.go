package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scamgi/inventory-service/internal/adapter/storage"
	"github.com/scamgi/inventory-service/internal/core/domain"
	"github.com/scamgi/inventory-service/internal/core/service"
	"github.com/scamgi/inventory-service/internal/pkg/logger"
)

const productID = "stress-test-product"

func main() {
	redisAddr := flag.String("redis", "localhost:6379", "redis address")
	initialStock := flag.Int64("stock", 20, "initial stock")
	totalRequests := flag.Int("requests", 50, "concurrent decrease requests of amount 1")
	flag.Parse()

	log := logger.SetupLogger("warn", "text")
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr, PoolSize: *totalRequests})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rdb.Close()

	store := storage.NewRedisAdapter(rdb, storage.RedisOptions{}, log)

	failed := false
	for _, strategy := range []domain.Strategy{domain.StrategyScript, domain.StrategyCAS} {
		if !runStrategy(ctx, store, rdb, strategy, *initialStock, *totalRequests, log) {
			failed = true
		}
	}

	rdb.Del(ctx, storage.DefaultKeyPrefix+productID)
	if failed {
		os.Exit(1)
	}
}

func runStrategy(ctx context.Context, store *storage.RedisAdapter, rdb *redis.Client, strategy domain.Strategy,
	initialStock int64, totalRequests int, log *slog.Logger) bool {
	ledger, err := service.NewStockLedger(store, service.LedgerConfig{Strategy: strategy, MaxCASRetries: totalRequests * 4}, log)
	if err != nil {
		log.Error("failed to build ledger", slog.String("error", err.Error()))
		return false
	}
	if err := ledger.Set(ctx, productID, initialStock); err != nil {
		log.Error("failed to set stock", slog.String("error", err.Error()))
		return false
	}

	var successCount, insufficientCount, otherCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := ledger.Decrease(ctx, productID, 1)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrInsufficientStock):
				insufficientCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := int64(successCount.Load())
	insufficient := int64(insufficientCount.Load())
	other := otherCount.Load()

	wantSuccess := min(initialStock, int64(totalRequests))
	wantFinal := initialStock - wantSuccess

	fmt.Printf("========== STRESS TEST RESULTS (%s) ==========\n", strategy)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Insufficient:     %d\n", insufficient)
	fmt.Printf("Other Errors:     %d\n", other)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==============================================")

	ok := true
	if success == wantSuccess && insufficient == int64(totalRequests)-wantSuccess {
		fmt.Printf("PASS: exactly %d decreases succeeded\n", wantSuccess)
	} else {
		fmt.Printf("FAIL: expected %d success/%d insufficient, got %d/%d\n",
			wantSuccess, int64(totalRequests)-wantSuccess, success, insufficient)
		ok = false
	}

	// Verify final stock in Redis
	finalStock, err := rdb.Get(ctx, storage.DefaultKeyPrefix+productID).Int64()
	if err != nil {
		fmt.Printf("FAIL: read final stock: %v\n", err)
		return false
	}
	fmt.Printf("Final Redis Stock: %d\n", finalStock)

	if finalStock == wantFinal {
		fmt.Printf("PASS: stock ended at %d\n", wantFinal)
	} else {
		fmt.Printf("FAIL: expected stock %d, got %d\n", wantFinal, finalStock)
		ok = false
	}
	fmt.Println()

	return ok
}
