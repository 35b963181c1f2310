package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/scamgi/inventory-service/internal/adapter/handler"
	"github.com/scamgi/inventory-service/internal/adapter/storage"
	"github.com/scamgi/inventory-service/internal/core/service"
	"github.com/scamgi/inventory-service/internal/pkg/config"
	"github.com/scamgi/inventory-service/internal/pkg/logger"
	"github.com/scamgi/inventory-service/internal/port"
	"github.com/scamgi/inventory-service/internal/worker"
)

func main() {
	bootLogger := logger.SetupLogger("info", "json")

	cfg, err := config.Load(bootLogger)
	if err != nil {
		bootLogger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat).With(
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Environment),
	)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.DialTimeout)
	err := rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}
	log.Info("connected to redis", slog.String("addr", cfg.Redis.Addr))

	store := storage.NewRedisAdapter(rdb, storage.RedisOptions{
		KeyPrefix:      cfg.Redis.KeyPrefix,
		CommandTimeout: cfg.Redis.CommandTimeout,
	}, log)

	// Initialize the optional MySQL journal
	var (
		journal   port.JournalRepository
		queueSize int
		db        *sql.DB
	)
	if cfg.Journal.Enabled() {
		db, err = openJournalDB(ctx, cfg.Journal.MySQLDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.Migrate(); err != nil {
			return err
		}
		log.Info("connected to mysql, journal enabled")

		journal = mysqlAdapter
		queueSize = cfg.Journal.QueueSize
	}

	ledger, err := service.NewStockLedger(store, service.LedgerConfig{
		Strategy:         cfg.Ledger.Strategy,
		MaxCASRetries:    cfg.Ledger.MaxCASRetries,
		JournalQueueSize: queueSize,
	}, log)
	if err != nil {
		return err
	}
	log.Info("stock ledger ready", slog.String("strategy", string(ledger.Strategy())))

	var pool *worker.JournalPool
	if journal != nil {
		pool = worker.NewJournalPool(journal, cfg.Journal.Workers, cfg.Journal.WriteTimeout, log)
		pool.Start(ledger.Movements())
	}

	// Initialize HTTP server
	var limiter *rate.Limiter
	if cfg.Server.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst)
	}
	httpHandler := handler.NewHTTPHandler(ledger, journal, store, log)
	httpServer := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      handler.NewRouter(httpHandler, log, limiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Initialize gRPC server
	var grpcServer *grpc.Server
	var grpcListener net.Listener
	if cfg.Server.GRPCAddr != "" {
		grpcListener, err = net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc %s: %w", cfg.Server.GRPCAddr, err)
		}
		grpcServer = handler.NewGRPCServer(handler.NewGRPCHandler(ledger, log), log)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", slog.String("addr", cfg.Server.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcServer != nil {
		g.Go(func() error {
			log.Info("gRPC server listening", slog.String("addr", cfg.Server.GRPCAddr))
			if err := grpcServer.Serve(grpcListener); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		log.Info("HTTP server stopped")

		if grpcServer != nil {
			stopGRPC(shutdownCtx, grpcServer)
			log.Info("gRPC server stopped")
		}
		return err
	})

	err = g.Wait()

	// No request can mutate stock any more; drain what is queued for the journal.
	ledger.Close()
	if pool != nil {
		pool.Wait()
		log.Info("journal workers stopped")
	}

	return err
}

func openJournalDB(ctx context.Context, dsn string) (*sql.DB, error) {
	dsn, err := storage.JournalDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// stopGRPC drains in-flight RPCs, forcing a stop once ctx expires.
func stopGRPC(ctx context.Context, s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
	}
}
