package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	grpc_adapter "github.com/JoeShih716/go-account-ledger/internal/app/ledger/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-account-ledger/internal/app/ledger/adapter/in/http"
	memory_adapter "github.com/JoeShih716/go-account-ledger/internal/app/ledger/adapter/out/memory"
	rdb_adapter "github.com/JoeShih716/go-account-ledger/internal/app/ledger/adapter/out/rdb"
	redis_adapter "github.com/JoeShih716/go-account-ledger/internal/app/ledger/adapter/out/redis"
	"github.com/JoeShih716/go-account-ledger/internal/app/ledger/usecase"
	"github.com/JoeShih716/go-account-ledger/internal/config"
	"github.com/JoeShih716/go-account-ledger/pkg/database"
	"github.com/JoeShih716/go-account-ledger/pkg/keylock"
	"github.com/JoeShih716/go-account-ledger/pkg/logger"
	"github.com/JoeShih716/go-account-ledger/pkg/wal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化 Logger
	log := logger.New(cfg.Log, os.Stdout)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("ledger exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server exited")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 初始化帳本 (Driven Adapter)
	ledger, closeLedger, err := newLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLedger()

	// 4. 查詢快取 (Optional)
	serviceOpts := []usecase.ServiceOption{usecase.WithServiceLogger(log)}
	if cache, closeCache := newCache(ctx, cfg, log); cache != nil {
		defer closeCache()
		serviceOpts = append(serviceOpts, usecase.WithCache(cache))
	}

	// 5. 初始化 UseCase
	locks := keylock.New(keylock.WithTimeout(cfg.Lock.Timeout))
	service := usecase.NewTransactionService(ledger, serviceOpts...)
	core := usecase.NewCoreUseCase(service, usecase.NewAccountLocker(locks),
		usecase.WithLogger(log),
		usecase.WithFailureRecordTimeout(cfg.Storage.FailureRecordTimeout),
	)

	// 6. 初始化 Driving Adapters
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           http_adapter.NewRouter(http_adapter.NewHandler(core, log), log, cfg.Server.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
	}
	grpcServer, healthServer := grpc_adapter.NewServer(grpc_adapter.NewGrpcServer(core, log))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting grpc server", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("serve grpc: %w", err)
		}
		return nil
	})

	// Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		err := httpServer.Shutdown(shutdownCtx)
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return err
	})

	return g.Wait()
}

// newLedger 依照 storage.backend 建立帳本，回傳的 close 負責釋放底層資源
func newLedger(ctx context.Context, cfg *config.Config, log *slog.Logger) (usecase.Ledger, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		var w *wal.WAL
		if cfg.Storage.WALPath != "" {
			var err error
			w, err = wal.NewWAL(cfg.Storage.WALPath)
			if err != nil {
				return nil, nil, fmt.Errorf("init wal: %w", err)
			}
		}
		seed := memory_adapter.Seed{
			Users:    cfg.Seed.DomainUsers(),
			Accounts: cfg.Seed.DomainAccounts(),
		}
		closeWAL := func() {
			if w != nil {
				closeQuietly(w)
			}
		}
		ledger, err := memory_adapter.NewMutexLedger(seed, w)
		if err != nil {
			closeWAL()
			return nil, nil, fmt.Errorf("init memory ledger: %w", err)
		}
		log.Info("memory ledger ready",
			"accounts", len(seed.Accounts),
			"wal", cfg.Storage.WALPath,
			"wal_entries", walEntries(w),
		)
		return ledger, closeWAL, nil

	case config.BackendMySQL, config.BackendPostgres:
		client, err := database.NewClient(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		ledger := rdb_adapter.NewGormLedger(client)
		if cfg.Storage.Migrate {
			if err := ledger.Migrate(ctx); err != nil {
				closeQuietly(client)
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		if err := ledger.Seed(ctx, cfg.Seed.DomainUsers(), cfg.Seed.DomainAccounts()); err != nil {
			closeQuietly(client)
			return nil, nil, err
		}
		log.Info("database ledger ready", "driver", cfg.Database.Driver, "host", cfg.Database.Host)
		return ledger, func() { closeQuietly(client) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newCache redis 連不上時只記 log，查詢直接走儲存層
func newCache(ctx context.Context, cfg *config.Config, log *slog.Logger) (usecase.TransactionCache, func()) {
	if cfg.Redis.URL == "" {
		return nil, nil
	}
	opts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Warn("redis url parse failed, query cache disabled", "error", err)
		return nil, nil
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis ping failed, query cache disabled", "error", err)
		closeQuietly(client)
		return nil, nil
	}
	log.Info("redis connected, query cache enabled", "ttl", cfg.Redis.TTL)
	return redis_adapter.NewTransactionCache(client, cfg.Redis.Prefix, cfg.Redis.TTL, log), func() { closeQuietly(client) }
}

func walEntries(w *wal.WAL) int {
	if w == nil {
		return 0
	}
	return w.Entries()
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("close resource failed", "error", err)
	}
}
