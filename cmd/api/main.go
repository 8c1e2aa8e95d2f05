package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zuloanga/Coinorbit/internal/auth"
	"github.com/zuloanga/Coinorbit/internal/ledger/adapter/repo"
	"github.com/zuloanga/Coinorbit/internal/ledger/adapter/repo/memory"
	"github.com/zuloanga/Coinorbit/internal/ledger/aggregate"
	"github.com/zuloanga/Coinorbit/internal/ledger/api"
	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
	"github.com/zuloanga/Coinorbit/internal/ledger/service"
	"github.com/zuloanga/Coinorbit/internal/platform/cache"
	"github.com/zuloanga/Coinorbit/internal/platform/database"
	"github.com/zuloanga/Coinorbit/internal/platform/logger"
	"github.com/zuloanga/Coinorbit/internal/platform/metrics"
	"github.com/zuloanga/Coinorbit/internal/platform/server"
)

func main() {
	viper.SetConfigFile("configs/config.yaml")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("auth.token_duration", "24h")
	viper.SetDefault("sweeper.interval", "1m")
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %s", err)
	}

	appLogger := logger.NewLogger(viper.GetString("server.mode"))
	defer appLogger.Sync() //nolint:errcheck

	// Repositories: postgres when a DSN is configured, in-memory otherwise.
	var (
		accountRepo domain.AccountRepository
		txRepo      domain.TransactionRepository
		invRepo     domain.InvestmentRepository
		planRepo    domain.PlanRepository
	)
	if dsn := viper.GetString("database.dsn"); dsn != "" {
		db, err := database.NewPostgresDB(dsn,
			viper.GetInt("database.max_idle_conns"),
			viper.GetInt("database.max_open_conns"),
		)
		if err != nil {
			appLogger.Fatal("Database connection failed", zap.Error(err))
		}
		if err := repo.AutoMigrate(db); err != nil {
			appLogger.Fatal("Migration failed", zap.Error(err))
		}
		accountRepo = repo.NewAccountRepo(db)
		txRepo = repo.NewTransactionRepo(db)
		invRepo = repo.NewInvestmentRepo(db)
		planRepo = repo.NewPlanRepo(db)
	} else {
		appLogger.Warn("No database DSN configured, using in-memory storage")
		accountRepo = memory.NewAccountRepository()
		txRepo = memory.NewTransactionRepository()
		invRepo = memory.NewInvestmentRepository()
		planRepo = memory.NewPlanRepository()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := planRepo.Seed(ctx, domain.DefaultPlans()); err != nil {
		appLogger.Fatal("Plan seeding failed", zap.Error(err))
	}

	// Metrics endpoint runs on its own listener.
	collector := metrics.NewCollector(appLogger)
	var metricsSrv interface{ Shutdown(context.Context) error }
	if addr := viper.GetString("metrics.addr"); addr != "" {
		collector.StartServer(addr)
		metricsSrv = collector
	}

	// Stats cache is optional; a missing redis address degrades to
	// recomputing on every dashboard request.
	var redisClient *redis.Client
	if addr := viper.GetString("redis.addr"); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		})
	}
	statsCache := cache.NewStatsCache(redisClient, viper.GetDuration("redis.ttl"), appLogger)
	if redisClient != nil {
		if err := statsCache.Ping(ctx); err != nil {
			appLogger.Warn("Redis unreachable, stats caching disabled for now", zap.Error(err))
		}
	}

	agg := aggregate.New(accountRepo, txRepo, invRepo, collector, appLogger)

	pwManager := auth.NewPasswordManager(auth.DefaultBcryptCost, auth.MinPasswordLength)
	jwtManager := auth.NewJWTManager(
		viper.GetString("auth.jwt_secret"),
		viper.GetDuration("auth.token_duration"),
	)
	authSvc := auth.NewService(accountRepo, pwManager, jwtManager, agg, appLogger, nil)

	locks := service.NewKeyedMutex()
	txSvc := service.NewTransactionService(accountRepo, txRepo, authSvc, locks, agg, appLogger, nil)
	invSvc := service.NewInvestmentService(accountRepo, txRepo, invRepo, planRepo, authSvc, locks, agg, appLogger, nil)

	if err := authSvc.SeedAdmin(ctx,
		viper.GetString("auth.admin_email"),
		viper.GetString("auth.admin_password"),
		viper.GetString("auth.admin_name"),
	); err != nil {
		appLogger.Fatal("Admin seeding failed", zap.Error(err))
	}

	// Counters start from persisted state, then track events live.
	if err := agg.Rebuild(ctx, time.Now()); err != nil {
		appLogger.Warn("Stats rebuild incomplete", zap.Error(err))
	}

	authHandlers := auth.NewHandlers(authSvc)
	ledgerHandler := api.NewLedgerHandler(txSvc, invSvc, authSvc, agg, statsCache, appLogger)

	srv := server.NewServer(
		appLogger,
		viper.GetString("server.port"),
		viper.GetString("server.mode"),
		jwtManager,
		authHandlers,
		ledgerHandler,
	)

	// Matured positions settle in the background.
	go invSvc.RunSweeper(ctx, viper.GetDuration("sweeper.interval"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		appLogger.Fatal("Server startup failed", zap.Error(err))
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics shutdown failed", zap.Error(err))
		}
	}
}
