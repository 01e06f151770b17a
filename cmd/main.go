package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/devtasks/internal/api"
	"github.com/rryowa/devtasks/internal/controller"
	"github.com/rryowa/devtasks/internal/keypath"
	"github.com/rryowa/devtasks/internal/migrations"
	"github.com/rryowa/devtasks/internal/service"
	"github.com/rryowa/devtasks/internal/storage"
	keypathstorage "github.com/rryowa/devtasks/internal/storage/keypath"
	"github.com/rryowa/devtasks/internal/storage/memory"
	"github.com/rryowa/devtasks/internal/storage/postgres"
	"github.com/rryowa/devtasks/internal/storage/redis"
	"github.com/rryowa/devtasks/internal/util"
)

const connectTimeout = 10 * time.Second

func main() {
	ctx := context.Background()

	cfg, err := util.LoadConfig()
	if err != nil {
		util.NewZapLogger("info").Fatalw("Invalid configuration", zap.Error(err))
	}
	logger := util.NewZapLogger(cfg.LogLevel)

	for _, name := range cfg.Token.WeakKeys() {
		logger.Warnw("Weak token signing key, use a random value of at least 32 bytes", "variable", name)
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var db *keypath.Client
	if cfg.StorageBackend == util.BackendKeyPath || cfg.RevocationBackend == util.BackendKeyPath {
		db = keypath.NewClient(cfg.KeyPath, logger)
		if err := db.Connect(connectCtx); err != nil {
			logger.Fatal(zap.Error(err))
		}
	}

	var (
		accounts storage.AccountRepository
		tasks    storage.TaskRepository
	)
	switch cfg.StorageBackend {
	case util.BackendMemory:
		logger.Warn("Using in-memory account storage, data is lost on restart")
		accounts = memory.NewAccountRepository(logger)
		tasks = memory.NewTaskRepository()
	default:
		accounts = keypathstorage.NewAccountRepository(db, logger)
		tasks = keypathstorage.NewTaskRepository(db)
	}

	revocations, cleanupFuncs, err := newRevocationStore(connectCtx, cfg, db, logger)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	tokenPolicy := service.NewTokenPolicy(cfg.Token, service.NewTokenCodec(), logger)
	webhookService := service.NewWebhookService(logger, cfg.WebhookURL)
	authService := service.NewAuthService(
		tokenPolicy,
		accounts,
		revocations,
		service.NewBcryptHasher(cfg.BcryptCost),
		webhookService,
		logger,
	)
	taskService := service.NewTaskService(tasks, logger)

	controller := controller.NewController(logger, authService, taskService, cfg.Cookie, cfg.Token.RefreshTTL)

	apiServer, err := api.NewAPI(controller, service.NewAuthGate(tokenPolicy), cfg.Server, logger, cleanupFuncs)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	apiServer.Run(ctx)
}

func newRevocationStore(
	ctx context.Context,
	cfg *util.Config,
	db *keypath.Client,
	logger *zap.SugaredLogger,
) (storage.RevocationStore, []func(), error) {
	switch cfg.RevocationBackend {
	case util.BackendMemory:
		logger.Warn("Using in-memory revocation store, revoked tokens are forgotten on restart")
		return memory.NewRevocationStore(logger), nil, nil

	case util.BackendRedis:
		redisClient, cleanup, err := util.NewRedisClient(ctx, logger, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return redis.NewRevocationStore(redisClient), []func(){cleanup}, nil

	case util.BackendPostgres:
		sqlDB, cleanup, err := util.NewDBConnection(ctx, logger, cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.RunMigrations(sqlDB, logger); err != nil {
			cleanup()
			return nil, nil, err
		}
		return postgres.NewRevocationStore(sqlDB), []func(){cleanup}, nil

	default:
		return keypathstorage.NewRevocationStore(db), nil, nil
	}
}
