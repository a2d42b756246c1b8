package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/Manideep9308/task-flow-sub000/api"
	"github.com/Manideep9308/task-flow-sub000/board"
	"github.com/Manideep9308/task-flow-sub000/config"
	"github.com/Manideep9308/task-flow-sub000/domain"
	"github.com/Manideep9308/task-flow-sub000/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := log.New()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	if cfg.JSONLogs {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	var rc *redis.Client
	if cfg.Storage.RedisConn != "" {
		if rc, err = storage.NewRedisClient(cfg.Storage.RedisConn); err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rc.Close()
	}

	snap, err := openSnapshotter(cfg, rc)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}

	store := board.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	seeded, err := loadBoard(ctx, store, snap, cfg.Storage.SeedPath)
	if err != nil {
		logger.Fatalf("load board: %v", err)
	}
	logger.Infof("board loaded, tasks: %d, backend: %s", store.Len(), cfg.Storage.Backend)

	persister := storage.NewPersister(store, snap, logger, cfg.Persister)
	store.Subscribe(persister.Notify)
	if seeded {
		persister.Notify(domain.ChangeEvent{Type: domain.BoardLoaded})
	}

	var publisher *storage.Publisher
	if cfg.PublishChanges() {
		q, err := storage.NewQueueClient(cfg.Storage.ConnectionString, cfg.Storage.ChangesQueue)
		if err != nil {
			logger.Fatalf("queue: %v", err)
		}
		publisher = storage.NewPublisher(q, logger, cfg.Publisher)
		store.Subscribe(publisher.Notify)
	}

	var deduper api.Deduper
	if rc != nil {
		deduper = api.NewRedisDeduper(rc, cfg.DeduperTTL)
	}

	auth, err := newAuthenticator(cfg.Auth)
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "If-Match", "Idempotency-Key"},
		ExposeHeaders: []string{"ETag", "Idempotent-Replayed"},
	}))
	e.Pre(api.GzipRequestMiddleware())
	api.Register(e, store, auth, deduper, api.NewBroker(cfg.Heartbeat), logger)

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	if publisher != nil {
		publisher.Close()
	}
	if err := persister.Close(shutdownCtx); err != nil {
		logger.Errorf("final save failed: %v", err)
	}
}

// openSnapshotter returns the configured persistence backend.
func openSnapshotter(cfg *config.Config, rc *redis.Client) (storage.Snapshotter, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		return storage.NewRedisStore(rc, cfg.Storage.RedisKey), nil
	case config.BackendTable:
		table, err := storage.NewTableClient(cfg.Storage.ConnectionString, cfg.Storage.TasksTable)
		if err != nil {
			return nil, err
		}
		return storage.NewTableStore(table, cfg.Storage.Partition), nil
	default:
		return storage.NewFileStore(cfg.Storage.SnapshotPath), nil
	}
}

// loadBoard fills store from the last snapshot, falling back to the seed file
// when there is none. It reports whether the seed was used.
func loadBoard(ctx context.Context, store *board.Store, snap storage.Snapshotter, seedPath string) (bool, error) {
	tasks, err := snap.Load(ctx)
	if err != nil {
		return false, err
	}
	seeded := false
	if len(tasks) == 0 && seedPath != "" {
		if tasks, err = storage.LoadSeed(seedPath); err != nil {
			return false, err
		}
		seeded = len(tasks) > 0
	}
	return seeded, store.Load(tasks)
}

func newAuthenticator(cfg config.AuthConfig) (api.Authenticator, error) {
	switch cfg.Mode {
	case config.AuthHS256:
		return api.NewHS256Auth([]byte(cfg.Secret), cfg.Audience, cfg.Issuer), nil
	case config.AuthJWKS:
		jwks, err := keyfunc.Get(cfg.JWKSURL(), keyfunc.Options{})
		if err != nil {
			return nil, err
		}
		return api.NewJWKSAuth(jwks, cfg.Audience, cfg.Issuer, cfg.CacheTTL), nil
	default:
		return nil, nil
	}
}
