package main // entry point: loads config, wires stores and services, serves HTTP

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-auth/internal/catalog"
	"github.com/iliyamo/storefront-auth/internal/config"
	"github.com/iliyamo/storefront-auth/internal/database"
	"github.com/iliyamo/storefront-auth/internal/handler"
	"github.com/iliyamo/storefront-auth/internal/logger"
	"github.com/iliyamo/storefront-auth/internal/mailer"
	"github.com/iliyamo/storefront-auth/internal/queue"
	"github.com/iliyamo/storefront-auth/internal/repository"
	"github.com/iliyamo/storefront-auth/internal/router"
	"github.com/iliyamo/storefront-auth/internal/service"
	"github.com/iliyamo/storefront-auth/internal/utils"
	"github.com/iliyamo/storefront-auth/internal/validation"
)

func main() {
	_ = godotenv.Load() // .env is optional

	zl, err := logger.New(logger.ConfigFromEnv())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	sugar := zl.Sugar()

	cfg := config.Load()
	if cfg.InsecureSecret {
		sugar.Warnw("JWT_SECRET not set, using the development secret", "env", cfg.Env)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, ping, closeStore, err := openStore(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalw("open user store", "driver", cfg.Store.Driver, "err", err)
	}
	defer closeStore()

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		sugar.Warnw("redis unavailable, rate limiting and cache disabled", "err", err)
		rdb = nil
	} else {
		defer func() { _ = rdb.Close() }()
	}

	var mail mailer.Mailer
	if cfg.Mail.User == "" && !cfg.IsProduction() {
		sugar.Warn("EMAIL_USER not set, emails will only be logged")
		mail = mailer.NewLogMailer(sugar)
	} else {
		mail = mailer.NewSMTPMailer(cfg.Mail, sugar)
	}

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.Queue.Enabled {
		events = queue.NewPublisher(cfg.Queue.URL, cfg.Queue.Exchange, sugar)
		startAuditConsumer(ctx, cfg.Queue, sugar)
	}

	validation.PhoneRegion = cfg.PhoneRegion
	tokens := utils.NewTokenService(cfg.JWTSecret)
	verifier := service.NewVerifier(users, tokens, mail, events, cfg.VerifyTTL, sugar)
	auth := service.NewAuthService(users, utils.NewPasswordCodec(cfg.BcryptCost), tokens, verifier, events, cfg.SessionTTL, sugar)
	products := service.NewProductService(catalog.NewClient(cfg.Catalog))

	e := router.New(router.Deps{
		Log:           zl,
		Tokens:        tokens,
		Auth:          auth,
		Products:      products,
		Mail:          mail,
		PublicBaseURL: cfg.PublicBaseURL,
		Ping:          ping,
		Redis:         rdb,
		RateLimit:     config.LoadRateLimitConfig(),
		Cache:         config.LoadCacheConfig(),
	})

	addr := ":" + cfg.Port
	go func() {
		sugar.Infow("listening", "addr", addr, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful shutdown failed", "err", err)
	}
}

// openStore connects the configured user store backend.
func openStore(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (repository.UserStore, handler.Pinger, func(), error) {
	switch cfg.Store.Driver {
	case "mysql":
		db, err := database.OpenMySQL(cfg.Store.DBUser, cfg.Store.DBPass, cfg.Store.DBHost, cfg.Store.DBPort, cfg.Store.DBName)
		if err != nil {
			return nil, nil, nil, err
		}
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := database.EnsureSchema(schemaCtx, db); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		return repository.NewMySQLUserStore(db), db.PingContext, func() { _ = db.Close() }, nil

	case "mongo":
		client, mdb, err := database.ConnectMongo(cfg.Store.MongoURI, cfg.Store.MongoDB)
		if err != nil {
			return nil, nil, nil, err
		}
		store := repository.NewMongoUserStore(mdb)
		idxCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := store.EnsureIndexes(idxCtx); err != nil {
			_ = database.DisconnectMongo(client)
			return nil, nil, nil, err
		}
		ping := func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
		return store, ping, func() { _ = database.DisconnectMongo(client) }, nil
	}

	log.Warn("using the in-memory user store, data is lost on restart")
	return repository.NewMemoryUserStore(), nil, func() {}, nil
}

// startAuditConsumer records user events in the rotating audit log until
// ctx is cancelled.
func startAuditConsumer(ctx context.Context, cfg config.QueueConfig, log *zap.SugaredLogger) {
	w, err := queue.OpenAuditLog(cfg.AuditLogDir)
	if err != nil {
		log.Warnw("audit log unavailable, consumer not started", "dir", cfg.AuditLogDir, "err", err)
		return
	}
	go func() {
		defer func() { _ = w.Close() }()
		err := queue.StartAuditConsumer(ctx, cfg, queue.NewAuditSink(w), log)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Errorw("audit consumer stopped", "err", err)
		}
	}()
}
