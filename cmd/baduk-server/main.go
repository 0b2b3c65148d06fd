package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/badukhouse/baduk-server/internal/commentary"
	appcfg "github.com/badukhouse/baduk-server/internal/config"
	"github.com/badukhouse/baduk-server/internal/gateway"
	"github.com/badukhouse/baduk-server/internal/history"
	"github.com/badukhouse/baduk-server/internal/msgcat"
	"github.com/badukhouse/baduk-server/internal/notify"
	"github.com/badukhouse/baduk-server/internal/obslog"
	"github.com/badukhouse/baduk-server/internal/room"
	"github.com/badukhouse/baduk-server/internal/user"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Printf("logger init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	messages, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	// Redis is optional: without it the server runs single-instance with
	// in-memory rooms and a local notification fan-out.
	var (
		store  room.Store
		broker notify.Broker
		rdb    *redis.Client
	)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url error: %v", err)
		}
		rdb = redis.NewClient(opt)
		pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pctx).Err(); err != nil {
			pcancel()
			log.Fatalf("redis ping error: %v", err)
		}
		pcancel()
		store = room.NewRedisStore(rdb)
		broker = notify.NewRedisBroker(rdb, cfg.NotifyBuffer)
		obslog.L().Info("storage_redis", zap.String("url", cfg.RedisURL))
	} else {
		store = room.NewMemoryStore()
		broker = notify.NewLocalBroker(cfg.NotifyBuffer)
		obslog.L().Info("storage_memory")
	}

	// Same fallback shape for the relational side.
	var (
		users    user.Directory
		recorder history.Recorder
	)
	if cfg.DatabaseURL != "" {
		dir, err := user.NewPGDirectory(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("user directory init error: %v", err)
		}
		defer dir.Close()
		rec, err := history.NewPGRecorder(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("history recorder init error: %v", err)
		}
		defer rec.Close()
		users, recorder = dir, rec
		obslog.L().Info("persistence_postgres")
	} else {
		users = user.NewMemoryDirectory()
		recorder = history.NewMemoryRecorder()
		obslog.L().Info("persistence_memory")
	}

	comments := commentary.NewClient(cfg.OpenAIAPIURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	mgr := room.NewManager(store, users, recorder, broker, messages)
	srv := gateway.New(cfg.ListenAddr, mgr, users, recorder, broker, comments)

	errCh := make(chan error, 1)
	go func() {
		obslog.L().Info("server_listen", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		obslog.L().Info("server_shutdown", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		obslog.L().Warn("server_shutdown_error", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
