package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groupchat/internal/config"
	"github.com/groupchat/internal/handler"
	"github.com/groupchat/internal/logger"
	"github.com/groupchat/internal/middleware"
	"github.com/groupchat/internal/push"
	"github.com/groupchat/internal/repository"
	"github.com/groupchat/internal/service"
	"github.com/groupchat/internal/startup"
	"github.com/groupchat/internal/storage"
	"github.com/groupchat/internal/storage/memory"
	redisstorage "github.com/groupchat/internal/storage/redis"
	"github.com/groupchat/internal/ws"
)

func main() {
	logger.SetPrefix("api")
	if err := run(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

// run возвращает ошибку вместо os.Exit, чтобы отложенные Stop/Close успели выполниться.
func run() error {
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	inMemory := flag.Bool("memory", false, "keep all state in memory (no database)")
	flag.Parse()

	logger.Info("starting groupchat API")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	if *inMemory {
		cfg.StorageDriver = config.StorageDriverMemory
	}

	var (
		store  storage.Store
		health func(*http.Request) error
	)
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warnf("storage: in-memory, state is lost on restart")
		store = memory.New()
	} else {
		var embeddedDB *embeddedpostgres.EmbeddedPostgres
		if *dev {
			db, url, err := startup.StartEmbeddedPostgres(os.Getenv("PGDATA_DIR"))
			if err != nil {
				return fmt.Errorf("embedded postgres: %w", err)
			}
			embeddedDB = db
			cfg.Database.URL = url
			defer func() {
				logger.Info("stopping embedded postgres...")
				if err := embeddedDB.Stop(); err != nil {
					logger.Errorf("embedded postgres stop: %v", err)
				}
			}()
		}

		poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
		if err != nil {
			return fmt.Errorf("parse db config: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.DBMaxConnections())
		poolCfg.MinConns = 2

		pool, err := startup.ConnectDB(context.Background(), poolCfg, 60*time.Second)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := startup.RunMigrations(pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		if *migrate && !*dev {
			logger.Info("migrations applied")
			return nil
		}
		logger.Info("database connected, migrations applied")
		store = repository.NewStore(pool)
		health = func(r *http.Request) error {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			return pool.Ping(ctx)
		}
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	var bgWg sync.WaitGroup

	hub := ws.NewHub(nil, cfg.WS.MaxConnections, cfg.WS.MaxRoomsPerConn)
	bgWg.Add(1)
	go func() {
		defer bgWg.Done()
		hub.Run(bgCtx)
	}()

	// Без relay события доставляются только подписчикам этого процесса.
	var events service.Broadcaster = hub
	if cfg.Redis.Relay {
		rdb, err := startup.ConnectRedis(bgCtx, cfg.Redis.URL, 60*time.Second)
		if err != nil {
			return err
		}
		defer rdb.Close()
		relay := redisstorage.NewRelay(rdb, hub)
		events = relay
		bgWg.Add(1)
		go func() {
			defer bgWg.Done()
			if err := relay.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("redis relay stopped: %v", err)
			}
		}()
		logger.Info("redis relay enabled")
	}

	pushClient := push.NewClient(cfg.Push.ServiceURL)
	var pusher service.PushNotifier
	if pushClient.Enabled() {
		pusher = pushClient
	}
	gw := service.NewGateway(store, events, pusher)
	hub.SetCommands(gw)
	chat := service.NewChatRooms(store, events)

	var auth func(http.Handler) http.Handler
	switch cfg.Auth.Mode {
	case config.AuthModeJWT:
		auth = middleware.JWTAuth(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	case config.AuthModeHeader:
		logger.Warnf("auth: trusting X-User-Id header, never use this in production")
		auth = middleware.HeaderAuth
	default:
		auth = middleware.AuthServiceValidate(cfg.Auth.ServiceURL, nil)
	}

	router := handler.NewRouter(handler.Deps{
		Config:      cfg,
		Rooms:       handler.NewRoomHandler(chat, gw),
		WS:          handler.NewWSHandler(hub, cfg.CORSAllowedOrigins),
		Push:        handler.NewPushHandler(pushClient),
		Auth:        auth,
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimit.IPRate, cfg.RateLimit.IPBurst, cfg.RateLimit.UserRate, cfg.RateLimit.UserBurst),
		Health:      health,
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	bgCancel()
	bgWg.Wait()
	logger.Info("hub and relay stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
	return serveErr
}
