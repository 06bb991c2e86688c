// Микросервис Web Push: подписки браузеров в Redis, уведомления о новых сообщениях через VAPID.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/groupchat/internal/logger"
	"github.com/groupchat/internal/middleware"
	"github.com/groupchat/internal/push"
	"github.com/groupchat/internal/pushserver"
	"github.com/groupchat/internal/startup"
)

type pushConfig struct {
	Env             string        `envconfig:"APP_ENV"`
	Addr            string        `envconfig:"SERVER_ADDR" default:":8082"`
	RedisURL        string        `envconfig:"REDIS_URL" default:"redis://localhost:6379"`
	VAPIDPublicKey  string        `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string        `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDKeysFile   string        `envconfig:"VAPID_KEYS_FILE"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
}

func main() {
	logger.SetPrefix("push")
	if err := run(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	genVAPID := flag.Bool("gen-vapid", false, "print a fresh VAPID key pair and exit")
	flag.Parse()

	if *genVAPID {
		priv, pub, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			return fmt.Errorf("generate VAPID: %w", err)
		}
		logger.Infof("VAPID_PUBLIC_KEY=%s", pub)
		logger.Infof("VAPID_PRIVATE_KEY=%s", priv)
		time.Sleep(100 * time.Millisecond) // логгер асинхронный
		return nil
	}
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}
	var cfg pushConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)
	logger.Info("starting push service")

	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		keys, err := push.EnsureVAPIDKeys(cfg.VAPIDKeysFile)
		if err != nil {
			logger.Warnf("VAPID keys unavailable, notifications disabled: %v", err)
		} else {
			cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey = keys.PublicKey, keys.PrivateKey
		}
	}

	rdb, err := startup.ConnectRedis(context.Background(), cfg.RedisURL, 60*time.Second)
	if err != nil {
		return err
	}
	defer rdb.Close()
	logger.Info("redis connected")

	srv := pushserver.New(rdb, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	r.Use(middleware.RequestLog)
	r.Mount("/", srv.Routes())

	httpSrv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("push server listening on %s", cfg.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var serveErr error
	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("push server: %w", err)
		}
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	logger.Info("push server stopped")
	return serveErr
}
