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

	"github.com/andy6609/roomcast/internal/admin"
	"github.com/andy6609/roomcast/internal/chat"
	"github.com/andy6609/roomcast/internal/config"
	"github.com/andy6609/roomcast/internal/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "game listen address")
	flag.StringVar(&cfg.WSAddr, "ws-addr", cfg.WSAddr, "websocket listen address (empty disables)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "metrics listen address (empty disables)")
	flag.StringVar(&cfg.QueuePath, "queue", cfg.QueuePath, "admin action queue file")
	flag.Parse()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logging.Sync(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		logging.Sync(logger)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	queue, err := admin.NewFileQueue(cfg.QueuePath, logger.Named("admin"))
	if err != nil {
		return fmt.Errorf("open admin queue: %w", err)
	}

	var ledger admin.Ledger = admin.NewMemoryLedger()
	if cfg.LedgerPath != "" {
		bl, err := admin.OpenBadgerLedger(cfg.LedgerPath, admin.DefaultLedgerTTL)
		if err != nil {
			return fmt.Errorf("open admin ledger: %w", err)
		}
		defer func() {
			if err := bl.Close(); err != nil {
				logger.Warn("closing admin ledger", zap.Error(err))
			}
		}()
		ledger = bl
	}

	srv := chat.NewServer(chat.Options{
		Addr:           cfg.Addr,
		WSAddr:         cfg.WSAddr,
		LobbyRoom:      cfg.LobbyRoom,
		Spawn:          chat.Position{X: cfg.SpawnX, Y: cfg.SpawnY, Dir: cfg.SpawnDir},
		OutboundBuffer: cfg.OutboundBuffer,
		Session: chat.SessionOptions{
			CommandRate:  cfg.CommandRate,
			CommandBurst: cfg.CommandBurst,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}, logger)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer srv.Stop()

	watcher := admin.NewWatcher(queue, ledger, srv.AdminExecutor(), admin.WatcherConfig{
		PollInterval:    cfg.PollInterval,
		CleanupInterval: cfg.CleanupInterval,
		Retention:       cfg.Retention,
	}, logger.Named("admin"))
	watcher.Start()
	defer watcher.Stop()

	if cfg.MetricsAddr != "" {
		metrics := startMetrics(cfg.MetricsAddr, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metrics.Shutdown(ctx)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("signal received", zap.String("signal", sig.String()))
	return nil
}

func startMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", zap.Error(err))
		}
	}()
	logger.Info("metrics listener started", zap.String("addr", addr))
	return srv
}
