package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/clock"
	"github.com/hamed0406/pingmonitor/internal/config"
	"github.com/hamed0406/pingmonitor/internal/httpapi"
	"github.com/hamed0406/pingmonitor/internal/live"
	"github.com/hamed0406/pingmonitor/internal/logging"
	"github.com/hamed0406/pingmonitor/internal/metrics"
	"github.com/hamed0406/pingmonitor/internal/notify"
	"github.com/hamed0406/pingmonitor/internal/probe"
	"github.com/hamed0406/pingmonitor/internal/query"
	"github.com/hamed0406/pingmonitor/internal/repo"
	"github.com/hamed0406/pingmonitor/internal/repo/memory"
	"github.com/hamed0406/pingmonitor/internal/repo/postgres"
	"github.com/hamed0406/pingmonitor/internal/repo/sqlite"
	"github.com/hamed0406/pingmonitor/internal/scheduler"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger, _, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) (err error) {
	zone, err := clock.New(cfg.Timezone)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, zone, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	feed := live.NewFeed()
	if last, lerr := store.Latest(ctx); lerr == nil {
		feed.Seed(*last)
	} else if !errors.Is(lerr, repo.ErrNotFound) {
		return fmt.Errorf("load latest result: %w", lerr)
	}

	m := metrics.New()
	m.RegisterFeed(feed.Subscribers, feed.Dropped)

	prober := probe.NewTCPProber(cfg.Host, cfg.Port, cfg.ConnectTimeout)
	notifier := notify.Build(logger, cfg.SlackWebhook, notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.User,
		Password: cfg.SMTP.Pass,
		From:     cfg.SMTP.From,
		To:       cfg.SMTP.To,
		TLS:      cfg.SMTP.TLS,
	})
	tracker := scheduler.NewFailureTracker(notifier, scheduler.AlerterConfig{
		Threshold:       cfg.FailureThreshold,
		Cooldown:        cfg.NotifyCooldown,
		AlertOnRecovery: cfg.AlertOnRecovery,
		NotifyTimeout:   cfg.NotifyTimeout,
		Target:          prober.Address(),
	}, logger, m)
	tracker.Context = func(ctx context.Context) string {
		return probe.CheckDNS(ctx, cfg.Host).Summary()
	}

	retention, err := scheduler.NewRetention(store, zone, cfg.RetentionDays, cfg.PruneAt, logger, m)
	if err != nil {
		return err
	}
	if err := retention.Start(ctx); err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, retention.Stop()) }()

	loop := scheduler.NewProber(logger, prober, store, feed, tracker, m, cfg.PingInterval, cfg.ConnectTimeout)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()

	api := httpapi.NewServer(
		logger,
		query.NewService(store, zone, logger),
		feed,
		tracker,
		live.NewHub(feed, cfg.AllowedOrigins, logger),
		m,
		zone,
		httpapi.SiteInfo{Title: cfg.Title, Host: cfg.Host, Port: cfg.Port, Interval: cfg.PingInterval},
	)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("api_listen",
		zap.String("addr", cfg.Addr),
		zap.String("target", prober.Address()),
		zap.String("store", cfg.StoreKind()),
		zap.String("tz", zone.Name()),
	)
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_requested")
	case err = <-serveErr:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	<-loopDone
	tracker.Wait()
	logger.Info("shutdown_complete")
	return err
}

func openStore(ctx context.Context, cfg config.Config, zone *clock.Zone, logger *zap.Logger) (repo.ResultStore, error) {
	switch cfg.StoreKind() {
	case "postgres":
		s, err := postgres.New(ctx, cfg.DatabaseURL, zone, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		logger.Warn("store_memory", zap.String("note", "results are lost on restart"))
		return memory.New(zone), nil
	default:
		s, err := sqlite.New(ctx, cfg.DBPath, zone)
		if err != nil {
			return nil, err
		}
		logger.Info("store_sqlite", zap.String("path", cfg.DBPath))
		return s, nil
	}
}
