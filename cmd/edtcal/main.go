package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"edtcal/internal/config"
	"edtcal/internal/feed"
	appLog "edtcal/internal/log"
	"edtcal/internal/portal"
	"edtcal/internal/schedule"
	"edtcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	debug      bool
}

func main() {
	flags := parseFlags()
	appLog.Init(flags.debug)
	defer appLog.Sync()

	appLog.Info("edtcal starting", "version", "1.0.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"export_weeks", conf.ExportWeeks,
		"refresh", conf.RefreshCron,
		"feed_count", len(conf.Feeds),
		"protected_users", len(conf.ProtectedUsers),
	)

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("invalid timezone, falling back to UTC", err, "timezone", conf.Timezone)
		loc = time.UTC
	}

	sources := make([]feed.Source, 0, len(conf.Feeds))
	for _, fc := range conf.Feeds {
		if fc.URL == "" {
			continue
		}
		id := fc.ID
		if id == "" {
			id = fc.Name
		}
		name := fc.Name
		if name == "" {
			name = id
		}
		sources = append(sources, feed.Source{ID: id, Name: name, URL: fc.URL})
	}

	portalFetcher := portal.NewFetcher(conf.Portal)
	feedFetcher := feed.NewFetcher(conf.FeedCacheDir)
	aggregator := schedule.NewAggregator(portalFetcher, feedFetcher, sources, loc)
	server := web.NewServer(conf, aggregator, portalFetcher, loc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Periodic cache warm for protected users.
	scheduler := cron.New()
	if len(conf.ProtectedUsers) > 0 {
		if _, err := scheduler.AddFunc(conf.RefreshCron, func() {
			warmCtx, warmCancel := context.WithTimeout(ctx, 5*time.Minute)
			defer warmCancel()
			server.WarmCalendars(warmCtx)
		}); err != nil {
			appLog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
			os.Exit(1)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	httpServer := &http.Server{
		Addr:              conf.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		appLog.Info("signal received, shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("shutdown incomplete", err)
	}
	appLog.Info("edtcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/edtcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
