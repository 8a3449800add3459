package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mtsched/internal/busy"
	"mtsched/internal/config"
	"mtsched/internal/jobs"
	"mtsched/internal/locale"
	appLog "mtsched/internal/log"
	"mtsched/internal/metrics"
	"mtsched/internal/session"
	"mtsched/internal/tzcatalog"
	"mtsched/internal/web"
)

func (cli *CLI) newServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web page and API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// --listen overrides config file and environment.
			if listen != "" {
				cli.cfg.Listen = listen
			}
			return serve(cli.cfg)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func serve(cfg *config.Config) error {
	appLog.Info("mtsched starting", "version", version)
	appLog.Info("effective config",
		"listen", cfg.Listen,
		"primary_timezone", cfg.PrimaryTimezone,
		"secondary_timezone", cfg.SecondaryTimezone,
		"use_secondary", cfg.SecondaryEnabled(),
		"language", cfg.Language,
		"ordinals", cfg.Ordinals,
		"ics_count", len(cfg.Busy.ICS),
		"basic_auth", cfg.BasicAuth != nil,
	)

	if err := checkSchedules(cfg); err != nil {
		return err
	}
	zones, err := tzcatalog.Load()
	if err != nil {
		return fmt.Errorf("zone catalog: %w", err)
	}
	messages, err := locale.Default()
	if err != nil {
		return fmt.Errorf("messages: %w", err)
	}
	formatter, err := newFormatter(cfg)
	if err != nil {
		return err
	}

	secondary := cfg.SecondaryTimezone
	if secondary == "" {
		secondary = zones.Default()
	}
	if secondary, _, err = zones.Resolve(secondary); err != nil {
		return fmt.Errorf("secondary timezone: %w", err)
	}
	store := session.NewStore(session.Settings{
		SecondaryZone: secondary,
		UseSecondary:  cfg.SecondaryEnabled(),
	}, nil)

	m := metrics.New()
	busySvc := busy.NewService(
		busy.NewFetcher(cfg.Busy.CacheDir, nil),
		busySources(cfg.Busy.ICS),
		cfg.Busy.HorizonDays,
		func(result string) { m.BusyFetches.WithLabelValues(result).Inc() },
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := jobs.New(ctx)
	idle := time.Duration(cfg.SessionIdleMinutes) * time.Minute
	if err := sched.Add("session-sweep", cfg.SessionSweep, func(context.Context) error {
		store.Sweep(idle)
		m.Sessions.Set(float64(store.Len()))
		return nil
	}); err != nil {
		return err
	}
	if busySvc.Enabled() {
		if err := sched.Add("busy-refresh", cfg.Busy.Refresh, busySvc.Refresh); err != nil {
			return err
		}
		// First load in the background; the overlay stays empty until then.
		// A tick that lands while it runs is skipped by the job lock.
		go func() { _ = sched.RunNow("busy-refresh") }()
	}
	sched.Start()

	srv := &http.Server{
		Addr: cfg.Listen,
		Handler: web.NewServer(cfg, web.Deps{
			Zones:     zones,
			Formatter: formatter,
			Sessions:  store,
			Messages:  messages,
			Busy:      busySvc,
			Metrics:   m,
		}).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sched.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	appLog.Info("mtsched exiting")
	return nil
}

// checkSchedules rejects cron expressions in the config before anything
// is started.
func checkSchedules(cfg *config.Config) error {
	if err := jobs.ValidateSpec(cfg.SessionSweep); err != nil {
		return fmt.Errorf("session_sweep %q: %w", cfg.SessionSweep, err)
	}
	if len(busySources(cfg.Busy.ICS)) > 0 {
		if err := jobs.ValidateSpec(cfg.Busy.Refresh); err != nil {
			return fmt.Errorf("busy.refresh %q: %w", cfg.Busy.Refresh, err)
		}
	}
	return nil
}

// busySources maps configured feeds to fetch sources, falling back from ID
// to Name to URL for the identifier.
func busySources(cfgs []config.ICSConfig) []busy.Source {
	sources := make([]busy.Source, 0, len(cfgs))
	for _, c := range cfgs {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			if c.Name != "" {
				id = c.Name
			} else {
				id = c.URL
			}
		}
		sources = append(sources, busy.Source{ID: id, URL: c.URL})
	}
	return sources
}
