package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flemzord/tgrelay/internal/config"
	"github.com/flemzord/tgrelay/internal/cron"
	"github.com/flemzord/tgrelay/internal/dedup"
	"github.com/flemzord/tgrelay/internal/gateway"
	"github.com/flemzord/tgrelay/internal/relay"
	"github.com/flemzord/tgrelay/internal/reload"
	"github.com/flemzord/tgrelay/internal/replies"
	"github.com/flemzord/tgrelay/internal/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook relay server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			a.cfgPath = configPath(cmd)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

// serve runs the relay until ctx is cancelled, then shuts every
// component down in reverse start order.
func (a *app) serve(ctx context.Context) (err error) {
	for _, w := range config.Warnings(a.cfg) {
		a.logger.Warn(w)
	}

	shutdownTracing, err := telemetry.InitTraceProvider(ctx, a.cfg.Tracing, version)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, shutdownTracing(context.WithoutCancel(ctx))) }()

	store, err := dedup.Open(ctx, a.cfg.Dedup)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, store.Close()) }()

	scheduler := cron.NewScheduler(a.logger)
	if err := scheduler.RegisterJob(&cron.DedupPruneJob{
		Store:        store,
		Pruned:       a.metrics.DedupPrunedTotal,
		Logger:       a.logger,
		ScheduleExpr: a.cfg.Dedup.PruneSchedule,
	}); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer func() { err = errors.Join(err, scheduler.Stop(context.WithoutCancel(ctx))) }()

	rl := relay.New(relay.Options{
		Bots:    a.bots(),
		Replies: replies.NewResolver(a.cfg.Replies),
		Dedup:   store,
		Metrics: a.metrics,
		Logger:  a.logger,
		Tracer:  telemetry.Tracer(),
	})
	if a.cfgPath != "" {
		stopReload := a.watchConfig(ctx, rl)
		defer stopReload()
	}

	gw := gateway.New(a.cfg.Server, gateway.Deps{
		Relay:     rl,
		Registrar: a.registrar(),
		Metrics:   a.metrics.Handler(),
		Audit:     a.audit,
		Logger:    a.logger,
		Version:   version,
	})
	if err := gw.Start(); err != nil {
		return err
	}
	a.logger.Info("tgrelay started", "version", version, "dedup", a.cfg.Dedup.Backend)

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return gw.Stop(context.WithoutCancel(ctx))
}

// watchConfig reloads the reply table into rl when the config file
// changes or the process receives SIGHUP. The returned func stops both.
func (a *app) watchConfig(ctx context.Context, rl *relay.Relay) func() {
	ctx, cancel := context.WithCancel(ctx)

	watcher := reload.NewWatcher(a.cfgPath, 0)
	watcher.Start(ctx)

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)

	handler := reload.NewHandler(a.cfgPath, rl, a.cfg, a.logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.Run(ctx, watcher.Events(), sighup)
	}()

	return func() {
		signal.Stop(sighup)
		cancel()
		watcher.Stop()
		<-done
	}
}
