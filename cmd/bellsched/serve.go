package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"bellsched/internal/importer"
	appLog "bellsched/internal/log"
	"bellsched/internal/web"
)

func serveCmd() *cobra.Command {
	var (
		listen    string
		noCron    bool
		importNow bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the schedule API and run scheduled imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if listen != "" {
				a.cfg.Listen = listen
			}
			return a.serve(ctx, !noCron, importNow)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&noCron, "no-cron", false, "Disable scheduled imports")
	cmd.Flags().BoolVar(&importNow, "import-now", false, "Run one import right after startup")
	return cmd
}

func (a *app) serve(ctx context.Context, withCron, importNow bool) error {
	srv := web.NewServer(web.Options{
		Days:       a.days,
		SchoolYear: a.year,
		Importer:   a.importer,
		Pages:      a.pages,
	})
	httpSrv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var scheduler *cron.Cron
	if withCron {
		scheduler = cron.New(
			cron.WithLocation(a.year.Location()),
			cron.WithLogger(cronLogger{}),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
		)
		if _, err := scheduler.AddFunc(a.cfg.RefreshCron, func() { a.scheduledImport(ctx) }); err != nil {
			return err
		}
		scheduler.Start()
		appLog.Info("scheduled imports enabled", "refresh", a.cfg.RefreshCron)
	}
	if importNow {
		go a.scheduledImport(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+a.cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			appLog.Warn("scheduled import still running at shutdown")
		}
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("bellsched exiting")
	return nil
}

func (a *app) scheduledImport(ctx context.Context) {
	sum, err := a.importer.Run(ctx)
	switch {
	case errors.Is(err, importer.ErrRunning):
		appLog.Info("scheduled import skipped; another run is active")
	case err != nil:
		appLog.Error("scheduled import failed", err, "run", sum.RunID)
	default:
		appLog.Info("scheduled import done", "run", sum.RunID, "message", sum.Message, "changed", len(sum.ChangedDates))
	}
}

// cronLogger routes cron's internal logging to the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) { appLog.Debug("cron: "+msg, kv...) }

func (cronLogger) Error(err error, msg string, kv ...any) { appLog.Error("cron: "+msg, err, kv...) }
