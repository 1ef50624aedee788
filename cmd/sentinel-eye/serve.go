package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seven-shadow/sentinel-eye/config"
	"github.com/seven-shadow/sentinel-eye/dashboard"
	"github.com/seven-shadow/sentinel-eye/events"
	"github.com/seven-shadow/sentinel-eye/provider"
)

// shutdownGrace bounds how long serve waits for in-flight work on exit.
const shutdownGrace = 10 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	var (
		listen         string
		assetRoot      string
		refreshSeconds int
		natsURL        string
		apiToken       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the triage dashboard with periodic refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := parseRepo(flags.repo)
			if err != nil {
				return err
			}
			p, err := provider.Get(flags.providerName)
			if err != nil {
				return err
			}
			resolved, err := config.Resolve(flags.configPath)
			if err != nil {
				return err
			}
			if natsURL == "" {
				natsURL = os.Getenv("NATS_URL")
			}
			return runServe(cmd.Context(), serveParams{
				provider:       p,
				repo:           repo,
				limit:          flags.limit,
				resolved:       resolved,
				listen:         listen,
				assetRoot:      assetRoot,
				refreshSeconds: refreshSeconds,
				natsURL:        natsURL,
				apiToken:       apiToken,
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8844", "Listen address")
	cmd.Flags().StringVar(&assetRoot, "asset-root", "", "Directory with the built dashboard assets")
	cmd.Flags().IntVar(&refreshSeconds, "refresh-seconds", 120, "Seconds between background refreshes")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "Publish refresh events to this NATS server (optional)")
	cmd.Flags().StringVar(&apiToken, "api-token", "", "Require this bearer token on the API (optional)")
	return cmd
}

type serveParams struct {
	provider       provider.Provider
	repo           provider.RepoRef
	limit          int
	resolved       *config.Resolved
	listen         string
	assetRoot      string
	refreshSeconds int
	natsURL        string
	apiToken       string
}

func runServe(ctx context.Context, params serveParams) error {
	logger := slog.Default()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Refresh events over NATS are optional; a dead broker only costs a
	// warning.
	var publisher *events.Publisher
	if params.natsURL != "" {
		p, err := events.Connect(params.natsURL, logger)
		if err != nil {
			logger.Warn("event publishing disabled", "url", params.natsURL, "error", err)
		} else {
			publisher = p
			defer publisher.Close()
		}
	}

	metrics := dashboard.NewMetrics()
	builder := dashboard.NewBuilder(
		params.provider, params.repo, params.limit,
		params.resolved.Config, params.resolved.Path,
		dashboard.WithLogger(logger),
	)
	scheduler := dashboard.NewScheduler(
		builder,
		time.Duration(params.refreshSeconds)*time.Second,
		dashboard.WithSchedulerLogger(logger),
		dashboard.WithMetrics(metrics),
		dashboard.WithOnRefresh(func(snapshot *dashboard.Snapshot, ok bool) {
			publisher.PublishRefresh(events.RefreshEvent{
				Repo:           snapshot.Meta.Repo,
				Provider:       snapshot.Meta.Provider,
				GeneratedAt:    snapshot.Meta.GeneratedAt,
				OK:             ok,
				Stale:          snapshot.Meta.Stale,
				BackoffSeconds: snapshot.Meta.BackoffSeconds,
			})
		}),
	)

	server := dashboard.NewServer(params.listen, scheduler, builder, params.resolved,
		dashboard.WithAssetRoot(params.assetRoot),
		dashboard.WithAPIToken(params.apiToken),
		dashboard.WithServerLogger(logger),
		dashboard.WithServerMetrics(metrics),
	)

	// Config edits on disk reload the builder and trigger a refresh.
	watcher, err := config.NewWatcher(params.resolved.Path, logger, func(resolved *config.Resolved) {
		logger.Info("config reloaded", "path", resolved.Path, "source", resolved.Source)
		builder.SetConfig(resolved.Config)
		go scheduler.Refresh(context.Background())
	})
	if err != nil {
		logger.Warn("config watching disabled", "error", err)
	} else if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watching disabled", "error", err)
	} else {
		defer watcher.Stop()
	}

	scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
