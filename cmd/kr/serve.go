package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/groblegark/krecipes/internal/config"
	"github.com/groblegark/krecipes/internal/events"
	"github.com/groblegark/krecipes/internal/server"
	"github.com/groblegark/krecipes/internal/store/postgres"
	recipesync "github.com/groblegark/krecipes/internal/sync"
	"github.com/spf13/cobra"
)

const (
	healthInterval  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

var serveLogLevel string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recipes server (HTTP API, gRPC health, periodic export)",
	Long: `Run the recipes server. Settings come from RECIPES_* environment
variables; RECIPES_DATABASE_URL is required.`,
	GroupID:           "system",
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(serveLogLevel)); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

// shutdownStack runs cleanup steps in reverse order of registration.
type shutdownStack struct {
	logger *slog.Logger
	steps  []func() error
	names  []string
}

func (s *shutdownStack) push(name string, fn func() error) {
	s.names = append(s.names, name)
	s.steps = append(s.steps, fn)
}

func (s *shutdownStack) run() {
	for i := len(s.steps) - 1; i >= 0; i-- {
		if err := s.steps[i](); err != nil {
			s.logger.Error("shutdown step failed", "step", s.names[i], "err", err)
			continue
		}
		s.logger.Info("stopped", "step", s.names[i])
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	down := &shutdownStack{logger: logger}
	defer down.run()

	store, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	down.push("store", store.Close)

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	down.push("publisher", publisher.Close)

	healthCtx, cancelHealth := context.WithCancel(ctx)
	grpcServer, hs := server.NewGRPCServer(cfg.AuthToken)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		cancelHealth()
		return fmt.Errorf("listening on %s: %w", cfg.GRPCAddr, err)
	}
	go server.WatchHealth(healthCtx, hs, store, healthInterval)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server stopped unexpectedly", "err", err)
		}
	}()
	down.push("grpc", func() error {
		cancelHealth()
		grpcServer.GracefulStop()
		return nil
	})

	// No WriteTimeout: event streams stay open indefinitely.
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRecipesServer(store, publisher).NewHTTPHandler(cfg.AuthToken),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server stopped unexpectedly", "err", err)
		}
	}()
	down.push("http", func() error {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})

	if dests := syncDestinations(ctx, cfg, logger); len(dests) > 0 {
		scheduler := recipesync.NewScheduler(store, dests, cfg.SyncInterval, logger)
		scheduler.Start()
		down.push("sync", func() error { scheduler.Stop(); return nil })
		logger.Info("periodic export enabled", "interval", cfg.SyncInterval, "destinations", len(dests))
	}

	logger.Info("recipes server started",
		"http_addr", cfg.HTTPAddr,
		"grpc_addr", cfg.GRPCAddr,
		"auth", cfg.AuthToken != "",
	)
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// newPublisher connects to NATS when configured. Without it events are only
// recorded in the database and streamed over SSE.
func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		logger.Info("NATS publishing disabled (RECIPES_NATS_URL not set)")
		return events.NoopPublisher{}, nil
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	logger.Info("publishing events to NATS", "nats_url", cfg.NATSURL)
	return pub, nil
}

// syncDestinations builds the configured export targets. A destination that
// cannot be set up is logged and skipped.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []recipesync.Destination {
	if !cfg.SyncEnabled() {
		return nil
	}
	var dests []recipesync.Destination
	if cfg.SyncS3Bucket != "" {
		d, err := recipesync.NewS3Destination(ctx, recipesync.S3Options{
			Bucket:   cfg.SyncS3Bucket,
			Key:      cfg.SyncS3Key,
			Region:   cfg.SyncS3Region,
			Endpoint: cfg.SyncS3Endpoint,
		})
		if err != nil {
			logger.Error("skipping S3 export", "err", err)
		} else {
			dests = append(dests, d)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, recipesync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
	}
	for _, d := range dests {
		logger.Info("export destination", "name", d.Name())
	}
	return dests
}

func init() {
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "minimum log level: debug, info, warn or error")
}
