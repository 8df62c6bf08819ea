package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/vultisig/tokensync/config"
	"github.com/vultisig/tokensync/internal/cache"
	"github.com/vultisig/tokensync/internal/linkage"
	"github.com/vultisig/tokensync/internal/logging"
	"github.com/vultisig/tokensync/internal/metrics"
	"github.com/vultisig/tokensync/internal/service"
	"github.com/vultisig/tokensync/internal/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("jwt-sync", pflag.ContinueOnError)
	config.RegisterFlags(flagSet)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.ReadConfig(flagSet)
	if err != nil {
		return fmt.Errorf("config.ReadConfig: %w", err)
	}
	logger := logging.NewLogger(cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	lifecycle := metrics.NewLifecycleMetrics()
	registry := metrics.NewRegistry(lifecycle, logger)

	svc, err := service.NewSyncService(service.Dependencies{
		Resolver: linkage.NewResolver(cfg.AppConfig, logger),
		Connect:  service.ProfileConnector(cfg.AccessConfig, cfg.ExpectedApplication, logger),
		Codec:    token.NewCodec(),
		Cache:    cache.NewManager(logger),
		Metrics:  lifecycle,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("service.NewSyncService: %w", err)
	}

	result, runErr := svc.Run(ctx)
	service.WriteSyncReport(os.Stdout, result, runErr)

	if err := registry.Push(ctx, cfg.Metrics, metrics.WorkflowSync); err != nil {
		logger.WithError(err).Warn("failed to push metrics")
	}
	return runErr
}
