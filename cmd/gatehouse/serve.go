// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/crypt"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication service",
		Long: `Run the authentication service: the state engine, the join
verification pipeline and the observability endpoints. The host
environment drives the engine through its library interface.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger := logging.Setup("gatehouse", version, cfg.Log.Format, cfg.Log.Level, nil)

	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	obs := observability.NewServer(cfg.Metrics.Addr, func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	})
	metrics := auth.NewMetrics(obs.Registry())

	store := postgres.NewCredentialStore(pool)
	cache := auth.NewSessionCache()
	notifier := auth.NewBusNotifier(nil)
	tasks := auth.NewTaskManager()
	defer tasks.Close()

	resolver, err := cfg.Resolver()
	if err != nil {
		return err
	}

	verifier, err := auth.NewJoinVerifier(auth.JoinVerifierConfig{
		Store:    store,
		Cache:    cache,
		AntiBot:  auth.NewAntiBot(cfg.AntiBotSettings()),
		Resolver: resolver,
		Notifier: notifier,
		Logger:   logger,
		Metrics:  metrics,
	}, cfg.PipelineSettings())
	if err != nil {
		return err
	}

	engine, err := auth.NewEngine(auth.EngineConfig{
		Cache:    cache,
		Store:    store,
		Method:   crypt.ForName(cfg.Crypt.Algorithm, cfg.CryptSettings()),
		Crypt:    cfg.CryptSettings(),
		Policy:   auth.NewDefaultPolicy(cfg.PolicySettings()),
		Notifier: notifier,
		Tasks:    tasks,
		Holding:  auth.NewHoldingCache(),
		Verifier: verifier,
		Logger:   logger,
		Metrics:  metrics,
		Settings: cfg.EngineSettings(),
	})
	if err != nil {
		return err
	}

	// The host environment drives the engine; evictions surface here so
	// operators can trace forced disconnects even before a host attaches.
	if err := notifier.Bus().Subscribe(auth.TopicEvict, func(evict auth.Evict) {
		logger.Info("eviction requested", "identity", evict.Identity, "reason", evict.Reason)
	}); err != nil {
		return oops.Code("BUS_SUBSCRIBE_FAILED").Wrap(err)
	}

	obsErr, err := obs.Start()
	if err != nil {
		return err
	}

	logger.Info("gatehouse running",
		"metrics_addr", obs.Addr(),
		"algorithm", cfg.Crypt.Algorithm,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-obsErr:
		if err != nil {
			return oops.Code("OBSERVABILITY_FAILED").Wrap(err)
		}
	}

	// drop remaining sessions so timers and holding state are released
	for _, state := range cache.Snapshot() {
		engine.ProcessQuit(state.Identity, true)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return obs.Stop(stopCtx)
}
