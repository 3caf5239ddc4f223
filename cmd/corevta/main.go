// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tkdvta/corevta/internal/config"
	"github.com/tkdvta/corevta/internal/logging"
	"github.com/tkdvta/corevta/internal/orchestrator"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().Msg("Starting corevta with supervisor tree")
	logging.Info().
		Int("udp_port", cfg.UDP.Port).
		Str("store_dir", cfg.Store.DataDir).
		Int("scene_controllers", len(cfg.SceneCtrl.Endpoints)).
		Msg("Configuration loaded")

	orch, err := orchestrator.New(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build orchestrator")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	runErr := orch.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		logging.Error().Err(runErr).Msg("Supervisor tree error")
	}

	if unstopped, reportErr := orch.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	if err := orch.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing orchestrator resources")
	}

	logging.Info().Msg("Application stopped gracefully")
}
