// Meshnoded is the networkneuron relay node daemon.
//
// Usage:
//
//	meshnoded [flags]   Run a relay node
//	meshnoded --help    Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/networkneuron/internal/api"
	"github.com/Klingon-tech/networkneuron/internal/config"
	"github.com/Klingon-tech/networkneuron/internal/coordinator"
	"github.com/Klingon-tech/networkneuron/internal/log"
)

func main() {
	// ── 1. Load config (defaults → file → flags) ────────────────────────
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Init logger ────────────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = cfg.LogsDir() + "/meshnode.log"
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := log.WithComponent("main")

	// ── 3. Build the node ─────────────────────────────────────────────────
	coord, err := coordinator.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build node")
	}

	if err := coord.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start node")
	}
	logger.Info().
		Str("node_id", coord.LocalID().String()).
		Str("addr", coord.Transport.Addr()).
		Msg("relay node started")

	// ── 4. Administrative API (optional: empty api_addr disables it) ──────
	var apiServer *api.Server
	if cfg.APIAddr != "" {
		apiServer = api.New(cfg.APIAddr, coord)
		if err := apiServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start administrative API")
		}
		logger.Info().Str("addr", apiServer.Addr()).Msg("administrative API listening")
	}

	// ── 5. Wait for shutdown signal ────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Warn().Err(err).Msg("administrative API shutdown")
		}
	}
	if err := coord.Stop(); err != nil {
		logger.Warn().Err(err).Msg("node shutdown")
	}
	logger.Info().Msg("shutdown complete")
}
