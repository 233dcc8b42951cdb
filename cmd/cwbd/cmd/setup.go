package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/config"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/logger"
)

// loadConfig loads the configuration file, applies CLI overrides, validates
// the result and builds the logger.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, overrides.Workers,
		overrides.CategoryFile, overrides.DumpsDir, overrides.OutputDir, overrides.Recursive)

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM. In-flight
// downloads drain and the index is flushed before the process exits.
func signalContext(log *logger.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn("Received shutdown signal - finishing in-flight downloads...")
		cancel()
	}()
	return ctx, cancel
}
