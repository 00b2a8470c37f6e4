// Package main is the entry point of the deferred shading demo.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/internal/config"
	"github.com/Carmen-Shannon/oxy-deferred/internal/logger"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := initLogger(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("=== Oxy Deferred ===",
		zap.String("backend", cfg.Renderer.Backend),
		zap.String("strategy", cfg.Renderer.Strategy),
		zap.Int("msaa", cfg.Renderer.MSAA),
		zap.Int("lights", cfg.Lights.Active),
	)
	logger.Debug("config loaded", zap.Any("config", cfg))

	if cfg.Renderer.Backend == config.BackendSoft {
		err = runHeadless(cfg)
	} else {
		err = runWindowed(cfg)
	}
	if err != nil {
		logger.Error("demo stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("closed normally")
	logger.Sync()
}

func initLogger(cfg config.LoggingConfig) error {
	return logger.Init(cfg.Level, logger.WithFile(logger.FileConfig{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}))
}
