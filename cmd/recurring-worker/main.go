package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expensetracker/internal/backend"
	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{Level: level, Component: log.ComponentMaterializer, Format: os.Getenv("LOG_FORMAT"), Output: os.Stdout})
	log.SetDefault(logger)

	logger.Info("Starting recurring-worker", log.FieldOperation, log.OpStartup)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend is process local; the recurring worker only sees its own data")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	opts := []services.MaterializerOption{services.WithConcurrency(cfg.MaterializerConcurrency)}
	if res.Publisher != nil {
		opts = append(opts, services.WithPublisher(res.Publisher))
	}
	materializer := services.NewMaterializer(res.Store, cfg.Catalog, opts...)

	interval := cfg.RecurringInterval
	logger.Info("Recurring materializer configured",
		"interval", interval,
		"concurrency", cfg.MaterializerConcurrency,
		"backend", cfg.DataBackend)

	run := func(trigger string) {
		start := time.Now()
		result, err := materializer.Run(ctx)
		if err != nil {
			logger.Error("Materialization failed",
				log.FieldOperation, log.OpMaterialize,
				log.FieldError, err.Error(),
				"trigger", trigger,
				"created", result.Created)
			return
		}
		logger.Info("Materialization complete",
			log.FieldOperation, log.OpMaterialize,
			"trigger", trigger,
			"rules_checked", result.RulesChecked,
			"rules_advanced", result.RulesAdvanced,
			"created", result.Created,
			"duplicates", result.Duplicates,
			log.FieldDuration, time.Since(start).Milliseconds())
	}

	run("startup")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run("tick")
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown, "signal", sig.String())
	cancel()
	logger.Info("Recurring-worker shutdown complete")
}
