package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"optionflow/config"
	"optionflow/engine"
	"optionflow/internal/channel"
	"optionflow/logger"
	"optionflow/models"
	"optionflow/orchestrator"
	"optionflow/provider"
	_ "optionflow/provider/angelone"
	_ "optionflow/provider/dhan"
	_ "optionflow/provider/nse"
	"optionflow/store"
	"optionflow/store/memory"
	"optionflow/store/postgres"
	"optionflow/tracker"
	"optionflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Optionflow.Name,
		"version": cfg.Optionflow.Version,
	}).Info("starting optionflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch {
		logger.InitCloudWatch(cfg.Metrics.Region, cfg.Metrics.Namespace)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	channels := channel.NewChannels(cfg.Channels.SnapshotBuffer, cfg.Channels.SignalBuffer)
	defer channels.Close()
	channels.StartMetricsReporting(ctx)

	gatewayCfgs := make([]provider.GatewayConfig, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		gatewayCfgs = append(gatewayCfgs, provider.GatewayConfig{
			Name:        pc.Name,
			Kind:        pc.Kind,
			Priority:    pc.Priority,
			Enabled:     pc.Enabled,
			BaseURL:     pc.BaseURL,
			MinInterval: pc.MinInterval,
			Credentials: pc.Credentials,
		})
	}
	registry, err := provider.BuildRegistry(gatewayCfgs, cfg.Acquirer.CallTimeout)
	if err != nil {
		log.WithError(err).Error("failed to build provider registry")
		os.Exit(1)
	}

	var oiStore store.OIStore
	var archiveStore store.ArchiveStore
	if cfg.Storage.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Storage.Postgres.DSN)
		if err != nil {
			log.WithError(err).Error("failed to connect postgres")
			os.Exit(1)
		}
		oiStore = pg
		archiveStore = pg
	} else {
		log.WithComponent("main").Info("postgres disabled; using in-memory store")
		mem := memory.New()
		oiStore = mem
		archiveStore = mem
	}
	defer oiStore.Close()

	var archiver orchestrator.Archiver
	if cfg.Storage.S3.Enabled || cfg.Storage.S3.LocalDir != "" {
		a, err := writer.NewArchiver(ctx, cfg.Storage.S3)
		if err != nil {
			log.WithError(err).Error("failed to create archiver")
			os.Exit(1)
		}
		archiver = a
	} else {
		log.WithComponent("main").Info("archiving disabled")
	}

	calendar, err := orchestrator.NewSessionCalendar(cfg.Session)
	if err != nil {
		log.WithError(err).Error("invalid session configuration")
		os.Exit(1)
	}

	orch, err := orchestrator.New(cfg.Orchestrator, cfg.Symbols, calendar, orchestrator.Deps{
		Acquirer: provider.NewAcquirer(registry, cfg.Acquirer.CallTimeout),
		Tracker:  tracker.New(cfg.Tracker.SignificanceFloor, cfg.Tracker.LargeDeltaFloor),
		Engine:   engine.New(engine.FromConfig(cfg.Thresholds)),
		OIStore:  oiStore,
		Archives: archiveStore,
		Archiver: archiver,
		Channels: channels,
		Registry: registry,
	})
	if err != nil {
		log.WithError(err).Error("failed to build orchestrator")
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		orch.Start(ctx)
		close(done)
	}()

	// Prime the series immediately instead of waiting out the first tick.
	// The goroutine is joined before the deferred channel close runs.
	var prime sync.WaitGroup
	prime.Add(1)
	go func() {
		defer prime.Done()
		orch.RefreshData(ctx, nil, models.TriggerScheduled)
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()
	prime.Wait()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("optionflow stopped")
}
