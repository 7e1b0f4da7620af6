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

	"orderbookflow/config"
	"orderbookflow/logger"
	"orderbookflow/models"
	"orderbookflow/processor"
	"orderbookflow/reader/binance"
	"orderbookflow/recovery"
	"orderbookflow/writer"
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
		"service": cfg.App.Name,
		"version": cfg.App.Version,
		"env":     config.AppEnvironment(),
	}).Info("starting orderbookflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch {
		logger.InitCloudWatch(cfg.Storage.S3.Region, cfg.Metrics.Namespace)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	rawChan := make(chan models.RawDepthMessage, cfg.Channels.RawBuffer)
	defer close(rawChan)

	var snapshots *writer.SnapshotStore
	if cfg.Storage.S3.Enabled {
		store, err := writer.NewS3Store(cfg)
		if err != nil {
			log.WithError(err).Error("failed to create S3 store")
			os.Exit(1)
		}
		snapshots = writer.NewSnapshotStore(store, cfg.Storage.S3.Prefix, cfg.Storage.S3.Extension)
	} else {
		log.WithComponent("main").Error("S3 storage disabled; capture pipeline has nowhere to write")
		os.Exit(1)
	}

	depthReader := binance.NewDepthReader(cfg, rawChan)
	ingestor := processor.NewIngestor(cfg, rawChan, snapshots)

	var agent *recovery.Agent
	if cfg.Recovery.Enabled {
		fetcher := recovery.NewBinanceFetcher(cfg)
		agent = recovery.NewAgent(cfg, fetcher, snapshots)
	} else {
		log.WithComponent("main").Info("recovery disabled; gaps will not be backfilled")
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ingestor.Start(ctx); err != nil {
			log.WithError(err).Warn("ingestor failed to start")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := depthReader.Start(ctx); err != nil {
			log.WithError(err).Warn("depth reader failed to start")
		}
	}()

	if agent != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := agent.Start(ctx); err != nil {
				log.WithError(err).Warn("recovery agent failed to start")
			}
		}()
	}

	time.Sleep(2 * time.Second)
	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	if agent != nil {
		log.Info("stopping recovery agent")
		agent.Stop()
	}

	log.Info("stopping depth reader")
	depthReader.Stop()

	log.Info("stopping ingestor")
	ingestor.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("orderbookflow stopped")
}
