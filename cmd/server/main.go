package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/forta-classifier/internal/api"
	"github.com/forta-classifier/internal/config"
	"github.com/forta-classifier/internal/loader"
	"github.com/forta-classifier/internal/logging"
	"github.com/forta-classifier/internal/metrics"
	"github.com/forta-classifier/internal/service"
)

func main() {
	// Optional .env file; real environment variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to read .env file: %v", err)
	}

	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	cache, err := loader.NewCache(loader.NewLoader(logger), logger, cfg.Reference.CacheSize)
	if err != nil {
		return err
	}
	reference, err := cache.Get(ctx, cfg.Reference)
	if err != nil {
		return err
	}
	m.SetReferenceWarnings(len(reference.Validate()))

	encoder, err := service.NewEncoder(cfg.Evaluation.MaxComorbidities, cfg.Evaluation.StrictSlots)
	if err != nil {
		return err
	}
	evaluator, err := service.NewEvaluator(logger, reference,
		service.WithEncoder(encoder),
		service.WithMedicationSlots(cfg.Evaluation.MedicationSlots),
		service.WithRecorder(m),
	)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
		"config_file": configManager.ConfigFileUsed(),
	}).Info("Starting FORTA classification server")

	server := api.NewServer(configManager, logger, evaluator, api.WithMetrics(m, registry))
	return server.Start(ctx)
}
