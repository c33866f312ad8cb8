package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/leadgrid/pipeline/internal/client"
	"github.com/leadgrid/pipeline/internal/config"
	"github.com/leadgrid/pipeline/internal/processor/emailval"
	"github.com/leadgrid/pipeline/internal/queue"
	"github.com/leadgrid/pipeline/internal/queue/postgres"
	"github.com/leadgrid/pipeline/internal/queue/remote"
	"github.com/leadgrid/pipeline/internal/worker"
	"github.com/leadgrid/pipeline/shared/logger"
	"github.com/leadgrid/pipeline/shared/postgresql"
	"github.com/leadgrid/pipeline/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	workerID := workerIdentity()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("worker_id", workerID),
		slog.String("store_mode", cfg.Worker.StoreMode),
	)

	// Job store: straight to the database, or through the API's worker
	// endpoints when this process runs without database credentials.
	var store queue.WorkerStore
	var dbClient *postgresql.Client
	if cfg.Worker.StoreMode == config.StoreModeDirect {
		dbClient, err = initPostgreSQL(&cfg.Database, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		store = postgres.NewStore(dbClient, appLogger.Logger)
		appLogger.Info("Database connection established")
	} else {
		store = remote.NewStore(cfg.Worker.APIBaseURL, cfg.SharedSecret)
		appLogger.Info("Using remote job store",
			slog.String("api_base_url", cfg.Worker.APIBaseURL),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional broker: a job-created nudge wakes the worker early, polling
	// remains the source of truth.
	var rabbitClient *rabbitmq.Client
	var nudge <-chan struct{}
	if cfg.RabbitMQ.Enabled() {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		deliveries, err := rabbitClient.Consume(workerID)
		if err != nil {
			return fmt.Errorf("failed to start consuming nudges: %w", err)
		}
		nudge = worker.NudgeFromDeliveries(ctx, appLogger.Logger, deliveries)
		appLogger.Info("RabbitMQ nudge channel established")
	}

	registry := buildRegistry(appLogger.Logger)

	types := make([]queue.JobType, 0, len(cfg.Worker.JobTypes))
	for _, jt := range cfg.Worker.JobTypes {
		types = append(types, queue.JobType(jt))
	}
	if len(types) == 0 {
		types = registry.Types()
	}

	w := worker.New(&worker.Config{
		Logger:       appLogger.Logger,
		Store:        store,
		Registry:     registry,
		WorkerID:     workerID,
		PollInterval: cfg.Worker.PollInterval,
		Types:        types,
		Nudge:        nudge,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Run(ctx)
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		if err != nil {
			appLogger.Error("Worker error",
				slog.Any("error", err),
			)
			return err
		}
	}

	cancel()

	shutdownTimeout := cfg.Worker.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	select {
	case <-errChan:
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(shutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// buildRegistry registers a processor per job type this build supports.
func buildRegistry(logger *slog.Logger) *worker.Registry {
	registry := worker.NewRegistry()

	leadStoreURL := os.Getenv("LEAD_STORE_URL")
	var leads emailval.LeadUpdater
	if leadStoreURL != "" {
		leads = client.NewLeads(client.LeadsConfig{
			BaseURL:     leadStoreURL,
			Secret:      os.Getenv("LEAD_STORE_SECRET"),
			MaxRequests: 10,
			Window:      time.Second,
		}, logger)
	} else {
		leads = client.NoopLeads{Logger: logger}
	}

	validator := emailval.NewValidator()
	emailProcessor := emailval.NewProcessor(validator, leads, logger)
	registry.Register(queue.TypeValidateEmail, emailProcessor.Process)

	return registry
}

// workerIdentity builds a unique id for this process, stable enough to spot
// in logs and job rows.
func workerIdentity() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
