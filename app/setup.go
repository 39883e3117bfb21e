package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/placementpulse/api/api"
	"github.com/placementpulse/api/config"
	"github.com/placementpulse/api/database"
	"github.com/placementpulse/api/router"
	"github.com/placementpulse/api/services/cron"
	"github.com/placementpulse/api/services/events"
	"github.com/placementpulse/api/services/receipts"
	"github.com/placementpulse/api/utils"
	"github.com/placementpulse/api/utils/cache"
	"github.com/placementpulse/api/utils/metrics"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	logger := utils.NewLogger(getEnv.LOKI_URL, getEnv.GO_ENV)
	metrics.Setup(getEnv.METRICS_PUSH_URL, getEnv.METRICS_PUSH_INTERVAL, `service="placement-pulse-api"`)

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		print("If not running, run the following command:\n")
		print("  make docker-up   (for Docker setup)\n")
		print("  make db-up       (for local PostgreSQL)\n")
		return err
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		print("Error running migrations:\n")
		return err
	}

	deps := router.Dependencies{
		Store:     store,
		Env:       getEnv,
		Logger:    logger,
		Publisher: events.NewKafkaPublisher(getEnv.KAFKA_BROKERS, getEnv.KAFKA_ENROLLMENT_TOPIC),
	}
	defer deps.Publisher.Close()

	// Redis is optional; the features it backs degrade without it
	redisCache, err := cache.NewRedisCache(getEnv.REDIS_URL)
	if err != nil {
		logger.Warn("Failed to connect to Redis", "error", err)
	} else {
		deps.Cache = redisCache
		defer redisCache.Close()
	}

	receiptConfig := receipts.Config{
		AccessKey: getEnv.RECEIPTS_ACCESS_KEY,
		SecretKey: getEnv.RECEIPTS_SECRET_KEY,
		Bucket:    getEnv.RECEIPTS_BUCKET,
		Region:    getEnv.RECEIPTS_REGION,
		Endpoint:  getEnv.RECEIPTS_ENDPOINT,
	}
	if receiptConfig.Enabled() {
		archiver, err := receipts.NewSpacesArchiver(receiptConfig)
		if err != nil {
			logger.Warn("Receipt archive disabled", "error", err)
		} else {
			deps.Receipts = archiver
		}
	}

	// Initialize Cron Manager (only if enabled via environment variable)
	if getEnv.CRON_ENABLED {
		cronManager := cron.NewCronManager(store, logger)
		if err := cronManager.Start(); err != nil {
			// Don't fail the app, just log the warning
			logger.Warn("Failed to start cron jobs", "error", err)
		} else {
			defer cronManager.Stop()
		}
	}

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT), logger)

	// Setup Routes
	if err := router.SetupRoutes(server.GetEngine(), deps); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx)
}
