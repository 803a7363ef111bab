package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gavel-auction-service/internal/adapters/db"
	"gavel-auction-service/internal/adapters/notifier"
	"gavel-auction-service/internal/adapters/redis"
	"gavel-auction-service/internal/adapters/scheduler"
	"gavel-auction-service/internal/app"
	"gavel-auction-service/internal/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting Gavel Auction Service...")

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	log.Info().Msg("Database connection established")

	// Create repositories and collaborator adapters
	repoFactory := db.NewRepositoryFactory(dbConn)
	auctionRepo := repoFactory.GetAuctionRepository()
	depositRepo := repoFactory.GetDepositRepository()
	listings := repoFactory.GetListingProvider()
	wallet := repoFactory.GetWallet()

	log.Info().Msg("Database repositories initialized")

	// Create Redis client
	redisClient := redis.NewClient(cfg.Redis)
	if err := redis.Ping(redisClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	log.Info().Msg("Redis connection established")

	// Create notification publisher
	redisNotifier := notifier.NewRedisNotifier(notifier.RedisNotifierParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})

	// Create business services
	depositService := app.NewDepositService(app.DepositServiceParams{
		DepositRepo: depositRepo,
		AuctionRepo: auctionRepo,
		Wallet:      wallet,
		Listings:    listings,
		Notifier:    redisNotifier,
		Config:      cfg.Auction,
		Logger:      log.Logger,
	})

	auctionScheduler := scheduler.NewAuctionScheduler(scheduler.AuctionSchedulerParams{
		Store:       scheduler.NewRedisScheduleStore(redisClient),
		AuctionRepo: auctionRepo,
		Config:      cfg.Auction,
		Logger:      log.Logger,
	})

	auctionService := app.NewAuctionService(app.AuctionServiceParams{
		AuctionRepo: auctionRepo,
		DepositRepo: depositRepo,
		Listings:    listings,
		Deposits:    depositService,
		Scheduler:   auctionScheduler,
		Notifier:    redisNotifier,
		Config:      cfg.Auction,
		Logger:      log.Logger,
	})

	log.Info().Msg("Business services initialized")

	// Wire the scheduler to the lifecycle service and start it; the
	// bootstrap pass recovers any closings lost to a restart
	auctionScheduler.SetLifecycle(auctionService)
	if err := auctionScheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start auction scheduler")
	}
	log.Info().Msg("Auction scheduler started")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	log.Info().Msg("Starting graceful shutdown...")

	auctionScheduler.Stop()
	log.Info().Msg("Auction scheduler stopped")

	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing Redis client")
	}

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set log format
	if cfg.Logging.Format == "json" {
		// JSON format (default)
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Console format for development
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global logger
	zerolog.DefaultContextLogger = &log.Logger
}
