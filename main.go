package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"photo-dispatch/cmd"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/internal/usecase"
	"photo-dispatch/internal/wire"
	"photo-dispatch/internal/worker"
	"photo-dispatch/pkg/database"
	"photo-dispatch/pkg/geocode"
	"photo-dispatch/pkg/mq"
	"photo-dispatch/pkg/notify"
	"photo-dispatch/pkg/payment"
	"photo-dispatch/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.Name, config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.String("dispatch_mode", config.Dispatch.Mode),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	repos := repository.NewRepository(db, logger)

	var background sync.WaitGroup
	hub := notify.NewHub(config.Notification.Buffer)
	deps := usecase.Deps{
		Channel: hub,
		Counter: notify.NewMemoryCounter(),
	}

	// Redis carries notifications across instances; without it they stay local.
	if config.Redis.Addr != "" {
		client, err := database.InitRedis(config.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer client.Close()

		bridge := notify.NewRedisBridge(client, hub, logger)
		deps.Channel = bridge
		deps.Counter = notify.NewRedisCounter(client)

		background.Add(1)
		go func() {
			defer background.Done()
			if err := bridge.Run(ctx); err != nil {
				logger.Error("Notification bridge stopped", zap.Error(err))
			}
		}()
		logger.Info("Redis connected successfully")
	} else {
		logger.Warn("REDIS_ADDR not set, notifications are local to this instance")
	}

	if config.AMQP.URL != "" {
		publisher, err := mq.NewPublisher(config.AMQP.URL, config.AMQP.Exchange)
		if err != nil {
			logger.Fatal("Failed to connect to rabbitmq", zap.Error(err))
		}
		defer publisher.Close()

		deps.Events = publisher
		logger.Info("RabbitMQ connected successfully", zap.String("exchange", config.AMQP.Exchange))
	}

	if config.Payment.SecretKey != "" {
		processor, err := payment.NewOmiseProcessor(config.Payment.PublicKey, config.Payment.SecretKey, config.Payment.Currency)
		if err != nil {
			logger.Fatal("Failed to init payment processor", zap.Error(err))
		}
		deps.Processor = processor
	} else {
		logger.Warn("OMISE_SECRET_KEY not set, using in-memory payments")
		deps.Processor = payment.NewMemoryProcessor()
	}

	if config.Geocode.URL != "" {
		deps.Geocoder = geocode.NewClient(config.Geocode.URL, config.Geocode.Timeout)
	}

	// Wire all dependencies
	app := wire.Wiring(repos, config, deps, logger)

	resumed, err := app.Service.Matching.Resume(ctx)
	if err != nil {
		logger.Error("Failed to resume dispatch", zap.Error(err))
	} else if resumed > 0 {
		logger.Info("Resumed dispatch for pending requests", zap.Int("count", resumed))
	}

	expiry := worker.NewExpiryWorker(app.Service.Request, config.App.SweepInterval, 100, logger)
	background.Add(1)
	go func() {
		defer background.Done()
		expiry.Start(ctx)
	}()

	// Start server
	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	if err := cmd.APIServer(ctx, app.Router, config.App.Port, logger, hub.Close); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}

	stop()
	app.Service.Matching.Shutdown()
	background.Wait()
	logger.Info("Application stopped")
}
