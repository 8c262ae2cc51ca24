package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"bus-booking/cmd"
	"bus-booking/internal/data/repository"
	"bus-booking/internal/queue"
	"bus-booking/internal/wire"
	"bus-booking/pkg/cache"
	"bus-booking/pkg/database"
	"bus-booking/pkg/notify"
	"bus-booking/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using production defaults.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected successfully")

	if config.Database.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
		logger.Info("Schema applied")
	}

	repos := repository.NewRepository(db, logger)

	rdb := cache.NewRedisClient(config.Redis, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	var publisher notify.Publisher = notify.Nop{}
	if config.Broker.Enabled {
		publisher = notify.NewAMQPPublisher(config.Broker.URL, config.Broker.Queue, logger)
		if config.Broker.Consume {
			consumer := queue.NewConsumer(config.Broker.URL, config.Broker.Queue, queue.LogHandler(logger), logger)
			go consumer.Run(ctx)
		}
	}
	defer publisher.Close()

	app := wire.Wiring(wire.Deps{
		Repo:      repos,
		Redis:     rdb,
		Publisher: publisher,
		Config:    config,
		Logger:    logger,
	})

	go app.Expiry.Run(ctx)

	if err := cmd.APIServer(ctx, app.Router, config.App.Port, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}
	logger.Info("Application stopped")
}
