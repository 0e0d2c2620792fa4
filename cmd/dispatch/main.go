package main

import (
	"context"
	"errors"

	"medilink/internal/dispatch/bus"
	"medilink/internal/dispatch/handler"
	"medilink/internal/dispatch/registry"
	"medilink/internal/dispatch/repository"
	"medilink/internal/dispatch/service"
	"medilink/internal/dispatch/validator"
	usersrepo "medilink/internal/users/repository"
	"medilink/pkg/app"
	"medilink/pkg/auth"
	"medilink/pkg/config"
	"medilink/pkg/contracts"
	"medilink/pkg/kafka"
	kafka_config "medilink/pkg/kafka/config"
	kafka_middleware "medilink/pkg/kafka/middleware"
)

const ServiceName = "dispatch"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Dispatch service", "instance_id", cfg.InstanceID)

	serverApp := app.NewApplication()
	tokens := auth.NewTokenService(cfg.AuthSecret, cfg.AuthIssuer)
	reg := registry.New(cfg.Log)
	notifier := initNotifier(cfg, reg, serverApp)

	dispatchService := service.NewDispatchService(
		repository.NewMongoEmergencyRepository(cfg),
		usersrepo.NewMongoUserRepository(cfg),
		initPresence(cfg),
		notifier,
		validator.NewEmergencyValidator(cfg.Log),
		cfg,
	)
	serverApp.AddWorker("pending-sweeper", dispatchService.RunSweeper)

	cfg.Log.Info("Dispatch service initialized", "database", cfg.MongoDatabaseName)
	serverApp.SetApp(cfg, tokens,
		[]contracts.Handler{handler.NewEmergencyHandler(dispatchService, cfg.Log)},
		[]contracts.Handler{handler.NewSocketHandler(dispatchService, reg, tokens, cfg)},
	)
	serverApp.Run()
}

func initPresence(cfg *config.Config) registry.PresenceStore {
	if cfg.Client.Redis == nil {
		return registry.NewLocalPresence()
	}
	cfg.Log.Info("Driver presence backed by Redis")
	return registry.NewRedisPresence(cfg.Client.Redis, cfg.InstanceID, 2*cfg.WSPongTimeout, cfg.ReadTimeout, cfg.Log)
}

// initNotifier fans out in-process only, unless the Kafka bus is enabled, in
// which case every instance also relays events published by its peers.
func initNotifier(cfg *config.Config, reg *registry.Registry, serverApp *app.Application) service.Notifier {
	local := bus.NewLocalNotifier(reg, cfg.Log)
	if !cfg.DispatchBusEnabled {
		cfg.Log.Info("Dispatch bus disabled, fan-out is local to this instance")
		return local
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Failed to load Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.DispatchTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create dispatch bus producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	serverApp.AddCloser("dispatch-bus-producer", producer.Close)

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.DispatchTopic,
		bus.GroupID(cfg.DispatchGroupPrefix, cfg.InstanceID),
		bus.Handler(local, cfg.InstanceID),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create dispatch bus consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	serverApp.AddCloser("dispatch-bus-consumer", consumer.Close)
	serverApp.AddWorker("dispatch-bus-consumer", func(ctx context.Context) {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			cfg.Log.Error("Dispatch bus consumer stopped", "error", err)
		}
	})

	cfg.Log.Info("Dispatch bus enabled", "topic", cfg.DispatchTopic)
	return bus.NewKafkaNotifier(local, producer, cfg.InstanceID, cfg.Log)
}
