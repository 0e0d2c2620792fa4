package main

import (
	appointmenthandler "medilink/internal/appointments/handler"
	appointmentrepo "medilink/internal/appointments/repository"
	appointmentservice "medilink/internal/appointments/service"
	appointmentvalidator "medilink/internal/appointments/validator"
	availabilityhandler "medilink/internal/availability/handler"
	availabilityrepo "medilink/internal/availability/repository"
	availabilityservice "medilink/internal/availability/service"
	availabilityvalidator "medilink/internal/availability/validator"
	usersrepo "medilink/internal/users/repository"
	"medilink/pkg/app"
	"medilink/pkg/auth"
	"medilink/pkg/config"
	"medilink/pkg/contracts"
)

const ServiceName = "appointments"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Appointments service")
	handlers := initHandlers(cfg)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, auth.NewTokenService(cfg.AuthSecret, cfg.AuthIssuer), handlers, nil)
	serverApp.Run()
}

func initHandlers(cfg *config.Config) []contracts.Handler {
	availabilityRepo := availabilityrepo.NewMongoAvailabilityRepository(cfg)
	availabilityService := availabilityservice.NewAvailabilityService(
		availabilityRepo,
		availabilityvalidator.NewAvailabilityValidator(cfg.Log),
		cfg,
	)

	appointmentService := appointmentservice.NewAppointmentService(
		appointmentrepo.NewMongoAppointmentRepository(cfg),
		availabilityRepo,
		usersrepo.NewMongoUserRepository(cfg),
		appointmentvalidator.NewAppointmentValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Appointments service initialized", "database", cfg.MongoDatabaseName)
	return []contracts.Handler{
		availabilityhandler.NewAvailabilityHandler(availabilityService, cfg.Log),
		appointmenthandler.NewAppointmentHandler(appointmentService, cfg.Log),
	}
}
