package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/apisentinel/apisentinel/internal/alert"
	"github.com/apisentinel/apisentinel/internal/api/handlers"
	"github.com/apisentinel/apisentinel/internal/api/router"
	"github.com/apisentinel/apisentinel/internal/config"
	"github.com/apisentinel/apisentinel/internal/detector"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
	"github.com/apisentinel/apisentinel/internal/pkg/validator"
	"github.com/apisentinel/apisentinel/internal/repository/postgres"
	"github.com/apisentinel/apisentinel/internal/services"
	"github.com/apisentinel/apisentinel/internal/worker"
	"github.com/apisentinel/apisentinel/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	db, err := postgres.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database: " + err.Error())
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, migrations.GetFS()); err != nil {
		log.Fatal("Failed to run migrations: " + err.Error())
	}

	// Repositories
	projectRepo := postgres.NewProjectRepository(db)
	eventStore := postgres.NewEventStore(db)
	anomalyRepo := postgres.NewAnomalyRepository(db)
	channelRepo := postgres.NewChannelRepository(db)
	deliveryRepo := postgres.NewDeliveryRepository(db)

	// Services
	projectService := services.NewProjectService(projectRepo, eventStore, log)
	channelService := services.NewChannelService(channelRepo, log)
	anomalyService := services.NewAnomalyService(anomalyRepo, deliveryRepo, log)

	// Detection and alerting
	engine := detector.New(eventStore, anomalyRepo, cfg.Detection, log)

	emailSender, err := alert.NewEmailSender(cfg.Alert, nil)
	if err != nil {
		log.Fatal("Failed to configure email sender: " + err.Error())
	}
	dispatcher := alert.NewDispatcher(anomalyRepo, projectRepo, channelRepo, deliveryRepo,
		emailSender, cfg.Alert.DeliveryTimeout, log)

	sweeper := worker.NewSweeper(projectRepo, anomalyRepo, engine, dispatcher, cfg.Worker, log)

	// HTTP surface
	val := validator.New()
	h := &router.Handlers{
		Health:  handlers.NewHealthHandler(db, log),
		Ingest:  handlers.NewIngestHandler(projectService, log, val),
		Project: handlers.NewProjectHandler(projectService, log, val),
		Channel: handlers.NewChannelHandler(channelService, log, val),
		Anomaly: handlers.NewAnomalyHandler(anomalyService, log),
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.New(cfg, log, projectService, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := sweeper.Start(ctx); err != nil {
			log.ErrorWithErr(err, "Sweeper stopped")
			stop()
		}
	}()

	go func() {
		log.WithFields(map[string]interface{}{
			"addr": srv.Addr,
			"env":  cfg.Server.Environment,
		}).Info("Starting HTTP server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.ErrorWithErr(err, "HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithErr(err, "Server shutdown failed")
	}
}
