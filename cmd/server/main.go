package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fpfinfo/sosfu/internal/application/dispatcher"
	"github.com/fpfinfo/sosfu/internal/application/engine"
	"github.com/fpfinfo/sosfu/internal/application/messaging"
	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/application/service"
	"github.com/fpfinfo/sosfu/internal/application/validation"
	"github.com/fpfinfo/sosfu/internal/config"
	"github.com/fpfinfo/sosfu/internal/domain/event"
	"github.com/fpfinfo/sosfu/internal/infrastructure/external/openai"
	"github.com/fpfinfo/sosfu/internal/infrastructure/identity"
	"github.com/fpfinfo/sosfu/internal/infrastructure/notify"
	"github.com/fpfinfo/sosfu/internal/infrastructure/persistence/repository"
	"github.com/fpfinfo/sosfu/internal/infrastructure/persistence/sqlite"
	"github.com/fpfinfo/sosfu/internal/infrastructure/scheduler"
	"github.com/fpfinfo/sosfu/internal/infrastructure/storage"
	httpserver "github.com/fpfinfo/sosfu/internal/interfaces/http"
	"github.com/fpfinfo/sosfu/pkg/database"
	"github.com/fpfinfo/sosfu/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting fund-advance workflow portal",
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Storage.AttachmentDir, 0755); err != nil {
		logger.Fatal("Failed to create attachment directory", zap.Error(err))
	}

	// Persistence
	txManager := sqlite.NewDB(db.DB, logger)
	requestRepo := repository.NewRequestRepository(db.DB, logger)
	reimbRepo := repository.NewReimbursementRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)
	messageRepo := repository.NewMessageRepository(db.DB, logger)

	// Collaborators
	clock := utils.SystemClock{}
	identityProvider := identity.NewProvider(db.DB, logger)
	attachmentStore := storage.NewLocalAttachmentStore(cfg.Storage.AttachmentDir, logger)
	sink := notify.NewLogSink(logger)

	var extractor port.ExtractionProvider
	if cfg.Extraction.Enabled {
		extractor = openai.NewExtractor(cfg.Extraction.APIKey, cfg.Extraction.Model, logger)
	} else {
		extractor = disabledExtractor{}
	}

	// Application layer
	disp := dispatcher.New(logger)
	eng := engine.New(requestRepo, reimbRepo, historyRepo, txManager,
		identityProvider, clock, disp, logger)
	requestService := service.NewRequestService(requestRepo, eng, txManager, clock, disp, logger)
	reimbService := service.NewReimbursementService(reimbRepo, eng, clock, logger)
	validator := validation.New(extractor, attachmentStore, cfg.Validation.ItemTimeout, logger)
	messagingService := messaging.New(messageRepo, identityProvider, eng, clock, disp, logger)

	// Side effects
	disp.Subscribe(event.TypeStatusChanged, "notification-sink",
		notify.StatusChangedHandler(sink, clock))
	disp.Subscribe(event.TypeReportCorrected, "validation-cache",
		func(ctx context.Context, evt *event.Event) error {
			validator.Forget(evt.EntityID)
			return nil
		})

	// Scheduler
	workers := scheduler.NewWorkerManager(logger)
	workers.Register(scheduler.NewDeadlineWorker(scheduler.DeadlineWorkerConfig{
		PollInterval: cfg.Scheduler.PollInterval,
		ReportGrace:  cfg.Scheduler.ReportGrace,
	}, requestRepo, eng, clock, logger))
	if err := workers.StartAll(context.Background()); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	// HTTP
	handlers := httpserver.NewHandlers(requestService, reimbService, eng, validator, messagingService, attachmentStore, logger)
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	if err := workers.StopAll(); err != nil {
		logger.Error("Worker shutdown failed", zap.Error(err))
	}
	if err := disp.Close(); err != nil {
		logger.Error("Dispatcher shutdown failed", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

// disabledExtractor is used when the vision provider is switched off;
// validation degrades to error results instead of calling out.
type disabledExtractor struct{}

func (disabledExtractor) ExtractReceipt(ctx context.Context, data []byte, mimeType string) (*port.ReceiptExtraction, error) {
	return nil, fmt.Errorf("receipt extraction is disabled")
}
