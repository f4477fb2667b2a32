package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/facturacion/backend/internal/application/billing"
	inventoryapp "github.com/facturacion/backend/internal/application/inventory"
	"github.com/facturacion/backend/internal/domain/billing"
	"github.com/facturacion/backend/internal/infrastructure/authority"
	"github.com/facturacion/backend/internal/infrastructure/config"
	"github.com/facturacion/backend/internal/infrastructure/logger"
	"github.com/facturacion/backend/internal/infrastructure/notification"
	"github.com/facturacion/backend/internal/infrastructure/persistence"
	"github.com/facturacion/backend/internal/infrastructure/signing"
	"github.com/facturacion/backend/internal/infrastructure/taxdoc"
	"github.com/facturacion/backend/internal/infrastructure/telemetry"
	"github.com/facturacion/backend/internal/interfaces/http/handler"
	"github.com/facturacion/backend/internal/interfaces/http/middleware"
	"github.com/facturacion/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Facturacion Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	// Database connection with a GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Repositories
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	allocationScope := persistence.NewGormTransactionScope(db.DB)

	// Document signing. Without a certificate the server still runs, but
	// authorization stops at the signing step.
	var documentSigner billingapp.DocumentSigner
	if cfg.Signing.CertificatePath != "" {
		cert, err := signing.LoadCertificate(cfg.Signing.CertificatePath, cfg.Signing.Passphrase)
		if err != nil {
			log.Fatal("Failed to load signing certificate", zap.Error(err))
		}
		signer, err := signing.NewSigner(cert)
		if err != nil {
			log.Fatal("Failed to initialize signer", zap.Error(err))
		}
		worker := signing.NewWorker(signer, cfg.Signing.QueueSize, log)
		defer worker.Close()
		documentSigner = worker
		log.Info("Signing worker started", zap.Int("queue_size", cfg.Signing.QueueSize))
	} else {
		documentSigner = signing.Disabled{}
		log.Warn("No signing certificate configured, document signing is disabled")
	}

	// Tax authority SOAP client
	authorityClient := authority.NewClient(cfg.Authority, log)

	// Post-authorization notifications
	var notifier billing.NotificationSender
	if cfg.Notification.Enabled {
		kafkaSender := notification.NewKafkaSender(cfg.Notification, log)
		defer func() {
			if err := kafkaSender.Close(); err != nil {
				log.Error("Error closing notification sender", zap.Error(err))
			}
		}()
		notifier = kafkaSender
		log.Info("Kafka notifications enabled",
			zap.Strings("brokers", cfg.Notification.Brokers),
			zap.String("topic", cfg.Notification.Topic),
		)
	} else {
		notifier = notification.NewNoopSender(log)
	}

	// Application services
	serializer := taxdoc.NewSerializer(taxdoc.Issuer{
		BusinessName: cfg.Issuer.BusinessName,
		TradeName:    cfg.Issuer.TradeName,
		TaxID:        cfg.Issuer.TaxID,
		Address:      cfg.Issuer.Address,
		Environment:  cfg.Issuer.Environment,
		EmissionType: cfg.Issuer.EmissionType,
	})
	allocationService := inventoryapp.NewAllocationService(allocationScope, log)
	invoiceService := billingapp.NewInvoiceService(invoiceRepo, allocationService, cfg.Issuer, log)
	authorizationService := billingapp.NewAuthorizationService(
		invoiceRepo, serializer, documentSigner, authorityClient, notifier,
		cfg.Issuer, cfg.Authority, log,
	)

	// HTTP handlers
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, authorizationService)
	inventoryHandler := handler.NewInventoryHandler(allocationService)
	systemHandler := handler.NewSystemHandler(db)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.CORS())

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(invoiceHandler).
		Register(inventoryHandler).
		Register(systemHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Pick up invoices whose authorization was interrupted by a previous
	// shutdown or crash.
	resumeCtx, cancelResume := context.WithCancel(context.Background())
	go func() {
		if err := authorizationService.Resume(resumeCtx); err != nil {
			log.Warn("Authorization resume finished with errors", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")
	cancelResume()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
