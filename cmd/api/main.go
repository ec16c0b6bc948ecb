package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veloraops/agency-api/internal/auth"
	"github.com/veloraops/agency-api/internal/config"
	"github.com/veloraops/agency-api/internal/database"
	"github.com/veloraops/agency-api/internal/http/handler"
	"github.com/veloraops/agency-api/internal/http/middleware"
	"github.com/veloraops/agency-api/internal/http/router"
	"github.com/veloraops/agency-api/internal/jobs"
	"github.com/veloraops/agency-api/internal/logger"
	"github.com/veloraops/agency-api/internal/mail"
	"github.com/veloraops/agency-api/internal/payment"
	"github.com/veloraops/agency-api/internal/pdf"
	"github.com/veloraops/agency-api/internal/repository"
	"github.com/veloraops/agency-api/internal/service"
	"github.com/veloraops/agency-api/internal/storage"
	"go.uber.org/zap"
)

// billingSweepCron runs the billing sweep at minute 10 of every hour.
// Renewals key off the stored billing anchor, so a missed hour catches up
// on the next run.
const billingSweepCron = "10 * * * *"

const billingSweepTimeout = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Environment),
		zap.Int("port", cfg.App.Port),
	)

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	mailer := mail.NewMailer(&cfg.Mail, log)
	renderer := pdf.NewRenderer(cfg.App.Name)
	stripeClient := payment.NewStripeClient(&cfg.Stripe, log)
	tokens := auth.NewTokenManager(&cfg.Auth)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	clientRepo := repository.NewClientRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	fileRepo := repository.NewFileRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	numberSequenceRepo := repository.NewNumberSequenceRepository(db)

	// Services
	activityService := service.NewActivityService(activityRepo, log)
	numberSequenceService := service.NewNumberSequenceService(numberSequenceRepo, log)
	authService := service.NewAuthService(userRepo, tokens, log)
	clientService := service.NewClientService(clientRepo, activityService, log)
	catalogService := service.NewCatalogService(catalogRepo, log)
	quoteService := service.NewQuoteService(quoteRepo, invoiceRepo, clientRepo, catalogRepo, fileRepo, catalogService, numberSequenceService, activityService, renderer, &cfg.Billing, log)
	invoiceService := service.NewInvoiceService(invoiceRepo, clientRepo, catalogRepo, catalogService, numberSequenceService, activityService, renderer, mailer, &cfg.Billing, log)
	settlementService := service.NewSettlementService(paymentRepo, activityService, mailer, log)
	paymentService := service.NewPaymentService(paymentRepo, invoiceRepo, stripeClient, activityService, settlementService, renderer, log)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, clientRepo, catalogRepo, invoiceRepo, numberSequenceService, activityService, &cfg.Billing, log)
	projectService := service.NewProjectService(projectRepo, clientRepo, activityService, log)
	ticketService := service.NewTicketService(ticketRepo, clientRepo, activityService, log)
	commentService := service.NewCommentService(commentRepo, log)
	fileService := service.NewFileService(fileRepo, quoteService, activityService, fileStorage, log)
	dashboardService := service.NewDashboardService(clientRepo, quoteRepo, invoiceRepo, paymentRepo, subscriptionRepo, ticketRepo, log)
	importService := service.NewImportService(clientRepo, invoiceRepo, activityService, mailer, &cfg.Billing, log)

	// Middleware
	authMiddleware := auth.NewMiddleware(tokens, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, log)
	clientHandler := handler.NewClientHandler(clientService, log)
	catalogHandler := handler.NewCatalogHandler(catalogService, log)
	quoteHandler := handler.NewQuoteHandler(quoteService, log)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, paymentService, log)
	paymentHandler := handler.NewPaymentHandler(paymentService, log)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, log)
	projectHandler := handler.NewProjectHandler(projectService, log)
	ticketHandler := handler.NewTicketHandler(ticketService, log)
	commentHandler := handler.NewCommentHandler(commentService, log)
	fileHandler := handler.NewFileHandler(fileService, cfg.Storage.MaxUploadSizeMB, log)
	activityHandler := handler.NewActivityHandler(activityService, log)
	dashboardHandler := handler.NewDashboardHandler(dashboardService, log)
	importHandler := handler.NewImportHandler(importService, log)
	webhookHandler := handler.NewWebhookHandler(settlementService, &cfg.Stripe, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		authMiddleware,
		rateLimiter,
		authHandler,
		clientHandler,
		catalogHandler,
		quoteHandler,
		invoiceHandler,
		paymentHandler,
		subscriptionHandler,
		projectHandler,
		ticketHandler,
		commentHandler,
		fileHandler,
		activityHandler,
		dashboardHandler,
		importHandler,
		webhookHandler,
	)

	// Background billing sweeps
	scheduler := jobs.NewScheduler(log)
	billingJob := jobs.NewBillingJob(subscriptionService, invoiceService, log, billingSweepTimeout)
	if err := scheduler.AddJob(jobs.BillingJobName, billingSweepCron, billingJob.Run); err != nil {
		log.Error("Failed to register billing job", zap.Error(err))
	} else {
		scheduler.Start()
		log.Info("Scheduler started with billing job",
			zap.String("cron_expr", billingSweepCron),
			zap.Duration("timeout", billingSweepTimeout),
		)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		schedCtx := scheduler.Stop()
		<-schedCtx.Done()
		log.Info("Scheduler stopped")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
