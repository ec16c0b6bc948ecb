package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/veloraops/agency-api/internal/auth"
	"github.com/veloraops/agency-api/internal/config"
	"github.com/veloraops/agency-api/internal/database"
	"github.com/veloraops/agency-api/internal/http/handler"
	"github.com/veloraops/agency-api/internal/http/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Router struct {
	cfg                 *config.Config
	logger              *zap.Logger
	db                  *gorm.DB
	authMiddleware      *auth.Middleware
	rateLimiter         *middleware.RateLimiter
	authHandler         *handler.AuthHandler
	clientHandler       *handler.ClientHandler
	catalogHandler      *handler.CatalogHandler
	quoteHandler        *handler.QuoteHandler
	invoiceHandler      *handler.InvoiceHandler
	paymentHandler      *handler.PaymentHandler
	subscriptionHandler *handler.SubscriptionHandler
	projectHandler      *handler.ProjectHandler
	ticketHandler       *handler.TicketHandler
	commentHandler      *handler.CommentHandler
	fileHandler         *handler.FileHandler
	activityHandler     *handler.ActivityHandler
	dashboardHandler    *handler.DashboardHandler
	importHandler       *handler.ImportHandler
	webhookHandler      *handler.WebhookHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	authHandler *handler.AuthHandler,
	clientHandler *handler.ClientHandler,
	catalogHandler *handler.CatalogHandler,
	quoteHandler *handler.QuoteHandler,
	invoiceHandler *handler.InvoiceHandler,
	paymentHandler *handler.PaymentHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	projectHandler *handler.ProjectHandler,
	ticketHandler *handler.TicketHandler,
	commentHandler *handler.CommentHandler,
	fileHandler *handler.FileHandler,
	activityHandler *handler.ActivityHandler,
	dashboardHandler *handler.DashboardHandler,
	importHandler *handler.ImportHandler,
	webhookHandler *handler.WebhookHandler,
) *Router {
	return &Router{
		cfg:                 cfg,
		logger:              logger,
		db:                  db,
		authMiddleware:      authMiddleware,
		rateLimiter:         rateLimiter,
		authHandler:         authHandler,
		clientHandler:       clientHandler,
		catalogHandler:      catalogHandler,
		quoteHandler:        quoteHandler,
		invoiceHandler:      invoiceHandler,
		paymentHandler:      paymentHandler,
		subscriptionHandler: subscriptionHandler,
		projectHandler:      projectHandler,
		ticketHandler:       ticketHandler,
		commentHandler:      commentHandler,
		fileHandler:         fileHandler,
		activityHandler:     activityHandler,
		dashboardHandler:    dashboardHandler,
		importHandler:       importHandler,
		webhookHandler:      webhookHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Database health check (readiness probe with detailed stats)
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.HealthCheckWithStats(r.Context(), rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats": map[string]interface{}{
				"max_open_connections": stats.MaxOpenConnections,
				"open_connections":     stats.OpenConnections,
				"in_use":               stats.InUse,
				"idle":                 stats.Idle,
				"wait_count":           stats.WaitCount,
				"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
				"max_idle_closed":      stats.MaxIdleClosed,
				"max_lifetime_closed":  stats.MaxLifetimeClosed,
			},
		})
	})

	// Combined readiness check (checks all dependencies)
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})
		allHealthy := true

		if err := database.HealthCheck(r.Context(), rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if allHealthy {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "healthy",
				"checks": checks,
			})
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unhealthy",
				"checks": checks,
			})
		}
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Post("/auth/login", rt.authHandler.Login)
		r.Post("/auth/register", rt.authHandler.Register)

		// Stripe authenticates with its own signature header, so the
		// webhook stays outside the token-authenticated group.
		r.Post("/webhooks/stripe", rt.webhookHandler.HandleStripe)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)

			// Auth
			r.Get("/auth/me", rt.authHandler.Me)

			// Clients
			r.Route("/clients", func(r chi.Router) {
				r.Get("/", rt.clientHandler.List)
				r.Post("/", rt.clientHandler.Create)
				r.Get("/{id}", rt.clientHandler.GetByID)
				r.Put("/{id}", rt.clientHandler.Update)
				r.With(rt.authMiddleware.RequireAdmin).Delete("/{id}", rt.clientHandler.Delete)
			})

			// Catalog: services, offers, packs and plans
			r.Route("/services", func(r chi.Router) {
				r.Get("/", rt.catalogHandler.ListServices)
				r.Get("/{id}", rt.catalogHandler.GetService)
				r.Group(func(r chi.Router) {
					r.Use(rt.authMiddleware.RequireStaff)
					r.Post("/", rt.catalogHandler.CreateService)
					r.Put("/{id}", rt.catalogHandler.UpdateService)
					r.Delete("/{id}", rt.catalogHandler.DeleteService)
				})
			})
			r.Route("/offers", func(r chi.Router) {
				r.Get("/", rt.catalogHandler.ListOffers)
				r.Group(func(r chi.Router) {
					r.Use(rt.authMiddleware.RequireStaff)
					r.Post("/", rt.catalogHandler.CreateOffer)
					r.Delete("/{id}", rt.catalogHandler.DeleteOffer)
				})
			})
			r.Route("/packs", func(r chi.Router) {
				r.Get("/", rt.catalogHandler.ListPacks)
				r.Get("/{id}", rt.catalogHandler.GetPack)
				r.Group(func(r chi.Router) {
					r.Use(rt.authMiddleware.RequireStaff)
					r.Post("/", rt.catalogHandler.CreatePack)
					r.Delete("/{id}", rt.catalogHandler.DeletePack)
				})
			})
			r.Route("/plans", func(r chi.Router) {
				r.Get("/", rt.catalogHandler.ListPlans)
				r.Get("/{id}", rt.catalogHandler.GetPlan)
				r.Group(func(r chi.Router) {
					r.Use(rt.authMiddleware.RequireStaff)
					r.Post("/", rt.catalogHandler.CreatePlan)
					r.Delete("/{id}", rt.catalogHandler.DeletePlan)
				})
			})

			// Quotes
			r.Route("/quotes", func(r chi.Router) {
				r.Get("/", rt.quoteHandler.List)
				r.Post("/", rt.quoteHandler.Create)
				r.Get("/{id}", rt.quoteHandler.GetByID)
				r.Put("/{id}", rt.quoteHandler.Update)
				r.Get("/{id}/pdf", rt.quoteHandler.DownloadPDF)

				// Lifecycle endpoints
				r.Post("/{id}/send", rt.quoteHandler.Send)
				r.Post("/{id}/confirm", rt.quoteHandler.Confirm)
				r.Post("/{id}/reject", rt.quoteHandler.Reject)
				r.With(rt.authMiddleware.RequireStaff).Post("/{id}/convert", rt.quoteHandler.Convert)
			})

			// Invoices
			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", rt.invoiceHandler.List)
				r.With(rt.authMiddleware.RequireStaff).Post("/", rt.invoiceHandler.Create)
				r.Get("/{id}", rt.invoiceHandler.GetByID)
				r.Get("/{id}/pdf", rt.invoiceHandler.DownloadPDF)
				r.With(rt.authMiddleware.RequireStaff).Post("/{id}/send", rt.invoiceHandler.Send)
				r.Post("/{id}/payments", rt.invoiceHandler.CreatePaymentLink)
			})

			// Payments
			r.Route("/payments", func(r chi.Router) {
				r.Get("/", rt.paymentHandler.List)
				r.Get("/{id}", rt.paymentHandler.GetByID)
				r.Put("/{id}", rt.paymentHandler.Update)
				r.Get("/{id}/receipt", rt.paymentHandler.DownloadReceipt)
				r.With(rt.authMiddleware.RequireStaff).Post("/{id}/settle", rt.paymentHandler.Settle)
				r.With(rt.authMiddleware.RequireAdmin).Post("/{id}/refund", rt.paymentHandler.Refund)
			})

			// Subscriptions
			r.Route("/subscriptions", func(r chi.Router) {
				r.Get("/", rt.subscriptionHandler.List)
				r.Post("/", rt.subscriptionHandler.Create)
				r.Get("/{id}", rt.subscriptionHandler.GetByID)
				r.Post("/{id}/cancel", rt.subscriptionHandler.Cancel)
				r.Post("/{id}/change-plan", rt.subscriptionHandler.ChangePlan)
				r.Put("/{id}/fields", rt.subscriptionHandler.SetFieldValue)
			})

			// Projects and tasks
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", rt.projectHandler.List)
				r.With(rt.authMiddleware.RequireStaff).Post("/", rt.projectHandler.Create)
				r.Get("/{id}", rt.projectHandler.GetByID)
				r.Group(func(r chi.Router) {
					r.Use(rt.authMiddleware.RequireStaff)
					r.Put("/{id}/status", rt.projectHandler.UpdateStatus)
					r.Post("/{id}/tasks", rt.projectHandler.AddTask)
					r.Delete("/{id}/tasks/{taskID}", rt.projectHandler.RemoveTask)
					r.Put("/{id}/tasks/{taskID}/status", rt.projectHandler.UpdateTaskStatus)
				})
			})

			// Tickets
			r.Route("/tickets", func(r chi.Router) {
				r.Get("/", rt.ticketHandler.List)
				r.Post("/", rt.ticketHandler.Create)
				r.Get("/{id}", rt.ticketHandler.GetByID)
				r.Put("/{id}/status", rt.ticketHandler.UpdateStatus)
			})

			// Polymorphic sub-resources keyed by owner
			r.Route("/{ownerKind}/{ownerID}", func(r chi.Router) {
				r.Get("/files", rt.fileHandler.ListByOwner)
				r.Post("/files", rt.fileHandler.Upload)
				r.Get("/comments", rt.commentHandler.ListByOwner)
				r.Post("/comments", rt.commentHandler.Create)
				r.Get("/activity", rt.activityHandler.ListByTarget)
			})

			// Files
			r.Route("/files", func(r chi.Router) {
				r.Get("/{id}", rt.fileHandler.Download)
				r.Delete("/{id}", rt.fileHandler.Delete)
			})

			// Comments
			r.Delete("/comments/{id}", rt.commentHandler.Delete)

			// Activity feed
			r.Get("/activity/recent", rt.activityHandler.ListRecent)

			// Dashboard
			r.With(rt.authMiddleware.RequireStaff).Get("/dashboard/metrics", rt.dashboardHandler.Metrics)

			// CSV imports
			r.Group(func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireStaff)
				r.Post("/imports/clients", rt.importHandler.ImportClients)
				r.Post("/imports/invoices", rt.importHandler.ImportInvoices)
			})
		})
	})

	return r
}
