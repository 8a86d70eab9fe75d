package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/barberlink/bookings/internal/booking"
	"github.com/barberlink/bookings/internal/http/handlers"
	httpmw "github.com/barberlink/bookings/internal/http/middleware"
	"github.com/barberlink/bookings/internal/notify"
	"github.com/barberlink/bookings/internal/payments"
	"github.com/barberlink/bookings/internal/repo/postgres"
	redisrepo "github.com/barberlink/bookings/internal/repo/redis"
	"github.com/barberlink/bookings/internal/sharelink"
	"github.com/barberlink/bookings/pkg/config"
	"github.com/barberlink/bookings/pkg/database"
	"github.com/barberlink/bookings/pkg/events"
	"github.com/barberlink/bookings/pkg/logger"
	mw "github.com/barberlink/bookings/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Idempotency cache
	idempotencyStore, err := redisrepo.NewIdempotencyStore(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer idempotencyStore.Close()

	// Initialize repositories
	bookingRepo := postgres.NewBookingRepository(pool)
	serviceRepo := postgres.NewServiceRepository(pool)
	barbershopRepo := postgres.NewBarbershopRepository(pool)

	// Payment gateway
	var gateway payments.Gateway = payments.NewDisabledGateway()
	if cfg.Stripe.SecretKey != "" {
		stripeGateway, err := payments.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.Timeout)
		if err != nil {
			logger.Error("Failed to initialize Stripe gateway", "error", err)
			os.Exit(1)
		}
		gateway = stripeGateway
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, online payments disabled")
	}

	// Initialize services
	tokens := sharelink.NewService(cfg.ShareLink.Secret)
	if cfg.ShareLink.Secret == "" {
		logger.Warn("SHARE_LINK_TOKEN_SECRET not set, share links disabled")
	}
	reconciler := booking.NewReconciler(bookingRepo, gateway, eventBus)
	bookingService := booking.NewService(bookingRepo, serviceRepo, barbershopRepo, gateway, reconciler, eventBus, cfg)

	// Confirmation email worker
	var mailer notify.Mailer
	if cfg.Email.DevMode || cfg.Email.MailerSendKey == "" {
		mailer = notify.NewDevMailer()
	} else {
		mailer = notify.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}
	worker := notify.NewWorker(eventBus, barbershopRepo, mailer)
	if err := worker.Start(); err != nil {
		logger.Error("Failed to start notify worker", "error", err)
		os.Exit(1)
	}

	// Initialize handlers
	bookingsHandler := handlers.NewBookingsHandler(bookingService)
	scheduleHandler := handlers.NewScheduleHandler(bookingService)
	shareHandler := handlers.NewShareHandler(barbershopRepo, tokens, cfg)
	webhookHandler := handlers.NewWebhookHandler(reconciler, cfg.Stripe.WebhookSecret)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("bookings"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Server.AppURL},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Routes
	r.Get("/s/{slug}", shareHandler.Entry)
	r.Get("/barbershops/{id}/schedule", scheduleHandler.Day)
	r.Post("/webhooks/stripe", webhookHandler.HandleStripe)

	r.Route("/bookings", func(r chi.Router) {
		r.Use(httpmw.RequireJWT(cfg.Auth.JWTSecret))
		r.Use(mw.IdempotencyMiddleware(idempotencyStore))
		r.Mount("/", bookingsHandler.Routes())
	})

	r.Route("/admin/barbershops", func(r chi.Router) {
		r.Use(httpmw.RequireJWT(cfg.Auth.JWTSecret))
		r.Post("/{id}/share-link", shareHandler.IssueLink)
	})

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down bookings service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Bookings service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting bookings service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Bookings service error", "error", err)
		os.Exit(1)
	}
}
