package main

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
	"github.com/fairyhunter13/listing-payment-gate/internal/chain/evm"
	"github.com/fairyhunter13/listing-payment-gate/internal/chain/solana"
	"github.com/fairyhunter13/listing-payment-gate/internal/chain/unverified"
	"github.com/fairyhunter13/listing-payment-gate/internal/config"
	"github.com/fairyhunter13/listing-payment-gate/internal/handler"
	"github.com/fairyhunter13/listing-payment-gate/internal/metrics"
	"github.com/fairyhunter13/listing-payment-gate/internal/payment"
	"github.com/fairyhunter13/listing-payment-gate/internal/repository"
	"github.com/fairyhunter13/listing-payment-gate/internal/service"
	"github.com/fairyhunter13/listing-payment-gate/internal/validator"
	"github.com/fairyhunter13/listing-payment-gate/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	initLogger(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}

	// Payment networks
	clients, merchants, err := buildChains(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure payment networks")
	}
	registry, err := payment.NewRegistry(clients...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build network registry")
	}
	paymentService, err := payment.NewService(registry, payment.NewVerifier(registry, recorder), payment.ServiceConfig{
		Prices: map[payment.Purpose]string{
			payment.PurposeListing:      cfg.Payment.ListingPrice,
			payment.PurposeSubscription: cfg.Payment.SubscriptionPrice,
		},
		Merchants: merchants,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure pricing")
	}

	// Admission components (layered architecture)
	admissionRepo := repository.NewAdmissionRepository(pool)
	promoRepo := repository.NewPromoRepository(pool)
	listingRepo := repository.NewListingRepository(pool)
	subscriptionRepo := repository.NewSubscriptionRepository(pool)

	poller := service.NewPoller(cfg.Payment.PollInterval, cfg.Payment.PollAttempts)
	gate := service.NewGate(pool, admissionRepo, promoRepo, paymentService, poller, recorder)

	promoService := service.NewPromoService(promoRepo)
	listingService := service.NewListingService(gate, listingRepo)
	subscriptionService := service.NewSubscriptionService(gate, subscriptionRepo, cfg.Payment.SubscriptionDays)

	validate := validator.New()

	// Initialize Fiber with production-ready configuration.
	// WriteTimeout covers the full verification poll window.
	app := fiber.New(fiber.Config{
		AppName:      "Listing Payment Gate",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30*time.Second + cfg.Payment.PollInterval*time.Duration(cfg.Payment.PollAttempts),
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())

	networks := make([]string, 0, len(paymentService.Networks()))
	for _, n := range paymentService.Networks() {
		networks = append(networks, n.String())
	}
	healthHandler := handler.NewHealthHandler(pool, networks)
	app.Get("/health", healthHandler.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	paymentHandler := handler.NewPaymentHandler(paymentService, validate)
	app.Post("/api/payments/reference", paymentHandler.NewReference)
	app.Post("/api/payments/transaction", paymentHandler.BuildTransaction)
	app.Post("/api/payments/verify", paymentHandler.Verify)

	listingHandler := handler.NewListingHandler(listingService, validate)
	app.Post("/api/listings", listingHandler.CreateListing)
	app.Get("/api/listings", listingHandler.ListListings)
	app.Get("/api/listings/:id", listingHandler.GetListing)

	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, validate)
	app.Post("/api/subscriptions", subscriptionHandler.Purchase)
	app.Get("/api/subscriptions/:subscriber", subscriptionHandler.GetActive)

	if cfg.Server.AdminAPIKey == "" {
		log.Warn().Msg("ADMIN_API_KEY not set, admin routes disabled")
	} else {
		promoHandler := handler.NewPromoHandler(promoService, validate)
		admin := app.Group("/api/admin", keyauth.New(keyauth.Config{
			Validator: adminKeyValidator(cfg.Server.AdminAPIKey),
		}))
		admin.Post("/promos", promoHandler.Generate)
		admin.Post("/promos/free", promoHandler.CreateFree)
		admin.Get("/promos", promoHandler.ListActive)
		admin.Get("/promos/:code", promoHandler.Get)
		admin.Delete("/promos/:id", promoHandler.Delete)
		admin.Put("/promos/:id/reset", promoHandler.Reset)
	}

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Strs("networks", networks).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// In-flight admissions finish or roll back before the pool closes.
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("server stopped")
}

// buildChains creates a guarded client per enabled network, Solana first so it
// becomes the default, and collects each network's merchant account.
func buildChains(cfg *config.Config) ([]chain.Client, map[chain.Network]string, error) {
	var clients []chain.Client
	merchants := make(map[chain.Network]string)
	settings := chain.GuardSettings{
		MaxConsecutiveFailures: cfg.Breaker.MaxFailures,
		OpenTimeout:            cfg.Breaker.OpenTimeout,
	}

	if cfg.Solana.Enabled {
		network := chain.Network(cfg.Solana.Network)
		c, err := solana.NewClient(solana.Config{
			Network:  network,
			RPCURL:   cfg.Solana.RPCURL,
			Mint:     cfg.Solana.Mint,
			Decimals: cfg.Solana.Decimals,
		}, chain.NewGuard(network, settings))
		if err != nil {
			return nil, nil, err
		}
		clients = append(clients, c)
		merchants[c.Network()] = cfg.Solana.Merchant
	}

	if cfg.EVM.Enabled {
		network := chain.Network(cfg.EVM.Network)
		c, err := evm.NewClient(evm.Config{
			Network:     network,
			RPCURL:      cfg.EVM.RPCURL,
			Token:       cfg.EVM.Token,
			Decimals:    cfg.EVM.Decimals,
			Merchant:    cfg.EVM.Merchant,
			GasLimit:    cfg.EVM.GasLimit,
			LogLookback: cfg.EVM.LogLookback,
		}, chain.NewGuard(network, settings))
		if err != nil {
			return nil, nil, err
		}
		clients = append(clients, c)
		merchants[c.Network()] = cfg.EVM.Merchant
	}

	for _, name := range cfg.Unverified.Networks {
		c, err := unverified.NewClient(chain.Network(name))
		if err != nil {
			return nil, nil, err
		}
		clients = append(clients, c)
	}
	return clients, merchants, nil
}

// adminKeyValidator compares bearer keys in constant time.
func adminKeyValidator(expected string) func(*fiber.Ctx, string) (bool, error) {
	want := sha256.Sum256([]byte(expected))
	return func(c *fiber.Ctx, key string) (bool, error) {
		got := sha256.Sum256([]byte(key))
		if subtle.ConstantTimeCompare(got[:], want[:]) == 1 {
			return true, nil
		}
		return false, keyauth.ErrMissingOrMalformedAPIKey
	}
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
