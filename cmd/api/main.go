package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/creditmeter-backend/api"
	"github.com/angelmondragon/creditmeter-backend/api/controllers"
	"github.com/angelmondragon/creditmeter-backend/api/routes"
	"github.com/angelmondragon/creditmeter-backend/internal/ai"
	"github.com/angelmondragon/creditmeter-backend/internal/checkout"
	"github.com/angelmondragon/creditmeter-backend/internal/credits"
	"github.com/angelmondragon/creditmeter-backend/internal/metering"
	"github.com/angelmondragon/creditmeter-backend/internal/payments"
	"github.com/angelmondragon/creditmeter-backend/internal/pricing"
	"github.com/angelmondragon/creditmeter-backend/internal/ratelimit"
	"github.com/angelmondragon/creditmeter-backend/internal/usage"
	stripewebhook "github.com/angelmondragon/creditmeter-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/creditmeter-backend/pkg/config"
	"github.com/angelmondragon/creditmeter-backend/pkg/db"
	"github.com/angelmondragon/creditmeter-backend/pkg/instance"
	"github.com/angelmondragon/creditmeter-backend/pkg/logger"
	"github.com/angelmondragon/creditmeter-backend/pkg/metrics"
	"github.com/angelmondragon/creditmeter-backend/pkg/migrate"
	"github.com/angelmondragon/creditmeter-backend/pkg/pubsub"
	"github.com/angelmondragon/creditmeter-backend/pkg/redis"
	"github.com/angelmondragon/creditmeter-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	closers = append(closers, dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	ready := map[string]controllers.Pinger{"db": dbClient}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		closers = append(closers, redisClient.Close)
		ready["redis"] = redisClient
	} else {
		logg.Warn(ctx, "redis not configured; idempotency keys and webhook guard disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	var usagePublisher usage.EventPublisher
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		closers = append(closers, psClient.Close)
		ready["pubsub"] = psClient
		if pub := psClient.UsagePublisher(); pub != nil {
			usagePublisher = pub
		}
	}

	creditService, err := credits.NewService(credits.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "credit ledger", err)

	usageService, err := usage.NewService(usage.ServiceParams{
		Repo:      usage.NewRepository(dbClient.DB()),
		Logger:    logg,
		Metrics:   ledgerMetrics,
		Publisher: usagePublisher,
	})
	requireResource(ctx, logg, "usage ledger", err)

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:    payments.NewRepository(dbClient.DB()),
		Credits: creditService,
		Metrics: ledgerMetrics,
	})
	requireResource(ctx, logg, "payment recorder", err)

	meter, err := metering.NewMeter(pricing.NewCalculator(pricing.DefaultTable()), creditService, usageService, ledgerMetrics)
	requireResource(ctx, logg, "meter", err)

	deps := routes.Deps{
		Credits:  creditService,
		Usage:    usageService,
		Payments: paymentService,
		Meter:    meter,
		Metrics:  ledgerMetrics,
		Registry: registry,
		Ready:    ready,
	}

	if completer, err := ai.NewOpenAICompleter(cfg.OpenAI); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "openai not configured; completions disabled")
	} else {
		deps.Completer = completer
	}

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "stripe not configured; checkout and webhooks disabled")
	} else {
		checkoutService, err := checkout.NewService(stripeClient, checkout.Limits{
			MinCents: cfg.Stripe.MinTopUpCents,
			MaxCents: cfg.Stripe.MaxTopUpCents,
		})
		requireResource(ctx, logg, "checkout", err)

		webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
			Payments: paymentService,
			Logger:   logg,
		})
		requireResource(ctx, logg, "stripe webhook", err)

		deps.Stripe = stripeClient
		deps.Checkout = checkoutService
		deps.Webhook = webhookService
	}

	if redisClient != nil {
		deps.Idempotency = redisClient
		if deps.Webhook != nil {
			guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, stripewebhook.DefaultScope)
			requireResource(ctx, logg, "webhook guard", err)
			deps.WebhookGuard = guard
		}
	}

	deps.Limiters, err = buildLimiters(ctx, cfg.RateLimit, redisClient, logg)
	requireResource(ctx, logg, "rate limiter", err)

	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	server := api.NewServer(cfg, addr, routes.NewRouter(cfg, logg, deps))

	runCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(runCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			closeAll(logg, closers)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(runCtx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "graceful shutdown failed", err)
		}
	}

	closeAll(logg, closers)
}

func buildLimiters(ctx context.Context, cfg config.RateLimitConfig, redisClient *redis.Client, logg *logger.Logger) (routes.Limiters, error) {
	var store ratelimit.Store
	if cfg.UsesRedis() && redisClient != nil {
		redisStore, err := ratelimit.NewRedisStore(redisClient)
		if err != nil {
			return routes.Limiters{}, err
		}
		store = redisStore
	} else {
		if cfg.UsesRedis() {
			logg.Warn(ctx, "rate limit backend is redis but redis is not configured; using memory")
		}
		memory := ratelimit.NewMemoryStore()
		go memory.RunSweeper(ctx, cfg.SweepInterval)
		store = memory
	}

	auth, err := ratelimit.NewLimiter(ratelimit.Policy{Name: "auth", MaxAttempts: cfg.AuthMaxAttempts, Window: cfg.AuthWindow}, store)
	if err != nil {
		return routes.Limiters{}, err
	}
	checkoutLimiter, err := ratelimit.NewLimiter(ratelimit.Policy{Name: "checkout", MaxAttempts: cfg.CheckoutMax, Window: cfg.CheckoutWindow}, store)
	if err != nil {
		return routes.Limiters{}, err
	}
	completions, err := ratelimit.NewLimiter(ratelimit.Policy{Name: "completions", MaxAttempts: cfg.CompletionsMax, Window: cfg.CompletionsWindow}, store)
	if err != nil {
		return routes.Limiters{}, err
	}
	return routes.Limiters{Auth: auth, Checkout: checkoutLimiter, Completions: completions}, nil
}

func closeAll(logg *logger.Logger, closers []func() error) {
	var errs error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, closers[i]())
	}
	if errs != nil {
		logg.Error(context.Background(), "error closing resources", errs)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
