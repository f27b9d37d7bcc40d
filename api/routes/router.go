package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/creditmeter-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/creditmeter-backend/api/controllers/webhooks"
	"github.com/angelmondragon/creditmeter-backend/api/middleware"
	"github.com/angelmondragon/creditmeter-backend/internal/ai"
	"github.com/angelmondragon/creditmeter-backend/internal/checkout"
	"github.com/angelmondragon/creditmeter-backend/internal/credits"
	"github.com/angelmondragon/creditmeter-backend/internal/metering"
	"github.com/angelmondragon/creditmeter-backend/internal/payments"
	"github.com/angelmondragon/creditmeter-backend/internal/ratelimit"
	"github.com/angelmondragon/creditmeter-backend/internal/usage"
	stripewebhook "github.com/angelmondragon/creditmeter-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/creditmeter-backend/pkg/config"
	"github.com/angelmondragon/creditmeter-backend/pkg/logger"
	"github.com/angelmondragon/creditmeter-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/creditmeter-backend/pkg/redis"
	"github.com/angelmondragon/creditmeter-backend/pkg/stripe"
)

// Limiters groups the per-surface rate limiters. A nil limiter disables
// limiting for its routes.
type Limiters struct {
	Auth        *ratelimit.Limiter
	Checkout    *ratelimit.Limiter
	Completions *ratelimit.Limiter
}

// Deps is everything the router wires into handlers. Optional
// infrastructure (redis, pubsub, the webhook guard) may be left nil.
type Deps struct {
	Credits      credits.Service
	Usage        usage.Service
	Payments     payments.Service
	Checkout     checkout.Service
	Meter        *metering.Meter
	Completer    ai.Completer
	Stripe       *stripe.Client
	Webhook      *stripewebhook.Service
	WebhookGuard *stripewebhook.IdempotencyGuard

	Idempotency pkgredis.IdempotencyStore
	Limiters    Limiters
	Metrics     *metrics.LedgerMetrics
	Registry    *prometheus.Registry
	Ready       map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Ready, logg))
	})

	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(webhookService(deps), stripeSigner(deps), webhookGuard(deps), logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(deps.Idempotency, logg))

			r.Get("/private/ping", controllers.PrivatePing())
			r.With(middleware.RateLimit(deps.Limiters.Auth, deps.Metrics, logg)).
				Get("/auth/session", controllers.AuthSession(cfg.JWT, logg))

			r.Route("/billing", func(r chi.Router) {
				r.Get("/", controllers.BillingOverview(deps.Credits, deps.Usage, deps.Payments, logg))
				r.Get("/balance", controllers.BillingBalance(deps.Credits, logg))
				r.Get("/usage", controllers.BillingUsage(deps.Usage, logg))
				r.Get("/payments", controllers.BillingPayments(deps.Payments, logg))
				r.With(middleware.RateLimit(deps.Limiters.Checkout, deps.Metrics, logg)).
					Post("/checkout", controllers.BillingCheckout(deps.Checkout, logg))
			})

			r.With(middleware.RateLimit(deps.Limiters.Completions, deps.Metrics, logg)).
				Post("/completions", controllers.Completions(completionsMeter(deps), deps.Completer, deps.Credits, deps.Metrics, logg))
		})
	})

	return r
}

type meter interface {
	Supports(model string) bool
	Authorize(ctx context.Context, userID uuid.UUID) (credits.Balance, error)
	Charge(ctx context.Context, charge metering.Charge) (metering.Receipt, error)
}

type signer interface {
	SigningSecret() string
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// The helpers below keep nil pointers from turning into non-nil interfaces.

func completionsMeter(deps Deps) meter {
	if deps.Meter == nil {
		return nil
	}
	return deps.Meter
}

func webhookService(deps Deps) webhookcontrollers.StripeWebhookService {
	if deps.Webhook == nil {
		return nil
	}
	return deps.Webhook
}

func stripeSigner(deps Deps) signer {
	if deps.Stripe == nil {
		return nil
	}
	return deps.Stripe
}

func webhookGuard(deps Deps) eventGuard {
	if deps.WebhookGuard == nil {
		return nil
	}
	return deps.WebhookGuard
}
