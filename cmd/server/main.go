// Command server runs the billing service: checkout, coupons, entitlements,
// team invitations and the provider webhook endpoint, behind an
// identity-aware proxy that authenticates requests upstream.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cataloghq/cataloghq/core"
	billingmodule "github.com/cataloghq/cataloghq/modules/billing"
	"github.com/cataloghq/cataloghq/pkg/artifact"
	"github.com/cataloghq/cataloghq/pkg/audit"
	"github.com/cataloghq/cataloghq/pkg/config"
	"github.com/cataloghq/cataloghq/pkg/coupon"
	"github.com/cataloghq/cataloghq/pkg/email"
	"github.com/cataloghq/cataloghq/pkg/entitlement"
	"github.com/cataloghq/cataloghq/pkg/environment"
	"github.com/cataloghq/cataloghq/pkg/httpserver"
	"github.com/cataloghq/cataloghq/pkg/identity"
	"github.com/cataloghq/cataloghq/pkg/logger"
	"github.com/cataloghq/cataloghq/pkg/mongo"
	"github.com/cataloghq/cataloghq/pkg/pg"
	"github.com/cataloghq/cataloghq/pkg/plans"
	redisconn "github.com/cataloghq/cataloghq/pkg/redis"
	"github.com/cataloghq/cataloghq/pkg/requestid"
	"github.com/cataloghq/cataloghq/pkg/subscription"
	"github.com/cataloghq/cataloghq/svc/billing"
)

type appConfig struct {
	Env         environment.Environment `env:"APP_ENV" envDefault:"development"`
	ServiceName string                  `env:"APP_NAME" envDefault:"cataloghq-billing"`

	// AuditBackend selects where webhook deliveries are archived.
	AuditBackend string `env:"AUDIT_BACKEND" envDefault:"postgres"`

	// EmailDevDir receives rendered emails when no Postmark token is set.
	EmailDevDir string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`

	// ArtifactBackend selects where export documents are stored.
	ArtifactBackend string `env:"ARTIFACT_BACKEND" envDefault:"memory"`

	// IdentityMode selects how callers authenticate: "trusted-header"
	// behind the identity-aware proxy, "oauth" for direct bearer tokens.
	IdentityMode string `env:"IDENTITY_MODE" envDefault:"trusted-header"`

	// CacheCounters wraps entitlement counters with the Redis read-through
	// decorator. Requires REDIS_URL.
	CacheCounters   bool          `env:"ENTITLEMENT_CACHE" envDefault:"false"`
	CounterCacheTTL time.Duration `env:"ENTITLEMENT_CACHE_TTL" envDefault:"30s"`

	// OverrideAccountIDs bypass plan limit checks entirely.
	OverrideAccountIDs []uuid.UUID `env:"ENTITLEMENT_OVERRIDE_ACCOUNTS"`

	// PlansPath points at a YAML plan catalog; empty uses the built-in table.
	PlansPath string `env:"PLANS_PATH"`

	PriceStandardMonthly     string `env:"PRICE_ID_STANDARD_MONTHLY"`
	PriceStandardYearly      string `env:"PRICE_ID_STANDARD_YEARLY"`
	PriceProfessionalMonthly string `env:"PRICE_ID_PROFESSIONAL_MONTHLY"`
	PriceProfessionalYearly  string `env:"PRICE_ID_PROFESSIONAL_YEARLY"`
	PriceBusinessMonthly     string `env:"PRICE_ID_BUSINESS_MONTHLY"`
	PriceBusinessYearly      string `env:"PRICE_ID_BUSINESS_YEARLY"`
}

func (cfg appConfig) priceTable() billing.PriceTable {
	return billing.PriceTable{
		plans.TierStandard: {
			plans.CycleMonthly: cfg.PriceStandardMonthly,
			plans.CycleYearly:  cfg.PriceStandardYearly,
		},
		plans.TierProfessional: {
			plans.CycleMonthly: cfg.PriceProfessionalMonthly,
			plans.CycleYearly:  cfg.PriceProfessionalYearly,
		},
		plans.TierBusiness: {
			plans.CycleMonthly: cfg.PriceBusinessMonthly,
			plans.CycleYearly:  cfg.PriceBusinessYearly,
		},
	}
}

func main() {
	ctx := context.Background()

	var app appConfig
	config.MustLoad(&app)

	log := logger.New(
		logger.WithEnvironment(app.Env, app.ServiceName),
		logger.WithContextExtractors(requestid.LoggerExtractor(), environment.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	if err := run(ctx, app, log); err != nil {
		log.ErrorContext(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, app appConfig, log *slog.Logger) error {
	var pgConfig pg.Config
	config.MustLoad(&pgConfig)

	pool, err := pg.Connect(ctx, pgConfig)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgConfig, log); err != nil {
		return err
	}

	catalog := plans.Default()
	if app.PlansPath != "" {
		catalog, err = plans.NewCatalog(ctx, plans.NewYAMLSource(app.PlansPath))
		if err != nil {
			return err
		}
	}

	subs := subscription.NewPostgresStore(pool)
	invitations := billing.NewPostgresInvitationStore(pool)
	ledger := coupon.NewLedger(coupon.NewPostgresStore(pool))

	healthchecks := []func(context.Context) error{pg.Healthcheck(pool)}

	trail, mongoChecks, err := buildTrail(ctx, app, pool, log)
	if err != nil {
		return err
	}
	healthchecks = append(healthchecks, mongoChecks...)

	registry := entitlement.NewRegistry()
	seatCounter := entitlement.CounterFunc(
		func(ctx context.Context, _ uuid.UUID, scope uuid.UUID) (int64, error) {
			return invitations.CountSeats(ctx, scope)
		})
	if app.CacheCounters {
		var redisConfig redisconn.Config
		config.MustLoad(&redisConfig)
		redisClient, err := redisconn.Connect(ctx, redisConfig)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		seatCounter = entitlement.CachedCounter(redisClient, "entitlement", app.CounterCacheTTL, seatCounter)
		healthchecks = append(healthchecks, redisconn.Healthcheck(redisClient))
	}
	registry.Register(plans.ResourceTeamMembers, seatCounter)

	exportStore := billing.NewPostgresExportStore(pool)
	registry.Register(plans.ResourceExports, billing.ExportCounter(exportStore, nil))

	artifacts, err := buildArtifacts(ctx, app)
	if err != nil {
		return err
	}

	entOpts := []entitlement.Option{}
	if len(app.OverrideAccountIDs) > 0 {
		entOpts = append(entOpts, entitlement.WithOverridePolicy(
			entitlement.NewStaticPolicy(app.OverrideAccountIDs...)))
	}
	entitlements := entitlement.NewService(catalog, registry, billing.TierResolver(subs), entOpts...)

	var billingConfig billing.Config
	config.MustLoad(&billingConfig)

	provider, err := buildProvider(billingConfig.ProviderName)
	if err != nil {
		return err
	}

	service := billing.NewService(billingConfig, catalog, subs, ledger, provider, entitlements,
		billing.WithPriceTable(app.priceTable()),
		billing.WithTrail(trail),
		billing.WithInvitations(invitations, buildSender(app, log)),
		billing.WithExports(exportStore, artifacts),
		billing.WithLogger(log))

	router := chi.NewRouter()
	router.Use(requestid.Middleware)
	router.Use(environment.Middleware(app.Env))
	router.Get("/healthz", httpserver.HealthHandler(log))
	router.Get("/readyz", httpserver.HealthHandler(log, healthchecks...))

	idMiddleware, idProvider := buildIdentity(app)
	router.Group(func(r chi.Router) {
		r.Use(idMiddleware)
		r.Mount("/billing", billingmodule.Router(billingmodule.RouterOptions{
			Billing: billingmodule.NewModule(service, idProvider),
		}))
	})
	router.Mount("/billing/webhooks", billingmodule.NewWebhookHandler(service,
		billingmodule.WithSignatureHeader(signatureHeader(billingConfig.ProviderName))).Handle())

	var httpConfig httpserver.Config
	config.MustLoad(&httpConfig)
	return httpserver.New(httpConfig, httpserver.WithLogger(log)).Run(ctx, router)
}

// buildTrail picks the audit archive backend. Postgres reuses the main pool;
// the Mongo backend keeps raw provider payloads out of the relational store.
func buildTrail(ctx context.Context, app appConfig, pool *pgxpool.Pool, log *slog.Logger) (*audit.Trail, []func(context.Context) error, error) {
	if app.AuditBackend != "mongo" {
		return audit.NewTrail(audit.NewPostgresStore(pool), log), nil, nil
	}

	var cfg mongo.Config
	config.MustLoad(&cfg)
	db, err := mongo.ConnectDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	checks := []func(context.Context) error{mongo.Healthcheck(db.Client())}
	return audit.NewTrail(audit.NewMongoStore(db), log), checks, nil
}

// buildProvider constructs the configured payment provider.
func buildProvider(name string) (subscription.Provider, error) {
	switch name {
	case "paddle":
		var cfg subscription.PaddleConfig
		config.MustLoad(&cfg)
		return subscription.NewPaddleProvider(cfg)
	default:
		var cfg subscription.GenericConfig
		config.MustLoad(&cfg)
		return subscription.NewGenericProvider(cfg)
	}
}

// signatureHeader returns the header each provider signs deliveries with.
func signatureHeader(providerName string) string {
	if providerName == "paddle" {
		return "Paddle-Signature"
	}
	return billingmodule.DefaultSignatureHeader
}

// buildSender returns the Postmark sender when a server token is configured,
// otherwise the filesystem dev sender.
func buildSender(app appConfig, log *slog.Logger) email.Sender {
	var cfg email.Config
	config.MustLoad(&cfg)

	if cfg.PostmarkServerToken != "" {
		sender, err := email.NewPostmarkSender(cfg)
		if err == nil {
			return sender
		}
		log.Error("postmark sender unavailable, falling back to dev sender", logger.Error(err))
	}
	return email.NewDevSender(app.EmailDevDir)
}

// buildArtifacts picks where export documents land. The in-memory store is
// the development default; production sets ARTIFACT_BACKEND=s3.
func buildArtifacts(ctx context.Context, app appConfig) (artifact.Store, error) {
	if app.ArtifactBackend != "s3" {
		return artifact.NewMemStore(), nil
	}

	var cfg artifact.S3Config
	config.MustLoad(&cfg)
	return artifact.NewS3Store(ctx, cfg)
}

// buildIdentity picks how callers are authenticated: trusted headers set by
// the upstream proxy (the default) or bearer tokens resolved against an
// OAuth userinfo endpoint when the service faces clients directly.
func buildIdentity(app appConfig) (func(http.Handler) http.Handler, identity.Provider) {
	if app.IdentityMode != "oauth" {
		return trustedIdentity, identity.ContextProvider{}
	}

	var cfg identity.OAuthConfig
	config.MustLoad(&cfg)
	return identity.BearerMiddleware, identity.NewOAuthProvider(cfg)
}

// trustedIdentity recovers the user authenticated by the upstream proxy.
// The service trusts these headers; the proxy strips them from client
// traffic.
func trustedIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, err := uuid.Parse(r.Header.Get("X-Account-ID"))
		if err != nil {
			_ = core.JSONError(core.ErrUnauthorized).Render(w, r)
			return
		}
		user := identity.User{ID: accountID, Email: r.Header.Get("X-Account-Email")}
		next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), user)))
	})
}
