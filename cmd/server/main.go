package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	billingmodule "github.com/bugtrackerhq/entitlements/modules/billing"
	bugsmodule "github.com/bugtrackerhq/entitlements/modules/bugs"
	"github.com/bugtrackerhq/entitlements/pkg/config"
	"github.com/bugtrackerhq/entitlements/pkg/httpserver"
	"github.com/bugtrackerhq/entitlements/pkg/logger"
	"github.com/bugtrackerhq/entitlements/pkg/pg"
	"github.com/bugtrackerhq/entitlements/svc/account"
	"github.com/bugtrackerhq/entitlements/svc/authz"
	"github.com/bugtrackerhq/entitlements/svc/billing"
	"github.com/bugtrackerhq/entitlements/svc/bugs"
	"github.com/bugtrackerhq/entitlements/svc/quota"
)

type appConfig struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	PG     pg.Config
	HTTP   httpserver.Config
	Stripe billing.StripeConfig

	PlansFile          string `env:"BILLING_PLANS_FILE"`
	CheckoutSuccessURL string `env:"BILLING_CHECKOUT_SUCCESS_URL" envDefault:"http://localhost:8080/billing/success"`
	CheckoutCancelURL  string `env:"BILLING_CHECKOUT_CANCEL_URL" envDefault:"http://localhost:8080/billing/cancelled"`
	PortalReturnURL    string `env:"BILLING_PORTAL_RETURN_URL" envDefault:"http://localhost:8080/billing"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg appConfig
	config.MustLoad(&cfg)

	logOpt := logger.WithDevelopment("entitlements")
	if cfg.AppEnv == "production" {
		logOpt = logger.WithProduction("entitlements")
	}
	log := logger.New(logOpt, logger.WithLevel(parseLevel(cfg.LogLevel)))
	logger.SetAsDefault(log)

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return err
	}

	accounts := account.NewPGStore(pool)
	events := billing.NewPGEventStore(pool)
	memberships := authz.NewPGMembershipSource(pool)
	bugStore := bugs.NewPGStore(pool)

	var src billing.PlanSource = billing.NewStaticPlanSource(billing.DefaultCatalog())
	if cfg.PlansFile != "" {
		src = billing.NewFilePlanSource(cfg.PlansFile)
	}

	billingOpts := []billing.Option{
		billing.WithLogger(log),
		billing.WithCheckoutURLs(cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL),
		billing.WithPortalReturnURL(cfg.PortalReturnURL),
	}
	if cfg.Stripe.Configured() {
		provider, err := billing.NewStripeProvider(cfg.Stripe)
		if err != nil {
			return err
		}
		billingOpts = append(billingOpts, billing.WithProvider(provider))
	} else {
		log.WarnContext(ctx, "stripe is not configured, billing endpoints are disabled")
	}

	billingSvc, err := billing.NewService(ctx, src, accounts, events, billingOpts...)
	if err != nil {
		return err
	}

	enforcer := quota.NewEnforcer(accounts, billingSvc.Catalog())
	policy := authz.NewPolicy(memberships)
	bugSvc := bugs.NewService(accounts, bugStore, policy, enforcer, bugs.WithLogger(log))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(account.HeaderIdentity)
	r.Get("/health", httpserver.HealthCheckHandler(ctx, log, pg.Healthcheck(pool)))
	r.Mount("/billing", billingmodule.Router(billingSvc, log))
	r.Mount("/bugs", bugsmodule.Router(bugSvc, log))

	return httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log)).Run(ctx, r)
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
