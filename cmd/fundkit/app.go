package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/text/currency"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/fundkit/pkg/apiclient"
	"github.com/dmitrymomot/fundkit/pkg/checkout"
	"github.com/dmitrymomot/fundkit/pkg/clientip"
	"github.com/dmitrymomot/fundkit/pkg/environment"
	"github.com/dmitrymomot/fundkit/pkg/fundapi"
	"github.com/dmitrymomot/fundkit/pkg/httpserver"
	"github.com/dmitrymomot/fundkit/pkg/logger"
	"github.com/dmitrymomot/fundkit/pkg/ratelimiter"
	"github.com/dmitrymomot/fundkit/pkg/redis"
	"github.com/dmitrymomot/fundkit/pkg/requestid"
	"github.com/dmitrymomot/fundkit/pkg/retry"
	"github.com/dmitrymomot/fundkit/pkg/sessionstore"
	"github.com/dmitrymomot/fundkit/svc/auth"
	"github.com/dmitrymomot/fundkit/svc/donation"
	"github.com/dmitrymomot/fundkit/svc/project"
)

// app holds the wired services for one command invocation.
type app struct {
	cfg      Config
	log      *slog.Logger
	registry *prometheus.Registry
	checks   map[string]httpserver.Check
	unit     currency.Unit

	client  *apiclient.Client
	session *auth.Manager
	catalog *project.Catalog
	coord   *donation.Coordinator

	redis   *goredis.Client
	closers []func() error
}

func newApp(ctx context.Context, cfg Config, logOut io.Writer) (_ *app, err error) {
	a := &app{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		checks:   make(map[string]httpserver.Check),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	env := environment.Parse(cfg.AppEnv)
	a.log = logger.New(
		logger.WithEnvironment(env, "fundkit"),
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithOutput(logOut),
		logger.WithContextExtractors(requestid.LoggerExtractor(), clientip.LoggerExtractor(), environment.LoggerExtractor()),
	)
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if a.unit, err = currency.ParseISO(cfg.Currency); err != nil {
		return nil, fmt.Errorf("invalid CURRENCY %q: %w", cfg.Currency, err)
	}

	a.client, err = apiclient.New(cfg.APIBaseURL,
		apiclient.WithTimeout(cfg.APITimeout),
		apiclient.WithUserAgent("fundkit/"+version),
		apiclient.WithLogger(a.log),
	)
	if err != nil {
		return nil, err
	}
	api := fundapi.New(a.client)

	backend, err := a.sessionBackend(ctx)
	if err != nil {
		return nil, err
	}
	store := sessionstore.New(backend, sessionstore.WithPrefix(cfg.SessionPrefix), sessionstore.WithLogger(a.log))

	a.session = auth.NewManager(ctx, api, a.client, store,
		auth.WithLogger(a.log),
		auth.WithMetrics(auth.NewMetrics(a.registry)),
		auth.WithIdentityRetry(cfg.IdentityRetries, retry.Default()),
	)
	a.closers = append(a.closers, a.session.Close)

	a.catalog = project.NewCatalog(api, project.WithLogger(a.log))

	redirector, err := newRedirector(cfg)
	if err != nil {
		return nil, err
	}
	a.coord, err = donation.NewCoordinator(api, a.session, a.catalog, redirector, cfg.AppBaseURL,
		donation.WithLogger(a.log),
		donation.WithMetrics(donation.NewMetrics(a.registry)),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_BASE_URL %q: %w", cfg.AppBaseURL, err)
	}
	return a, nil
}

func (a *app) sessionBackend(ctx context.Context) (sessionstore.Backend, error) {
	switch strings.ToLower(a.cfg.SessionBackend) {
	case "memory":
		return sessionstore.NewMemoryBackend(), nil
	case "file", "":
		return sessionstore.NewFileBackend(a.cfg.SessionFile), nil
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return sessionstore.NewRedisBackend(client, a.cfg.SessionTTL), nil
	default:
		return nil, fmt.Errorf("unknown SESSION_BACKEND %q: want memory, file or redis", a.cfg.SessionBackend)
	}
}

// redisClient connects on first use and shares the client afterwards.
func (a *app) redisClient(ctx context.Context) (*goredis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client, err := redis.Connect(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	a.checks["redis"] = redis.Healthcheck(client)
	return client, nil
}

// authLimiter builds the login throttle. It returns nil when disabled.
func (a *app) authLimiter(ctx context.Context) (*ratelimiter.Limiter, error) {
	if a.cfg.AuthRateLimit.Capacity == 0 {
		return nil, nil
	}
	var store ratelimiter.Store
	switch strings.ToLower(a.cfg.RateLimitStore) {
	case "memory", "":
		store = ratelimiter.NewMemoryStore()
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		store = ratelimiter.NewRedisStore(client, a.cfg.SessionPrefix+"ratelimit:")
	default:
		return nil, fmt.Errorf("unknown RATE_LIMIT_STORE %q: want memory or redis", a.cfg.RateLimitStore)
	}
	return ratelimiter.New(store, a.cfg.AuthRateLimit)
}

func newRedirector(cfg Config) (checkout.Redirector, error) {
	switch strings.ToLower(cfg.CheckoutProvider) {
	case "template", "":
		return checkout.NewTemplateRedirector(cfg.CheckoutURLTemplate)
	case "paddle":
		return checkout.NewPaddleRedirector(cfg.Paddle)
	default:
		return nil, fmt.Errorf("unknown CHECKOUT_PROVIDER %q: want template or paddle", cfg.CheckoutProvider)
	}
}

// bootstrap confirms a restored session. A rejected token is reported and
// the command continues signed out.
func (a *app) bootstrap(ctx context.Context, warn io.Writer) error {
	err := a.session.Bootstrap(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrAuth):
		fmt.Fprintln(warn, err.Error())
		return nil
	default:
		return err
	}
}

// requireUser returns the signed-in identity or a hint to log in.
func (a *app) requireUser() (*fundapi.User, error) {
	snap := a.session.Snapshot()
	if !snap.IsAuthenticated() || snap.Identity == nil {
		return nil, errNotLoggedIn
	}
	u := *snap.Identity
	return &u, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
