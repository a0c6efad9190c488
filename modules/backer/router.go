// Package backer is the local web surface: session endpoints, the project
// catalog, donation handoff and the checkout return trip.
package backer

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/fundkit/handler"
	"github.com/dmitrymomot/fundkit/pkg/binder"
	"github.com/dmitrymomot/fundkit/pkg/clientip"
	"github.com/dmitrymomot/fundkit/pkg/fundapi"
	"github.com/dmitrymomot/fundkit/pkg/httpserver"
	"github.com/dmitrymomot/fundkit/pkg/logger"
	"github.com/dmitrymomot/fundkit/pkg/ratelimiter"
	"github.com/dmitrymomot/fundkit/pkg/requestid"
	"github.com/dmitrymomot/fundkit/pkg/routeguard"
	"github.com/dmitrymomot/fundkit/svc/auth"
	"github.com/dmitrymomot/fundkit/svc/donation"
	"github.com/dmitrymomot/fundkit/svc/project"
)

// Session is the session owner. *auth.Manager satisfies it.
type Session interface {
	routeguard.Source
	Bootstrap(ctx context.Context) error
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, form auth.RegisterForm) error
	Logout(ctx context.Context)
}

// Catalog is the project read model. *project.Catalog satisfies it.
type Catalog interface {
	Refresh(ctx context.Context) ([]fundapi.Project, error)
	Load(ctx context.Context, id string) (fundapi.Project, error)
	Create(ctx context.Context, form project.Form) (fundapi.Project, error)
	Dashboard(ctx context.Context, user *fundapi.User) (project.Dashboard, error)
}

// Donations runs donation attempts. *donation.Coordinator satisfies it.
type Donations interface {
	Initiate(ctx context.Context, intent donation.Intent) (donation.Handoff, error)
	Reconcile(ctx context.Context, rc donation.ReturnContext) (donation.Result, error)
	AddDonation(ctx context.Context, projectID string, amount decimal.Decimal) (fundapi.Project, error)
}

// RouterOptions wires the module. Session, Catalog and Donations are required.
type RouterOptions struct {
	Session   Session
	Catalog   Catalog
	Donations Donations

	// Guard protects signed-in routes. Defaults to routeguard.New(Session).
	Guard *routeguard.Guard
	// AuthLimiter throttles login and registration per client IP.
	AuthLimiter *ratelimiter.Limiter
	// Gatherer backs /metrics; the route is not mounted when nil.
	Gatherer prometheus.Gatherer
	Checks   map[string]httpserver.Check
	Logger   *slog.Logger
	// QRSize is the edge length of the checkout QR code in pixels.
	QRSize int
	Now    func() time.Time
}

type service struct {
	session   Session
	catalog   Catalog
	donations Donations
	bind      binder.Func
	limiter   *ratelimiter.Limiter
	log       *slog.Logger
	qrSize    int
	now       func() time.Time
}

// Router builds the module's routes.
//
//	srv := httpserver.New(httpserver.WithAddr(cfg.HTTPAddr))
//	err := srv.Run(ctx, backer.Router(backer.RouterOptions{
//		Session:   manager,
//		Catalog:   catalog,
//		Donations: coordinator,
//		Gatherer:  registry,
//	}))
func Router(opts RouterOptions) chi.Router {
	s := &service{
		session:   opts.Session,
		catalog:   opts.Catalog,
		donations: opts.Donations,
		bind:      binder.JSON(0),
		limiter:   opts.AuthLimiter,
		log:       opts.Logger,
		qrSize:    opts.QRSize,
		now:       opts.Now,
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	s.log = s.log.With(logger.Component("backer"))
	if s.qrSize <= 0 {
		s.qrSize = 256
	}
	if s.now == nil {
		s.now = time.Now
	}
	guard := opts.Guard
	if guard == nil {
		guard = routeguard.New(opts.Session, routeguard.WithLogger(s.log))
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware, clientip.Middleware, middleware.Recoverer)

	r.Get("/healthz", httpserver.HealthHandler(s.log, opts.Checks))
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.throttle(s.limiter))
			}
			r.Post("/login", wrap(s, s.login, s.bind))
			r.Post("/register", wrap(s, s.register, s.bind))
		})
		r.Post("/logout", wrap(s, s.logout, nil))
		r.With(s.restore).Get("/me", wrap(s, s.me, nil))
	})

	r.Get("/projects", wrap(s, s.listProjects, nil))
	r.Get("/projects/{id}", wrap(s, s.showProject, nil))
	r.Get("/success", wrap(s, s.success, nil))
	r.Get("/cancel", wrap(s, s.cancel, nil))

	r.Group(func(r chi.Router) {
		r.Use(s.restore, guard.Middleware)
		r.Post("/projects", wrap(s, s.createProject, s.bind))
		r.Post("/projects/{id}/donate", wrap(s, s.donate, s.bind))
		r.Post("/projects/{id}/donations", wrap(s, s.addDonation, s.bind))
		r.Get("/dashboard", wrap(s, s.dashboard, nil))
	})

	return r
}

// restore picks up a token saved by another process, such as the CLI, while
// the server is signed out.
func (s *service) restore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if snap := s.session.Snapshot(); snap.Status == auth.StatusUnauthenticated && snap.Err == nil {
			if err := s.session.Bootstrap(r.Context()); err != nil {
				s.log.DebugContext(r.Context(), "restoring session failed", logger.Error(err))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// throttleKey buckets credential submissions per client and endpoint.
var throttleKey = ratelimiter.Composite(ratelimiter.ByIP, ratelimiter.ByPath)

// throttle renders limiter rejections in the JSON envelope. A successful
// login resets its bucket.
func (s *service) throttle(l *ratelimiter.Limiter) func(http.Handler) http.Handler {
	return ratelimiter.Middleware(l, throttleKey,
		ratelimiter.WithDeniedHandler(func(w http.ResponseWriter, r *http.Request, _ ratelimiter.Result) {
			s.log.WarnContext(r.Context(), "credential submissions throttled", logger.Event("rate_limited"))
			_ = handler.JSONError(handler.ErrTooManyRequests.WithCause("Too many attempts, please wait and try again", nil)).Render(w, r)
		}),
		ratelimiter.WithFailureHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			s.log.ErrorContext(r.Context(), "rate limiter unavailable", logger.Error(err))
			_ = handler.JSONError(handler.ErrServiceUnavailable).Render(w, r)
		}),
	)
}

func wrap[R any](s *service, h handler.HandlerFunc[R], bind binder.Func) http.HandlerFunc {
	opts := []handler.WrapOption[R]{handler.WithErrorHandler[R](s.handleError)}
	if bind != nil {
		opts = append(opts, handler.WithBinder[R](bind))
	}
	return handler.Wrap(h, opts...)
}
