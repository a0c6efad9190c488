// Package routeguard gates protected views on the session state: it waits
// while the session is loading, serves authenticated requests and redirects
// everyone else to the login page.
package routeguard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrymomot/fundkit/pkg/broadcast"
	"github.com/dmitrymomot/fundkit/pkg/logger"
	"github.com/dmitrymomot/fundkit/svc/auth"
)

// Kind is the outcome of a guard decision.
type Kind int

const (
	Wait Kind = iota
	Allow
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Wait:
		return "wait"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision tells a view what to do. Location is set only for Redirect.
type Decision struct {
	Kind     Kind
	Location string
}

// Decide maps a session snapshot to a decision.
func Decide(s auth.Snapshot, loginPath string) Decision {
	switch {
	case s.IsLoading():
		return Decision{Kind: Wait}
	case s.IsAuthenticated():
		return Decision{Kind: Allow}
	default:
		return Decision{Kind: Redirect, Location: loginPath}
	}
}

// Source is the session the guard reads. *auth.Manager satisfies it.
type Source interface {
	Snapshot() auth.Snapshot
	WaitReady(ctx context.Context) (auth.Snapshot, error)
	Subscribe(ctx context.Context) broadcast.Subscriber[auth.Snapshot]
}

// Guard applies Decide to a live session.
type Guard struct {
	src         Source
	loginPath   string
	waitTimeout time.Duration
	logger      *slog.Logger
}

type Option func(*Guard)

// WithLoginPath sets where unauthenticated users are sent. Default "/login".
func WithLoginPath(path string) Option {
	return func(g *Guard) {
		if path != "" {
			g.loginPath = path
		}
	}
}

// WithWaitTimeout bounds how long a request waits for the session to load.
// Default 5s.
func WithWaitTimeout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.waitTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

func New(src Source, opts ...Option) *Guard {
	g := &Guard{
		src:         src,
		loginPath:   "/login",
		waitTimeout: 5 * time.Second,
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(logger.Component("routeguard"))
	return g
}

// Decide evaluates the current snapshot.
func (g *Guard) Decide() Decision {
	return Decide(g.src.Snapshot(), g.loginPath)
}

// Middleware guards next. Allowed requests carry the snapshot in their
// context; see auth.SnapshotFromContext.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := g.src.Snapshot()
		if snap.IsLoading() {
			ctx, cancel := context.WithTimeout(r.Context(), g.waitTimeout)
			ready, err := g.src.WaitReady(ctx)
			cancel()
			if err != nil {
				g.logger.DebugContext(r.Context(), "session still loading", logger.Error(err))
				writeWaiting(w)
				return
			}
			snap = ready
		}

		d := Decide(snap, g.loginPath)
		switch d.Kind {
		case Allow:
			next.ServeHTTP(w, r.WithContext(auth.WithSnapshot(r.Context(), snap)))
		case Redirect:
			http.Redirect(w, r, withNext(d.Location, r.URL.RequestURI()), http.StatusSeeOther)
		default:
			writeWaiting(w)
		}
	})
}

// Watch emits a decision for the current state and again whenever it
// changes. The channel closes when ctx is done.
func (g *Guard) Watch(ctx context.Context) <-chan Decision {
	out := make(chan Decision, 1)
	sub := g.src.Subscribe(ctx)

	go func() {
		defer close(out)
		defer sub.Close()

		last := g.Decide()
		select {
		case out <- last:
		case <-ctx.Done():
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Receive():
				if !ok {
					return
				}
				d := Decide(msg.Data, g.loginPath)
				if d == last {
					continue
				}
				last = d
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func withNext(loginPath, next string) string {
	if next == "" || next == loginPath {
		return loginPath
	}
	u, err := url.Parse(loginPath)
	if err != nil {
		return loginPath
	}
	q := u.Query()
	q.Set("next", next)
	u.RawQuery = q.Encode()
	return u.String()
}

func writeWaiting(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "loading"})
}
