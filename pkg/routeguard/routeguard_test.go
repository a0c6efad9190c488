package routeguard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fundkit/pkg/broadcast"
	"github.com/dmitrymomot/fundkit/pkg/fundapi"
	"github.com/dmitrymomot/fundkit/pkg/routeguard"
	"github.com/dmitrymomot/fundkit/svc/auth"
)

var (
	loadingSnap = auth.Snapshot{Status: auth.StatusLoading, Token: "t"}
	authedSnap  = auth.Snapshot{Status: auth.StatusAuthenticated, Token: "t", Identity: &fundapi.User{ID: "u1"}}
	anonSnap    = auth.Snapshot{Status: auth.StatusUnauthenticated}
)

type fakeSource struct {
	mu   sync.Mutex
	snap auth.Snapshot
	b    *broadcast.MemoryBroadcaster[auth.Snapshot]
}

func newSource(t *testing.T, s auth.Snapshot) *fakeSource {
	t.Helper()
	src := &fakeSource{snap: s, b: broadcast.NewMemoryBroadcaster[auth.Snapshot]()}
	t.Cleanup(func() { _ = src.b.Close() })
	return src
}

func (f *fakeSource) Snapshot() auth.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) set(s auth.Snapshot) {
	f.mu.Lock()
	s.Version = f.snap.Version + 1
	f.snap = s
	f.mu.Unlock()
	_ = f.b.Broadcast(context.Background(), broadcast.Message[auth.Snapshot]{Data: s})
}

func (f *fakeSource) Subscribe(ctx context.Context) broadcast.Subscriber[auth.Snapshot] {
	return f.b.Subscribe(ctx)
}

func (f *fakeSource) WaitReady(ctx context.Context) (auth.Snapshot, error) {
	sub := f.Subscribe(ctx)
	defer sub.Close()
	if s := f.Snapshot(); !s.IsLoading() {
		return s, nil
	}
	for {
		select {
		case <-ctx.Done():
			return f.Snapshot(), ctx.Err()
		case msg, ok := <-sub.Receive():
			if !ok {
				return f.Snapshot(), ctx.Err()
			}
			if !msg.Data.IsLoading() {
				return msg.Data, nil
			}
		}
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	assert.Equal(t, routeguard.Decision{Kind: routeguard.Wait}, routeguard.Decide(loadingSnap, "/login"))
	assert.Equal(t, routeguard.Decision{Kind: routeguard.Allow}, routeguard.Decide(authedSnap, "/login"))
	assert.Equal(t, routeguard.Decision{Kind: routeguard.Redirect, Location: "/login"}, routeguard.Decide(anonSnap, "/login"))

	// Authenticated without a token is never allowed.
	broken := auth.Snapshot{Status: auth.StatusAuthenticated}
	assert.Equal(t, routeguard.Redirect, routeguard.Decide(broken, "/login").Kind)
}

func protected(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := auth.SnapshotFromContext(r.Context())
		assert.True(t, ok)
		assert.True(t, s.IsAuthenticated())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("allow", func(t *testing.T) {
		t.Parallel()
		h := routeguard.New(newSource(t, authedSnap)).Middleware(protected(t))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("redirect keeps target", func(t *testing.T) {
		t.Parallel()
		h := routeguard.New(newSource(t, anonSnap), routeguard.WithLoginPath("/auth/login")).Middleware(protected(t))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard?tab=1", nil))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/auth/login?next=%2Fdashboard%3Ftab%3D1", rec.Header().Get("Location"))
	})

	t.Run("waits for loading to finish", func(t *testing.T) {
		t.Parallel()
		src := newSource(t, loadingSnap)
		h := routeguard.New(src, routeguard.WithWaitTimeout(2*time.Second)).Middleware(protected(t))

		go func() {
			time.Sleep(20 * time.Millisecond)
			src.set(authedSnap)
		}()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("loading resolves to redirect", func(t *testing.T) {
		t.Parallel()
		src := newSource(t, loadingSnap)
		h := routeguard.New(src).Middleware(protected(t))

		go func() {
			time.Sleep(20 * time.Millisecond)
			src.set(anonSnap)
		}()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	})

	t.Run("wait timeout", func(t *testing.T) {
		t.Parallel()
		h := routeguard.New(newSource(t, loadingSnap), routeguard.WithWaitTimeout(20*time.Millisecond)).Middleware(protected(t))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		assert.JSONEq(t, `{"status":"loading"}`, rec.Body.String())
	})
}

func TestWatch(t *testing.T) {
	t.Parallel()
	src := newSource(t, loadingSnap)
	g := routeguard.New(src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	decisions := g.Watch(ctx)

	next := func() routeguard.Decision {
		t.Helper()
		select {
		case d, ok := <-decisions:
			require.True(t, ok)
			return d
		case <-time.After(time.Second):
			t.Fatal("no decision")
			return routeguard.Decision{}
		}
	}

	assert.Equal(t, routeguard.Wait, next().Kind)

	src.set(authedSnap)
	assert.Equal(t, routeguard.Allow, next().Kind)

	src.set(authedSnap)
	src.set(anonSnap)
	d := next()
	assert.Equal(t, routeguard.Redirect, d.Kind)
	assert.Equal(t, "/login", d.Location)

	cancel()
	select {
	case _, ok := <-decisions:
		for ok {
			_, ok = <-decisions
		}
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
