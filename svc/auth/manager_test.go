package auth_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fundkit/pkg/apiclient"
	"github.com/dmitrymomot/fundkit/pkg/fundapi"
	"github.com/dmitrymomot/fundkit/pkg/retry"
	"github.com/dmitrymomot/fundkit/pkg/sessionstore"
	"github.com/dmitrymomot/fundkit/pkg/validator"
	"github.com/dmitrymomot/fundkit/svc/auth"
)

var (
	ada          = fundapi.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}
	unauthorized = &apiclient.HTTPStatusError{Method: http.MethodGet, Path: "/users/me", Code: http.StatusUnauthorized, Message: "Token is not valid"}
	connRefused  = &apiclient.NetworkError{Method: http.MethodGet, Path: "/users/me", Err: errors.New("connection refused")}
)

type fixture struct {
	api     *mockBackend
	client  *apiclient.Client
	backend *sessionstore.MemoryBackend
	store   *sessionstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, err := apiclient.New("http://backend.test/api")
	require.NoError(t, err)
	backend := sessionstore.NewMemoryBackend()
	return &fixture{
		api:     &mockBackend{},
		client:  client,
		backend: backend,
		store:   sessionstore.New(backend),
	}
}

func (f *fixture) manager(t *testing.T, opts ...auth.Option) *auth.Manager {
	t.Helper()
	m := auth.NewManager(context.Background(), f.api, f.client, f.store, opts...)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func (f *fixture) persisted(t *testing.T) string {
	t.Helper()
	s, ok := f.store.Load(context.Background())
	if !ok {
		return ""
	}
	return s.Token
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestBootstrap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("no persisted token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		m := f.manager(t)

		assert.Equal(t, auth.StatusUnauthenticated, m.Snapshot().Status)
		require.NoError(t, m.Bootstrap(ctx))
		assert.Equal(t, auth.StatusUnauthenticated, m.Snapshot().Status)
		assert.Nil(t, m.Snapshot().Err)
		f.api.AssertNotCalled(t, "Me", mock.Anything)
	})

	t.Run("confirmed token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.store.Save(ctx, "tok-T"))
		f.api.On("Me", mock.Anything).Return(ada, nil).Once()

		m := f.manager(t)
		s := m.Snapshot()
		assert.Equal(t, auth.StatusLoading, s.Status)
		assert.Equal(t, "tok-T", s.Token)
		assert.Nil(t, s.Identity)
		assert.Equal(t, "tok-T", f.client.Token())

		require.NoError(t, m.Bootstrap(ctx))
		s = m.Snapshot()
		assert.True(t, s.IsAuthenticated())
		assert.Equal(t, "u1", s.UserID())
		f.api.AssertExpectations(t)
	})

	t.Run("rejected token is discarded everywhere", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.store.Save(ctx, "tok-T"))
		f.api.On("Me", mock.Anything).Return(fundapi.User{}, unauthorized).Once()

		m := f.manager(t)
		err := m.Bootstrap(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrAuth)

		s := m.Snapshot()
		assert.Equal(t, auth.StatusUnauthenticated, s.Status)
		require.NotNil(t, s.Err)
		assert.ErrorIs(t, s.Err, auth.ErrAuth)
		assert.Empty(t, s.Token)
		assert.Empty(t, f.persisted(t))
		assert.Empty(t, f.backend.Keys())
		assert.Empty(t, f.client.Token())
	})

	t.Run("expired jwt skips the network", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.store.Save(ctx, signedToken(t, time.Now().Add(-time.Hour))))

		m := f.manager(t)
		err := m.Bootstrap(ctx)
		assert.ErrorIs(t, err, auth.ErrAuth)
		assert.ErrorIs(t, err, auth.ErrTokenExpired)
		assert.Equal(t, auth.StatusUnauthenticated, m.Snapshot().Status)
		f.api.AssertNotCalled(t, "Me", mock.Anything)
	})

	t.Run("valid jwt exposes expiry", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		require.NoError(t, f.store.Save(ctx, signedToken(t, exp)))
		f.api.On("Me", mock.Anything).Return(ada, nil).Once()

		m := f.manager(t)
		require.NoError(t, m.Bootstrap(ctx))
		assert.True(t, m.Snapshot().ExpiresAt.Equal(exp))
	})

	t.Run("cancelled context keeps the token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.store.Save(ctx, "tok-T"))
		cctx, cancel := context.WithCancel(ctx)
		f.api.On("Me", mock.Anything).Run(func(mock.Arguments) { cancel() }).
			Return(fundapi.User{}, &apiclient.NetworkError{Err: context.Canceled}).Once()

		m := f.manager(t)
		err := m.Bootstrap(cctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, auth.StatusLoading, m.Snapshot().Status)
		assert.Equal(t, "tok-T", f.persisted(t))
	})
}

func TestBootstrap_PicksUpTokenSavedLater(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("signed out manager reads the store again", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		m := f.manager(t)
		require.NoError(t, m.Bootstrap(ctx))
		require.Equal(t, auth.StatusUnauthenticated, m.Snapshot().Status)

		// Another process logs in against the same store.
		require.NoError(t, f.store.Save(ctx, "tok-T"))
		f.api.On("Me", mock.Anything).Return(ada, nil).Once()

		require.NoError(t, m.Bootstrap(ctx))
		snap := m.Snapshot()
		assert.True(t, snap.IsAuthenticated())
		assert.Equal(t, ada.ID, snap.Identity.ID)
		assert.Equal(t, "tok-T", f.client.Token())
	})

	t.Run("rejected token is not picked up again", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		m := f.manager(t)
		require.NoError(t, f.store.Save(ctx, "tok-T"))
		f.api.On("Me", mock.Anything).Return(fundapi.User{}, unauthorized).Once()

		assert.ErrorIs(t, m.Bootstrap(ctx), auth.ErrAuth)
		require.NoError(t, m.Bootstrap(ctx))
		assert.Equal(t, auth.StatusUnauthenticated, m.Snapshot().Status)
		f.api.AssertNumberOfCalls(t, "Me", 1)
	})
}

func TestBootstrap_IdentityRetry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("network errors are retried", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.store.Save(ctx, "tok-T"))
		f.api.On("Me", mock.Anything).Return(fundapi.User{}, connRefused).Twice()
		f.api.On("Me", mock.Anything).Return(ada, nil).Once()

		m := f.manager(t, auth.WithIdentityRetry(2, retry.Fixed(time.Millisecond)))
		require.NoError(t, m.Bootstrap(ctx))
		assert.True(t, m.Snapshot().IsAuthenticated())
		f.api.AssertNumberOfCalls(t, "Me", 3)
	})

	t.Run("status errors are not retried", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.store.Save(ctx, "tok-T"))
		f.api.On("Me", mock.Anything).Return(fundapi.User{}, unauthorized).Once()

		m := f.manager(t, auth.WithIdentityRetry(3, retry.Fixed(time.Millisecond)))
		assert.ErrorIs(t, m.Bootstrap(ctx), auth.ErrAuth)
		f.api.AssertNumberOfCalls(t, "Me", 1)
	})

	t.Run("exhausted retries classify as network", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.store.Save(ctx, "tok-T"))
		f.api.On("Me", mock.Anything).Return(fundapi.User{}, connRefused)

		m := f.manager(t, auth.WithIdentityRetry(1, retry.Fixed(time.Millisecond)))
		err := m.Bootstrap(ctx)
		assert.ErrorIs(t, err, auth.ErrAuth)
		assert.ErrorIs(t, err, auth.ErrNetwork)
		f.api.AssertNumberOfCalls(t, "Me", 2)
	})
}

func TestLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	creds := fundapi.Credentials{Email: "ada@example.com", Password: "secret"}

	t.Run("success persists and survives restart", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.api.On("Login", mock.Anything, creds).Return(fundapi.AuthResult{Token: "tok-1", User: fundapi.User{ID: "u1"}}, nil).Once()
		f.api.On("Me", mock.Anything).Return(ada, nil)

		m := f.manager(t)
		require.NoError(t, m.Login(ctx, " ada@example.com ", "secret"))

		s := m.Snapshot()
		assert.True(t, s.IsAuthenticated())
		assert.Equal(t, "Ada", s.Identity.Name, "identity refreshed by follow-up load")
		assert.Equal(t, "tok-1", f.persisted(t))
		assert.Equal(t, "tok-1", f.client.Token())

		restarted := f.manager(t)
		require.NoError(t, restarted.Bootstrap(ctx))
		assert.Equal(t, s.Identity, restarted.Snapshot().Identity)
		f.api.AssertNumberOfCalls(t, "Me", 2)
	})

	t.Run("backend message is surfaced", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.api.On("Login", mock.Anything, creds).Return(fundapi.AuthResult{},
			&apiclient.HTTPStatusError{Code: http.StatusBadRequest, Message: "Invalid credentials"}).Once()

		m := f.manager(t)
		err := m.Login(ctx, creds.Email, creds.Password)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrLoginFailed)
		assert.Equal(t, "Invalid credentials", err.Error())

		s := m.Snapshot()
		assert.Equal(t, auth.StatusUnauthenticated, s.Status)
		require.NotNil(t, s.Err)
		assert.Equal(t, "Invalid credentials", s.Err.Message)
		assert.Empty(t, f.persisted(t))
		f.api.AssertNotCalled(t, "Me", mock.Anything)
	})

	t.Run("network failure uses default message", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.api.On("Login", mock.Anything, creds).Return(fundapi.AuthResult{}, connRefused).Once()

		m := f.manager(t)
		err := m.Login(ctx, creds.Email, creds.Password)
		assert.ErrorIs(t, err, auth.ErrLoginFailed)
		assert.ErrorIs(t, err, auth.ErrNetwork)
		assert.Equal(t, "Login failed", err.Error())
	})

	t.Run("missing token is a failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.api.On("Login", mock.Anything, creds).Return(fundapi.AuthResult{User: ada}, nil).Once()

		m := f.manager(t)
		assert.ErrorIs(t, m.Login(ctx, creds.Email, creds.Password), auth.ErrLoginFailed)
		assert.False(t, m.Snapshot().IsAuthenticated())
	})

	t.Run("invalid input makes no call", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		m := f.manager(t)

		err := m.Login(ctx, "not-an-email", "")
		require.Error(t, err)
		ve := validator.ExtractValidationErrors(err)
		assert.True(t, ve.Has("email"))
		assert.True(t, ve.Has("password"))
		assert.Equal(t, uint64(0), m.Snapshot().Version)
		f.api.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
	})

	t.Run("failed follow-up load invalidates", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.api.On("Login", mock.Anything, creds).Return(fundapi.AuthResult{Token: "tok-1", User: ada}, nil).Once()
		f.api.On("Me", mock.Anything).Return(fundapi.User{}, unauthorized).Once()

		m := f.manager(t)
		assert.ErrorIs(t, m.Login(ctx, creds.Email, creds.Password), auth.ErrAuth)
		assert.Equal(t, auth.StatusUnauthenticated, m.Snapshot().Status)
		assert.Empty(t, f.persisted(t))
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("old token is gone", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.api.On("Login", mock.Anything, mock.Anything).Return(fundapi.AuthResult{Token: "tok-1", User: ada}, nil).Once()
		f.api.On("Me", mock.Anything).Return(ada, nil).Once()

		m := f.manager(t)
		require.NoError(t, m.Login(ctx, "ada@example.com", "secret"))
		m.Logout(ctx)

		s := m.Snapshot()
		assert.Equal(t, auth.StatusUnauthenticated, s.Status)
		assert.Empty(t, s.Token)
		assert.Nil(t, s.Identity)
		assert.Nil(t, s.Err)
		assert.Empty(t, f.client.Token())
		assert.Empty(t, f.backend.Keys())

		m.Logout(ctx)
		assert.Equal(t, auth.StatusUnauthenticated, m.Snapshot().Status)
	})

	t.Run("late identity response is dropped", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.store.Save(ctx, "tok-T"))

		started := make(chan struct{})
		release := make(chan struct{})
		f.api.On("Me", mock.Anything).Run(func(mock.Arguments) {
			close(started)
			<-release
		}).Return(ada, nil).Once()

		m := f.manager(t)
		done := make(chan error, 1)
		go func() { done <- m.Bootstrap(ctx) }()

		<-started
		m.Logout(ctx)
		close(release)

		assert.ErrorIs(t, <-done, auth.ErrSessionChanged)
		s := m.Snapshot()
		assert.Equal(t, auth.StatusUnauthenticated, s.Status)
		assert.Nil(t, s.Identity)
		assert.Empty(t, f.client.Token())
		assert.Empty(t, f.persisted(t))
	})

	t.Run("late login response is dropped", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		started := make(chan struct{})
		release := make(chan struct{})
		f.api.On("Login", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			close(started)
			<-release
		}).Return(fundapi.AuthResult{Token: "tok-1", User: ada}, nil).Once()

		m := f.manager(t)
		done := make(chan error, 1)
		go func() { done <- m.Login(ctx, "ada@example.com", "secret") }()

		<-started
		m.Logout(ctx)
		close(release)

		assert.ErrorIs(t, <-done, auth.ErrSessionChanged)
		assert.False(t, m.Snapshot().IsAuthenticated())
		assert.Empty(t, f.client.Token())
		assert.Empty(t, f.persisted(t))
	})
}

func TestRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := fundapi.Registration{Name: "Ada", Email: "ada@example.com", Password: "secret1"}

	t.Run("success skips identity reload", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.api.On("Register", mock.Anything, reg).Return(fundapi.AuthResult{Token: "tok-r", User: ada}, nil).Once()

		m := f.manager(t)
		require.NoError(t, m.Register(ctx, auth.RegisterForm{Name: "Ada", Email: "ada@example.com", Password: "secret1", ConfirmPassword: "secret1"}))
		assert.True(t, m.Snapshot().IsAuthenticated())
		assert.Equal(t, "tok-r", f.persisted(t))
		f.api.AssertNotCalled(t, "Me", mock.Anything)
	})

	t.Run("failure uses default message", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.api.On("Register", mock.Anything, reg).Return(fundapi.AuthResult{},
			&apiclient.HTTPStatusError{Code: http.StatusInternalServerError}).Once()

		m := f.manager(t)
		err := m.Register(ctx, auth.RegisterForm{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
		assert.ErrorIs(t, err, auth.ErrRegisterFailed)
		assert.Equal(t, "Registration failed", m.Snapshot().Err.Message)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		m := f.manager(t)

		err := m.Register(ctx, auth.RegisterForm{Name: "", Email: "ada@example.com", Password: "12345", ConfirmPassword: "54321"})
		ve := validator.ExtractValidationErrors(err)
		require.NotNil(t, ve)
		assert.True(t, ve.Has("name"))
		assert.True(t, ve.Has("password"))
		assert.Equal(t, []string{"Passwords do not match"}, ve.Get("password2"))
		f.api.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})
}

func TestClearErrorAndSubscribe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Save(ctx, "tok-T"))

	release := make(chan struct{})
	f.api.On("Me", mock.Anything).Run(func(mock.Arguments) { <-release }).Return(fundapi.User{}, unauthorized).Once()

	reg := prometheus.NewRegistry()
	metrics := auth.NewMetrics(reg)
	m := f.manager(t, auth.WithMetrics(metrics))

	ready := make(chan auth.Snapshot, 1)
	go func() {
		s, err := m.WaitReady(ctx)
		assert.NoError(t, err)
		ready <- s
	}()

	go func() { _ = m.Bootstrap(ctx) }()

	select {
	case <-ready:
		t.Fatal("WaitReady returned while loading")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	s := <-ready
	assert.Equal(t, auth.StatusUnauthenticated, s.Status)
	require.NotNil(t, s.Err)

	m.ClearError()
	assert.Nil(t, m.Snapshot().Err)
	version := m.Snapshot().Version
	m.ClearError()
	assert.Equal(t, version, m.Snapshot().Version)

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "fundkit_session_identity_checks_total"))

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	got, err := m.WaitReady(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusUnauthenticated, got.Status)
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	_, ok := auth.SnapshotFromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, auth.UserFromContext(context.Background()))

	u := ada
	ctx := auth.WithSnapshot(context.Background(), auth.Snapshot{Status: auth.StatusAuthenticated, Token: "t", Identity: &u})
	got := auth.UserFromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)
	got.Name = "changed"
	assert.Equal(t, "Ada", auth.UserFromContext(ctx).Name)
}
