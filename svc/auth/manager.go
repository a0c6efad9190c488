// Package auth owns the client-side session lifecycle: restoring a persisted
// token, confirming the identity behind it, login, registration and logout.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/fundkit/pkg/apiclient"
	"github.com/dmitrymomot/fundkit/pkg/broadcast"
	"github.com/dmitrymomot/fundkit/pkg/fundapi"
	"github.com/dmitrymomot/fundkit/pkg/logger"
	"github.com/dmitrymomot/fundkit/pkg/retry"
	"github.com/dmitrymomot/fundkit/pkg/sessionstore"
	"github.com/dmitrymomot/fundkit/pkg/validator"
)

// Backend is the subset of the API the manager calls.
type Backend interface {
	Login(ctx context.Context, in fundapi.Credentials) (fundapi.AuthResult, error)
	Register(ctx context.Context, in fundapi.Registration) (fundapi.AuthResult, error)
	Me(ctx context.Context) (fundapi.User, error)
}

// TokenHolder receives every token change. *apiclient.Client satisfies it.
type TokenHolder interface {
	SetToken(token string)
	ClearToken()
}

// Store persists the token. *sessionstore.Store satisfies it.
type Store interface {
	Load(ctx context.Context) (sessionstore.PersistedSession, bool)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// RegisterForm is the input to Register. ConfirmPassword is checked only when set.
type RegisterForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// Manager is the single owner of the session. All methods are safe for
// concurrent use. The mutex is never held across network calls; results are
// applied only if no newer login, registration or logout happened meanwhile
// and the token they were issued for is still current.
type Manager struct {
	mu    sync.Mutex
	state Snapshot
	// epoch increases on every logout and at the start of every login or
	// registration, invalidating older in-flight results.
	epoch uint64

	api     Backend
	client  TokenHolder
	store   Store
	changes *broadcast.MemoryBroadcaster[Snapshot]

	logger          *slog.Logger
	metrics         *Metrics
	identityRetries int
	backoff         retry.Backoff
	now             func() time.Time
}

// NewManager restores the persisted token, if any. With a token the manager
// starts in Loading and the token is attached to the client; call Bootstrap
// to confirm it. Without one it starts Unauthenticated.
func NewManager(ctx context.Context, api Backend, client TokenHolder, store Store, opts ...Option) *Manager {
	m := &Manager{
		api:     api,
		client:  client,
		store:   store,
		changes: broadcast.NewMemoryBroadcaster[Snapshot](),
		logger:  logger.Discard(),
		backoff: retry.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("session"))

	if persisted, ok := store.Load(ctx); ok {
		m.mu.Lock()
		m.restoreLocked(ctx, persisted.Token)
		m.mu.Unlock()
	} else {
		client.ClearToken()
	}
	return m
}

func (m *Manager) restoreLocked(ctx context.Context, token string) {
	m.client.SetToken(token)
	exp, _ := tokenExpiry(token)
	_ = m.applyLocked(ctx, change{event: EventTokenRestored, token: token, expiresAt: exp})
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe delivers every subsequent snapshot until ctx is cancelled.
// A slow subscriber skips intermediate snapshots but always sees the latest.
func (m *Manager) Subscribe(ctx context.Context) broadcast.Subscriber[Snapshot] {
	return m.changes.Subscribe(ctx)
}

// WaitReady blocks until the session has left Loading.
func (m *Manager) WaitReady(ctx context.Context) (Snapshot, error) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sub := m.Subscribe(subCtx)

	if s := m.Snapshot(); !s.IsLoading() {
		return s, nil
	}
	for {
		select {
		case <-ctx.Done():
			return m.Snapshot(), ctx.Err()
		case msg, ok := <-sub.Receive():
			if !ok {
				return m.Snapshot(), ctx.Err()
			}
			if !msg.Data.IsLoading() {
				return msg.Data, nil
			}
		}
	}
}

// Bootstrap confirms a restored token with the backend. A signed-out manager
// without a pending error first re-reads the store, picking up a token
// another process saved since startup. On failure the token is discarded
// everywhere and the session becomes Unauthenticated with an ErrAuth error.
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Status == StatusUnauthenticated && m.state.Err == nil {
		m.mu.Unlock()
		return m.reload(ctx)
	}
	if !m.state.IsLoading() || m.state.Token == "" {
		m.mu.Unlock()
		return nil
	}
	epoch, token := m.epoch, m.state.Token
	m.mu.Unlock()

	return m.confirmIdentity(ctx, epoch, token)
}

func (m *Manager) reload(ctx context.Context) error {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	persisted, ok := m.store.Load(ctx)
	if !ok {
		return nil
	}

	m.mu.Lock()
	if m.epoch != epoch || m.state.Status != StatusUnauthenticated {
		m.mu.Unlock()
		return nil
	}
	m.epoch++
	epoch = m.epoch
	m.restoreLocked(ctx, persisted.Token)
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "picked up a token saved elsewhere")
	return m.confirmIdentity(ctx, epoch, persisted.Token)
}

// Login authenticates with email and password, persists the token, then
// refreshes the identity from the backend.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if err := validator.Apply(
		validator.ValidEmail("email", email),
		validator.RequiredString("password", password),
	); err != nil {
		return err
	}

	epoch := m.begin()
	res, err := m.api.Login(ctx, fundapi.Credentials{Email: email, Password: password})

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.logger.DebugContext(ctx, "dropping superseded login response")
		return ErrSessionChanged
	}
	if err == nil && res.Token == "" {
		err = errors.New("login response carried no token")
	}
	if err != nil {
		failure := newError(ErrLoginFailed, "Login failed", err)
		m.discardTokenLocked(ctx)
		_ = m.applyLocked(ctx, change{event: EventLoginFailed, err: failure})
		m.mu.Unlock()
		m.logger.InfoContext(ctx, "login failed", logger.Error(err))
		return failure
	}
	m.adoptTokenLocked(ctx, res.Token)
	exp, _ := tokenExpiry(res.Token)
	_ = m.applyLocked(ctx, change{event: EventLoginSucceeded, token: res.Token, identity: userOrNil(res.User), expiresAt: exp})
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "logged in", logger.UserID(res.User.ID))
	return m.confirmIdentity(ctx, epoch, res.Token)
}

// Register creates an account and signs in with the returned token.
func (m *Manager) Register(ctx context.Context, form RegisterForm) error {
	form.Email = strings.TrimSpace(form.Email)
	rules := []validator.Rule{
		validator.RequiredString("name", form.Name),
		validator.ValidEmail("email", form.Email),
		validator.MinLenString("password", form.Password, 6),
	}
	if form.ConfirmPassword != "" {
		rules = append(rules, validator.EqualString("password2", form.ConfirmPassword, form.Password, "Passwords do not match"))
	}
	if err := validator.Apply(rules...); err != nil {
		return err
	}

	epoch := m.begin()
	res, err := m.api.Register(ctx, fundapi.Registration{
		Name:     strings.TrimSpace(form.Name),
		Email:    form.Email,
		Password: form.Password,
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		m.logger.DebugContext(ctx, "dropping superseded registration response")
		return ErrSessionChanged
	}
	if err == nil && res.Token == "" {
		err = errors.New("registration response carried no token")
	}
	if err != nil {
		failure := newError(ErrRegisterFailed, "Registration failed", err)
		m.discardTokenLocked(ctx)
		_ = m.applyLocked(ctx, change{event: EventRegisterFailed, err: failure})
		m.logger.InfoContext(ctx, "registration failed", logger.Error(err))
		return failure
	}
	m.adoptTokenLocked(ctx, res.Token)
	exp, _ := tokenExpiry(res.Token)
	_ = m.applyLocked(ctx, change{event: EventRegisterSucceeded, token: res.Token, identity: userOrNil(res.User), expiresAt: exp})
	m.logger.InfoContext(ctx, "registered", logger.UserID(res.User.ID))
	return nil
}

// Logout forgets the token everywhere. It never fails; storage errors are logged.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.discardTokenLocked(ctx)
	_ = m.applyLocked(ctx, change{event: EventLoggedOut})
	m.logger.InfoContext(ctx, "logged out")
}

// ClearError drops the last error without touching anything else.
func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Err == nil {
		return
	}
	_ = m.applyLocked(context.Background(), change{event: EventErrorCleared})
}

// Close ends all subscriptions.
func (m *Manager) Close() error {
	return m.changes.Close()
}

// begin starts a login or registration, superseding anything in flight.
func (m *Manager) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	return m.epoch
}

func (m *Manager) confirmIdentity(ctx context.Context, epoch uint64, token string) error {
	var (
		user fundapi.User
		err  error
	)
	if exp, ok := tokenExpiry(token); ok && !exp.After(m.now()) {
		err = ErrTokenExpired
	} else {
		err = retry.Do(ctx, m.identityRetries, m.backoff, apiclient.IsNetworkError, func(ctx context.Context) error {
			var callErr error
			user, callErr = m.api.Me(ctx)
			if callErr != nil && apiclient.IsNetworkError(callErr) {
				m.logger.DebugContext(ctx, "identity check hit a network error", logger.Error(callErr))
			}
			return callErr
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch || m.state.Token != token {
		m.logger.DebugContext(ctx, "dropping stale identity response")
		return ErrSessionChanged
	}
	// The caller gave up; the token is still unconfirmed, not invalid.
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		m.metrics.identityCheck("failed")
		failure := &Error{Kind: ErrAuth, Message: "Your session has expired. Please log in again.", Cause: err}
		m.discardTokenLocked(ctx)
		_ = m.applyLocked(ctx, change{event: EventIdentityFailed, err: failure})
		m.logger.InfoContext(ctx, "identity confirmation failed", logger.Error(err))
		return failure
	}
	m.metrics.identityCheck("confirmed")
	return m.applyLocked(ctx, change{event: EventIdentityLoaded, identity: &user})
}

// adoptTokenLocked mirrors a new token to the store and the client.
func (m *Manager) adoptTokenLocked(ctx context.Context, token string) {
	if err := m.store.Save(ctx, token); err != nil {
		m.logger.WarnContext(ctx, "failed to persist token", logger.Error(err))
	}
	m.client.SetToken(token)
}

// discardTokenLocked removes the token from the store and the client.
func (m *Manager) discardTokenLocked(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.WarnContext(ctx, "failed to clear persisted token", logger.Error(err))
	}
	m.client.ClearToken()
}

func (m *Manager) applyLocked(ctx context.Context, c change) error {
	next, err := reduce(m.state, c)
	if err != nil {
		m.logger.ErrorContext(ctx, "rejected session transition",
			logger.State(m.state.Status.String()), logger.Event(c.event.String()), logger.Error(err))
		return err
	}
	m.state = next
	m.metrics.transition(c.event, next.Status)
	m.logger.DebugContext(ctx, "session transition",
		logger.Event(c.event.String()), logger.State(next.Status.String()))
	_ = m.changes.Broadcast(ctx, broadcast.Message[Snapshot]{Data: next})
	return nil
}

func userOrNil(u fundapi.User) *fundapi.User {
	if u.ID == "" && u.Email == "" && u.Name == "" {
		return nil
	}
	return &u
}
