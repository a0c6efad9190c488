// Package sessionstore persists the authentication token across restarts.
//
// Two entries are written under a common prefix: the raw token under
// "token" and a versioned JSON document under "auth-state". Reads prefer the
// raw token and fall back to the document. Missing, malformed, or newer-schema
// entries are treated as no session at all.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/fundkit/pkg/logger"
)

const (
	TokenKey     = "token"
	AuthStateKey = "auth-state"

	// SchemaVersion is written into every auth-state document.
	SchemaVersion = 1
)

// PersistedSession is the durable part of a session. The token is tentative
// until the identity behind it has been confirmed.
type PersistedSession struct {
	Token         string
	IsLoggedIn    bool
	SchemaVersion int
}

type authStateDoc struct {
	State struct {
		IsLoggedIn bool   `json:"isLoggedIn"`
		AuthToken  string `json:"authToken,omitempty"`
	} `json:"state"`
	Version int `json:"version"`
}

// Store reads and writes the persisted session through a Backend.
type Store struct {
	backend Backend
	prefix  string
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces both keys, e.g. per user profile or per API host.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("sessionstore"))
	return s
}

// Load returns the persisted session and whether one was found.
// It never fails: unreadable state is logged and reported as absent.
func (s *Store) Load(ctx context.Context) (PersistedSession, bool) {
	if raw, err := s.backend.Get(ctx, s.key(TokenKey)); err == nil {
		if tok := strings.TrimSpace(string(raw)); tok != "" {
			return PersistedSession{Token: tok, IsLoggedIn: true, SchemaVersion: SchemaVersion}, true
		}
	} else if !errors.Is(err, ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to read token entry", logger.Error(err))
	}

	raw, err := s.backend.Get(ctx, s.key(AuthStateKey))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to read auth state entry", logger.Error(err))
		}
		return PersistedSession{}, false
	}

	var doc authStateDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.DebugContext(ctx, "ignoring malformed auth state", logger.Error(err))
		return PersistedSession{}, false
	}
	if doc.Version > SchemaVersion {
		s.logger.DebugContext(ctx, "ignoring auth state from newer schema", slog.Int("version", doc.Version))
		return PersistedSession{}, false
	}
	tok := strings.TrimSpace(doc.State.AuthToken)
	if !doc.State.IsLoggedIn || tok == "" {
		return PersistedSession{}, false
	}
	return PersistedSession{Token: tok, IsLoggedIn: true, SchemaVersion: doc.Version}, true
}

// Save writes both entries in a single atomic backend call.
func (s *Store) Save(ctx context.Context, token string) error {
	var doc authStateDoc
	doc.State.IsLoggedIn = true
	doc.State.AuthToken = token
	doc.Version = SchemaVersion

	blob, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, map[string][]byte{
		s.key(TokenKey):     []byte(token),
		s.key(AuthStateKey): blob,
	})
}

// Clear removes both entries in a single atomic backend call.
func (s *Store) Clear(ctx context.Context) error {
	return s.backend.Delete(ctx, s.key(TokenKey), s.key(AuthStateKey))
}

func (s *Store) key(name string) string {
	return s.prefix + name
}
