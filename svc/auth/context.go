package auth

import (
	"context"

	"github.com/dmitrymomot/fundkit/pkg/fundapi"
)

type snapshotContextKey struct{}

// WithSnapshot stores the session snapshot a request was authorized with.
func WithSnapshot(ctx context.Context, s Snapshot) context.Context {
	return context.WithValue(ctx, snapshotContextKey{}, s)
}

// SnapshotFromContext returns the stored snapshot and whether one was present.
func SnapshotFromContext(ctx context.Context) (Snapshot, bool) {
	s, ok := ctx.Value(snapshotContextKey{}).(Snapshot)
	return s, ok
}

// UserFromContext returns the authorized identity or nil.
func UserFromContext(ctx context.Context) *fundapi.User {
	s, ok := SnapshotFromContext(ctx)
	if !ok {
		return nil
	}
	return cloneUser(s.Identity)
}
