package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fundkit/pkg/environment"
	"github.com/dmitrymomot/fundkit/pkg/logger"
)

type ctxKey struct{}

func TestNew_JSONWithExtractors(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithFormat(logger.FormatJSON),
		logger.WithAttr(slog.String("app", "fundkit")),
		logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
			v, ok := ctx.Value(ctxKey{}).(string)
			return slog.String("trace", v), ok
		}),
	)

	ctx := context.WithValue(context.Background(), ctxKey{}, "abc")
	log.InfoContext(ctx, "hello", logger.ProjectID("p1"), logger.Amount(decimal.NewFromInt(50)))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "fundkit", rec["app"])
	assert.Equal(t, "abc", rec["trace"])
	assert.Equal(t, "p1", rec["project_id"])
	assert.Equal(t, "50", rec["amount"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))
	log.Info("dropped")
	assert.Zero(t, buf.Len())
	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_TextEnvironment(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithEnvironment(environment.Development, "fundkit"),
		logger.WithOutput(&buf),
		logger.WithNoColor(),
	)
	log.Debug("visible in development")
	out := buf.String()
	assert.Contains(t, out, "visible in development")
	assert.Contains(t, out, "service=fundkit")
}

func TestWithFormat_PanicsOnUnknown(t *testing.T) {
	assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("debug"))
	assert.Equal(t, slog.LevelError, logger.ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("nonsense"))
}

func TestAttrs(t *testing.T) {
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
	assert.True(t, logger.Errors(nil, nil).Equal(slog.Attr{}))
	assert.True(t, logger.UserID("").Equal(slog.Attr{}))
	assert.True(t, logger.CheckoutSessionID("").Equal(slog.Attr{}))

	err := errors.New("boom")
	assert.Equal(t, err, logger.Error(err).Value.Any())
	g := logger.Errors(err, nil, err).Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "2", g[1].Key)
	assert.Equal(t, "state", logger.State("loading").Key)
	assert.Equal(t, "cs_1", logger.CheckoutSessionID("cs_1").Value.String())
}
