package environment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/fundkit/pkg/environment"
)

func TestParse(t *testing.T) {
	t.Parallel()
	cases := map[string]environment.Environment{
		"prod":        environment.Production,
		"Production":  environment.Production,
		"stage":       environment.Staging,
		" staging ":   environment.Staging,
		"development": environment.Development,
		"":            environment.Development,
		"whatever":    environment.Development,
	}
	for in, want := range cases {
		assert.Equal(t, want, environment.Parse(in), in)
	}
}

func TestContext(t *testing.T) {
	t.Parallel()
	ctx := environment.WithContext(context.Background(), environment.Production)
	assert.Equal(t, environment.Production, environment.FromContext(ctx))
	assert.True(t, environment.IsProduction(ctx))
	assert.Empty(t, environment.FromContext(context.Background()))

	attr, ok := environment.LoggerExtractor()(ctx)
	assert.True(t, ok)
	assert.Equal(t, "production", attr.Value.String())

	_, ok = environment.LoggerExtractor()(context.Background())
	assert.False(t, ok)
}
