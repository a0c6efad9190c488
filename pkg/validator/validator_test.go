package validator_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fundkit/pkg/validator"
)

func TestApply(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validator.Apply(
		validator.RequiredString("name", "Ada"),
		validator.ValidEmail("email", "ada@example.com"),
	))

	err := validator.Apply(
		validator.RequiredString("name", "  "),
		validator.ValidEmail("email", "nope"),
		validator.MinLenString("password", "abc", 6),
		validator.MinLenString("name", "", 1),
	)
	require.Error(t, err)
	assert.True(t, validator.IsValidationError(err))

	ve := validator.ExtractValidationErrors(fmt.Errorf("wrapped: %w", err))
	require.Len(t, ve, 4)
	assert.Equal(t, []string{"name", "email", "password"}, ve.Fields())
	assert.True(t, ve.Has("password"))
	assert.False(t, ve.Has("amount"))
	assert.Equal(t, []string{"must be at least 6 characters long"}, ve.Get("password"))
	assert.Contains(t, err.Error(), "email: must be a valid email address")

	assert.Nil(t, validator.ExtractValidationErrors(errors.New("plain")))
	assert.False(t, validator.IsValidationError(nil))
}

func TestValidEmail(t *testing.T) {
	t.Parallel()
	valid := []string{"a@b.co", "first.last@sub.example.org"}
	invalid := []string{"", "plain", "a@b", "a@.com", "a@b..com", "Ada <ada@example.com>", "@example.com"}
	for _, v := range valid {
		assert.NoError(t, validator.Apply(validator.ValidEmail("email", v)), v)
	}
	for _, v := range invalid {
		assert.Error(t, validator.Apply(validator.ValidEmail("email", v)), v)
	}
}

func TestStringRules(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validator.Apply(validator.EqualString("password2", "secret", "secret", "Passwords do not match")))
	err := validator.Apply(validator.EqualString("password2", "secret", "other", "Passwords do not match"))
	assert.Equal(t, []string{"Passwords do not match"}, validator.ExtractValidationErrors(err).Get("password2"))

	assert.NoError(t, validator.Apply(validator.MaxLenString("title", "héllo", 5)))
	assert.Error(t, validator.Apply(validator.MaxLenString("title", "héllo!", 5)))

	assert.NoError(t, validator.Apply(validator.OptionalURL("imageUrl", "")))
	assert.NoError(t, validator.Apply(validator.OptionalURL("imageUrl", "https://cdn.example.com/a.png")))
	assert.Error(t, validator.Apply(validator.OptionalURL("imageUrl", "ftp://x")))
	assert.Error(t, validator.Apply(validator.OptionalURL("imageUrl", "/relative")))
}

func TestValueRules(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validator.Apply(validator.FutureDate("endDate", time.Now().Add(time.Hour))))
	assert.Error(t, validator.Apply(validator.FutureDate("endDate", time.Now().Add(-time.Hour))))

	assert.NoError(t, validator.Apply(validator.PositiveAmount("amount", decimal.RequireFromString("0.01"))))
	assert.Error(t, validator.Apply(validator.PositiveAmount("amount", decimal.Zero)))
	assert.Error(t, validator.Apply(validator.PositiveAmount("amount", decimal.NewFromInt(-5))))

	assert.NoError(t, validator.Apply(validator.MaxDecimalPlaces("amount", decimal.RequireFromString("10.25"), 2)))
	assert.Error(t, validator.Apply(validator.MaxDecimalPlaces("amount", decimal.RequireFromString("10.255"), 2)))
}
