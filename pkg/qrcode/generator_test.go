package qrcode_test

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fundkit/pkg/qrcode"
)

const checkoutURL = "https://checkout.example.com/pay/cs_test_123"

func TestPNG(t *testing.T) {
	t.Parallel()

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		for _, content := range []string{"", "   \t\n"} {
			out, err := qrcode.PNG(content, 128)
			assert.ErrorIs(t, err, qrcode.ErrEmptyContent)
			assert.Nil(t, out)
		}
	})

	t.Run("valid image", func(t *testing.T) {
		t.Parallel()
		out, err := qrcode.PNG(checkoutURL, 200)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 200, img.Bounds().Dx())
		assert.Equal(t, 200, img.Bounds().Dy())
	})

	t.Run("default size", func(t *testing.T) {
		t.Parallel()
		out, err := qrcode.PNG(checkoutURL, 0)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 256, img.Bounds().Dx())
	})
}

func TestDataURI(t *testing.T) {
	t.Parallel()

	uri, err := qrcode.DataURI(checkoutURL, 128)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	assert.NoError(t, err)

	_, err = qrcode.DataURI("", 128)
	assert.ErrorIs(t, err, qrcode.ErrEmptyContent)
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	out, err := qrcode.Terminal(checkoutURL, false)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Greater(t, len(lines), 10)

	inverted, err := qrcode.Terminal(checkoutURL, true)
	require.NoError(t, err)
	assert.NotEqual(t, out, inverted)

	_, err = qrcode.Terminal(" ", false)
	assert.ErrorIs(t, err, qrcode.ErrEmptyContent)
}
