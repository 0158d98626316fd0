package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigil/app"
)

func TestCompose(t *testing.T) {
	t.Run("matches the server fingerprint", func(t *testing.T) {
		d := app.Compose("alice")
		assert.Equal(t, int64(92903040), d.Seed)
		assert.Equal(t, app.HashInt32, d.Scheme)
		assert.Equal(t, app.DeriveSeed("alice"), d.Seed)
	})

	t.Run("custom composers use their palette", func(t *testing.T) {
		opts := app.DefaultOptions()
		palette, err := app.ParsePalette("#000000")
		require.NoError(t, err)
		opts.Palette = palette

		c, err := app.NewComposer(opts)
		require.NoError(t, err)
		assert.Equal(t, "#000000", c.Compose("alice").Circle.Fill.Hex)
	})
}

func TestRenderSVG(t *testing.T) {
	t.Run("renders at the requested size", func(t *testing.T) {
		svg, err := app.RenderSVG("alice", 32)
		require.NoError(t, err)
		assert.Contains(t, string(svg), `width="32" height="32"`)
	})

	t.Run("rejects a zero size", func(t *testing.T) {
		_, err := app.RenderSVG("alice", 0)
		assert.Error(t, err)
	})
}
