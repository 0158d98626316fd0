package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"sigil/internal/avatars"
	"sigil/internal/config"
	"sigil/internal/render"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SIGIL_ENV", config.Test)
	config.Reset()
	t.Cleanup(config.Reset)
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd("1.2.3")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestSeedCommand(t *testing.T) {
	setupEnv(t)

	t.Run("prints the seed of each argument", func(t *testing.T) {
		out, err := runCLI(t, "", "seed", "alice", "")
		require.NoError(t, err)
		assert.Equal(t, "92903040\talice\n0\t\n", out)
	})

	t.Run("reads identities from stdin", func(t *testing.T) {
		out, err := runCLI(t, "alice\r\n\n  \nalice\n", "seed")
		require.NoError(t, err)
		assert.Equal(t, "92903040\talice\n92903040\talice\n", out)
	})

	t.Run("honours the scheme flag", func(t *testing.T) {
		out, err := runCLI(t, "", "seed", "--scheme", "ecmascript", "hello world, this is a long identity")
		require.NoError(t, err)
		assert.Equal(t, "3480202249\thello world, this is a long identity\n", out)
	})

	t.Run("appends aliases on request", func(t *testing.T) {
		out, err := runCLI(t, "", "seed", "--alias", "alice")
		require.NoError(t, err)
		assert.Equal(t, "92903040\talice\tAmber Magpie\n", out)
	})

	t.Run("fails without identities", func(t *testing.T) {
		_, err := runCLI(t, "\n\n", "seed")
		assert.ErrorIs(t, err, errNoIdentities)
	})

	t.Run("rejects an unknown scheme", func(t *testing.T) {
		_, err := runCLI(t, "", "seed", "--scheme", "md5", "alice")
		assert.Error(t, err)
	})
}

func TestDescribeCommand(t *testing.T) {
	setupEnv(t)

	t.Run("prints json by default", func(t *testing.T) {
		out, err := runCLI(t, "", "describe", "alice")
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.EqualValues(t, 92903040, got["seed"])
		assert.EqualValues(t, 100, got["canvas"])
		assert.Equal(t, "int32", got["hash_scheme"])
		assert.Len(t, got["primitives"], 5)
	})

	t.Run("prints yaml in paint order", func(t *testing.T) {
		out, err := runCLI(t, "", "describe", "alice", "--format", "yaml")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "seed: 92903040\n"), out)
		assert.NotContains(t, out, "{")

		var got struct {
			Seed       int64 `yaml:"seed"`
			Primitives []struct {
				Kind string `yaml:"kind"`
				Fill any    `yaml:"fill"`
			} `yaml:"primitives"`
		}
		require.NoError(t, yaml.Unmarshal([]byte(out), &got))
		assert.Equal(t, int64(92903040), got.Seed)
		require.Len(t, got.Primitives, 5)
		assert.Equal(t, "background", got.Primitives[0].Kind)
		assert.Equal(t, "#111", got.Primitives[0].Fill)
		assert.Equal(t, "circle", got.Primitives[1].Kind)
	})

	t.Run("rejects unknown formats", func(t *testing.T) {
		_, err := runCLI(t, "", "describe", "alice", "--format", "xml")
		assert.ErrorContains(t, err, "unknown format")
	})
}

func TestRenderCommand(t *testing.T) {
	setupEnv(t)

	t.Run("writes the svg to stdout when it is not a terminal", func(t *testing.T) {
		out, err := runCLI(t, "", "render", "alice")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "<svg"), out)
		assert.Contains(t, out, `width="64" height="64"`)
	})

	t.Run("writes the svg to a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "alice.svg")
		out, err := runCLI(t, "", "render", "alice", "--size", "128", "--out", path)
		require.NoError(t, err)
		assert.Empty(t, out)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `width="128" height="128"`)
	})

	t.Run("rejects sizes over the maximum", func(t *testing.T) {
		_, err := runCLI(t, "", "render", "alice", "--size", "5000")
		assert.ErrorIs(t, err, render.ErrInvalidSize)
	})
}

func TestPaletteCommand(t *testing.T) {
	setupEnv(t)
	dbPath := filepath.Join(t.TempDir(), "sigil.db")

	t.Run("lists the configured palette", func(t *testing.T) {
		out, err := runCLI(t, "", "palette")
		require.NoError(t, err)
		assert.Contains(t, out, "Emerald")
		assert.Contains(t, out, "#10B981")
		assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 8)
	})

	t.Run("shows unnamed entries from the flag", func(t *testing.T) {
		out, err := runCLI(t, "", "palette", "--palette", "#000000,ink=#111827")
		require.NoError(t, err)
		assert.Contains(t, out, "-")
		assert.Contains(t, out, "Ink")
	})

	t.Run("stores and resets an override", func(t *testing.T) {
		out, err := runCLI(t, "", "--database", dbPath, "palette", "set", "ink=#111827,sky=#0EA5E9")
		require.NoError(t, err)
		assert.Contains(t, out, "2 colors")

		out, err = runCLI(t, "", "--database", dbPath, "palette", "--stored")
		require.NoError(t, err)
		assert.Contains(t, out, "Sky")

		_, err = runCLI(t, "", "--database", dbPath, "palette", "reset")
		require.NoError(t, err)

		out, err = runCLI(t, "", "--database", dbPath, "palette", "--stored")
		require.NoError(t, err)
		assert.Contains(t, out, "No stored palette override")
	})

	t.Run("rejects a malformed override", func(t *testing.T) {
		_, err := runCLI(t, "", "--database", dbPath, "palette", "set", "red")
		assert.Error(t, err)
	})
}

func TestDatabaseCommands(t *testing.T) {
	setupEnv(t)
	dbPath := filepath.Join(t.TempDir(), "sigil.db")

	t.Run("migrate creates the schema", func(t *testing.T) {
		out, err := runCLI(t, "", "--database", dbPath, "migrate")
		require.NoError(t, err)
		assert.Contains(t, out, dbPath)
		assert.FileExists(t, dbPath)
	})

	t.Run("prune removes stale avatars and stats reflects it", func(t *testing.T) {
		db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
		require.NoError(t, err)
		now := time.Now().UTC()
		for identity, lastServed := range map[string]time.Time{
			"stale": now.AddDate(0, 0, -40),
			"fresh": now.Add(-time.Hour),
		} {
			require.NoError(t, db.Create(&avatars.Avatar{
				IdentityKey:   avatars.IdentityKey(identity),
				Seed:          1,
				HashScheme:    "int32",
				ServedCount:   3,
				FirstServedAt: lastServed,
				LastServedAt:  lastServed,
			}).Error)
		}
		sqlDB, err := db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		out, err := runCLI(t, "", "--database", dbPath, "prune", "--days", "30")
		require.NoError(t, err)
		assert.Contains(t, out, "Pruned 1 avatars")

		out, err = runCLI(t, "", "--database", dbPath, "stats")
		require.NoError(t, err)
		var got statsOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, int64(1), got.Ledger.Avatars)
		assert.Equal(t, int64(3), got.Ledger.Served)
		assert.NotEmpty(t, got.Settings)
	})

	t.Run("prune refuses a non-positive window", func(t *testing.T) {
		_, err := runCLI(t, "", "--database", dbPath, "prune", "--days", "0")
		assert.Error(t, err)
	})
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "sigilctl 1.2.3\n", out)
}
