package avatars_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigil/internal/avatars"
	"sigil/internal/fingerprint"
	"sigil/internal/render"
	"sigil/internal/testsupport"
)

func TestIdentityKey(t *testing.T) {
	t.Run("is a stable 64 character hex digest", func(t *testing.T) {
		key := avatars.IdentityKey("alice")
		assert.Len(t, key, 64)
		assert.Equal(t, key, avatars.IdentityKey("alice"))
		assert.NotEqual(t, key, avatars.IdentityKey("Alice"))
		assert.NotContains(t, key, "alice")
	})
}

func TestServiceSVG(t *testing.T) {
	t.Run("renders the same document as the renderer", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		svc := testsupport.NewAvatarService(t, testsupport.TestConfig(t), dbManager.GetConnection())

		out, err := svc.SVG(context.Background(), "alice", 0)
		require.NoError(t, err)

		want, err := render.SVG(fingerprint.Compose("alice"), render.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, want, out)
	})

	t.Run("rejects sizes above the configured maximum", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		cfg := testsupport.TestConfig(t)
		cfg.AvatarMaxSize = 128
		svc := testsupport.NewAvatarService(t, cfg, dbManager.GetConnection())

		_, err := svc.SVG(context.Background(), "alice", 256)
		assert.ErrorIs(t, err, render.ErrInvalidSize)
	})

	t.Run("previews render the same bytes without recording", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		svc := testsupport.NewAvatarService(t, testsupport.TestConfig(t), dbManager.GetConnection())

		preview, err := svc.Preview(context.Background(), "alice", 64)
		require.NoError(t, err)
		assert.Zero(t, svc.Tracker().Pending())

		served, err := svc.SVG(context.Background(), "alice", 64)
		require.NoError(t, err)
		assert.Equal(t, served, preview)
		assert.Equal(t, 1, svc.Tracker().Pending())
	})

	t.Run("records every served avatar", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		svc := testsupport.NewAvatarService(t, testsupport.TestConfig(t), db)

		for i := 0; i < 3; i++ {
			_, err := svc.SVG(context.Background(), "alice", 64)
			require.NoError(t, err)
		}
		_, err := svc.SVG(context.Background(), "bob", 128)
		require.NoError(t, err)
		assert.Equal(t, 2, svc.Tracker().Pending())

		flushed, err := svc.Flush()
		require.NoError(t, err)
		assert.Equal(t, 2, flushed)
		assert.Zero(t, svc.Tracker().Pending())

		alice, err := avatars.Lookup(db, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(3), alice.ServedCount)
		assert.Equal(t, int64(92903040), alice.Seed)
		assert.Equal(t, "int32", alice.HashScheme)

		stats, err := svc.Stats()
		require.NoError(t, err)
		assert.Equal(t, avatars.Stats{Avatars: 2, Served: 4}, stats)
	})

	t.Run("uses the stored palette override", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		svc := testsupport.NewAvatarService(t, testsupport.TestConfig(t), dbManager.GetConnection())

		before, err := svc.SVG(context.Background(), "alice", 64)
		require.NoError(t, err)

		require.NoError(t, svc.SetPalette(fingerprint.Palette{{Hex: "#000000"}}))
		after, err := svc.SVG(context.Background(), "alice", 64)
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
		assert.Contains(t, string(after), `fill="#000000" opacity="0.2"`)

		require.NoError(t, svc.SetPalette(nil))
		reset, err := svc.SVG(context.Background(), "alice", 64)
		require.NoError(t, err)
		assert.Equal(t, before, reset)
	})
}

func TestServiceDescribe(t *testing.T) {
	t.Run("matches the package composer", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		svc := testsupport.NewAvatarService(t, testsupport.TestConfig(t), dbManager.GetConnection())

		d, err := svc.Describe("alice")
		require.NoError(t, err)
		assert.Equal(t, fingerprint.Compose("alice"), d)

		seed, scheme, err := svc.Seed("alice")
		require.NoError(t, err)
		assert.Equal(t, int64(92903040), seed)
		assert.Equal(t, fingerprint.HashInt32, scheme)
	})

	t.Run("follows the configured hash scheme", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		cfg := testsupport.TestConfig(t)
		cfg.AvatarHashScheme = string(fingerprint.HashECMAScript)
		svc := testsupport.NewAvatarService(t, cfg, dbManager.GetConnection())

		seed, scheme, err := svc.Seed("hello world, this is a long identity")
		require.NoError(t, err)
		assert.Equal(t, int64(3480202249), seed)
		assert.Equal(t, fingerprint.HashECMAScript, scheme)
	})
}

func TestComposeBatch(t *testing.T) {
	t.Run("keeps input order", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		svc := testsupport.NewAvatarService(t, testsupport.TestConfig(t), dbManager.GetConnection())

		identities := make([]string, 40)
		for i := range identities {
			identities[i] = fmt.Sprintf("user-%d@example.com", i)
		}

		got, err := svc.ComposeBatch(context.Background(), identities)
		require.NoError(t, err)
		require.Len(t, got, len(identities))
		for i, identity := range identities {
			assert.Equal(t, fingerprint.Compose(identity), got[i])
		}
	})

	t.Run("enforces the batch limit", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		cfg := testsupport.TestConfig(t)
		cfg.AvatarBatchLimit = 2
		svc := testsupport.NewAvatarService(t, cfg, dbManager.GetConnection())

		_, err := svc.ComposeBatch(context.Background(), []string{"a", "b", "c"})
		assert.ErrorIs(t, err, avatars.ErrBatchTooLarge)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		svc := testsupport.NewAvatarService(t, testsupport.TestConfig(t), dbManager.GetConnection())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.ComposeBatch(ctx, []string{"a", "b"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTracker(t *testing.T) {
	t.Run("merges repeated flushes into one row", func(t *testing.T) {
		dbManager, logger := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		tracker := avatars.NewTracker()

		tracker.Record("carol", 1, fingerprint.HashInt32)
		_, err := tracker.Flush(db, logger)
		require.NoError(t, err)

		tracker.Record("carol", 1, fingerprint.HashInt32)
		tracker.Record("carol", 1, fingerprint.HashInt32)
		_, err = tracker.Flush(db, logger)
		require.NoError(t, err)

		carol, err := avatars.Lookup(db, "carol")
		require.NoError(t, err)
		assert.Equal(t, int64(3), carol.ServedCount)
		assert.False(t, carol.LastServedAt.Before(carol.FirstServedAt))
	})

	t.Run("flushing nothing is a no-op", func(t *testing.T) {
		dbManager, logger := testsupport.SetupTestDBManager(t)
		n, err := avatars.NewTracker().Flush(dbManager.GetConnection(), logger)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("is safe for concurrent use", func(t *testing.T) {
		tracker := avatars.NewTracker()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					tracker.Record(fmt.Sprintf("id-%d", j%10), int64(j), fingerprint.HashInt32)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 10, tracker.Pending())
	})
}

func TestPruneStale(t *testing.T) {
	t.Run("removes only rows served before the cutoff", func(t *testing.T) {
		dbManager, logger := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()

		now := time.Now().UTC()
		testsupport.CreateTestAvatar(t, db, "old-1", 1, now.AddDate(0, 0, -200))
		testsupport.CreateTestAvatar(t, db, "old-2", 5, now.AddDate(0, 0, -181))
		testsupport.CreateTestAvatar(t, db, "fresh", 2, now.AddDate(0, 0, -1))

		deleted, err := avatars.PruneStale(db, logger, now.AddDate(0, 0, -180))
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		stats, err := avatars.LedgerStats(db)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Avatars)
		assert.Equal(t, int64(2), stats.Served)

		_, err = avatars.Lookup(db, "fresh")
		assert.NoError(t, err)
	})

	t.Run("handles more rows than one batch", func(t *testing.T) {
		dbManager, logger := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()

		old := time.Now().UTC().AddDate(-1, 0, 0)
		rows := make([]avatars.Avatar, 1205)
		for i := range rows {
			rows[i] = avatars.Avatar{
				IdentityKey:   avatars.IdentityKey(fmt.Sprintf("bulk-%d", i)),
				HashScheme:    "int32",
				ServedCount:   1,
				FirstServedAt: old,
				LastServedAt:  old,
			}
		}
		require.NoError(t, db.CreateInBatches(rows, 200).Error)

		deleted, err := avatars.PruneStale(db, logger, time.Now().AddDate(0, 0, -2))
		require.NoError(t, err)
		assert.Equal(t, int64(1205), deleted)
	})
}
