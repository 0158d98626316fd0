package avatars

import (
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"sigil/internal/fingerprint"
)

type servedEntry struct {
	key       string
	seed      int64
	scheme    fingerprint.HashScheme
	count     int64
	firstSeen time.Time
	lastSeen  time.Time
}

// Tracker buffers served avatars in memory so that serving never waits on a
// database write. Flush moves the buffer into the ledger.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*servedEntry
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		pending: make(map[string]*servedEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record notes that identity was served once.
func (t *Tracker) Record(identity string, seed int64, scheme fingerprint.HashScheme) {
	key := IdentityKey(identity)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.pending[key]; ok {
		e.count++
		e.lastSeen = now
		e.seed = seed
		e.scheme = scheme
		return
	}
	t.pending[key] = &servedEntry{
		key:       key,
		seed:      seed,
		scheme:    scheme,
		count:     1,
		firstSeen: now,
		lastSeen:  now,
	}
}

// Pending is the number of distinct identities waiting to be flushed.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *Tracker) drain() []*servedEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]*servedEntry, 0, len(t.pending))
	for _, e := range t.pending {
		entries = append(entries, e)
	}
	t.pending = make(map[string]*servedEntry)
	return entries
}

// restore puts entries back after a failed flush, merging with anything
// recorded in the meantime.
func (t *Tracker) restore(entries []*servedEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range entries {
		cur, ok := t.pending[e.key]
		if !ok {
			t.pending[e.key] = e
			continue
		}
		cur.count += e.count
		if e.firstSeen.Before(cur.firstSeen) {
			cur.firstSeen = e.firstSeen
		}
	}
}

// Flush upserts every buffered entry into the ledger in one write and
// returns the number of rows touched. On failure the entries stay buffered.
func (t *Tracker) Flush(db *gorm.DB, logger *slog.Logger) (int, error) {
	entries := t.drain()
	if len(entries) == 0 {
		return 0, nil
	}

	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, e := range entries {
			err := tx.Exec(`
                INSERT INTO avatars (identity_key, seed, hash_scheme, served_count, first_served_at, last_served_at, created_at, updated_at)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT(identity_key) DO UPDATE SET
                    seed = excluded.seed,
                    hash_scheme = excluded.hash_scheme,
                    served_count = avatars.served_count + excluded.served_count,
                    last_served_at = excluded.last_served_at,
                    updated_at = excluded.updated_at
            `, e.key, e.seed, string(e.scheme), e.count, e.firstSeen, e.lastSeen, now, now).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.restore(entries)
		logger.Error("Failed to flush avatar ledger",
			slog.Any("error", err),
			slog.Int("entries", len(entries)))
		return 0, err
	}

	return len(entries), nil
}
