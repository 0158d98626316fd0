package avatars

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
)

// Avatar is one ledger row. Identities are only ever stored as IdentityKey.
type Avatar struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	IdentityKey   string    `gorm:"uniqueIndex;not null;size:64" json:"identity_key"`
	Seed          int64     `gorm:"not null" json:"seed"`
	HashScheme    string    `gorm:"not null" json:"hash_scheme"`
	ServedCount   int64     `gorm:"not null;default:0" json:"served_count"`
	FirstServedAt time.Time `gorm:"not null" json:"first_served_at"`
	LastServedAt  time.Time `gorm:"not null;index" json:"last_served_at"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime:milli" json:"-"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime:milli" json:"-"`
}

// IdentityKey is the hex BLAKE2b-256 digest of identity.
func IdentityKey(identity string) string {
	sum := blake2b.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}

// Stats summarizes the ledger.
type Stats struct {
	Avatars int64 `json:"avatars" yaml:"avatars"`
	Served  int64 `json:"served" yaml:"served"`
	Pending int   `json:"pending" yaml:"pending"`
}

// LedgerStats counts ledger rows and the total number of times they were served.
func LedgerStats(db *gorm.DB) (Stats, error) {
	var row struct {
		Avatars int64
		Served  int64
	}
	err := db.Model(&Avatar{}).
		Select("COUNT(*) AS avatars, COALESCE(SUM(served_count), 0) AS served").
		Scan(&row).Error
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read avatar stats: %w", err)
	}
	return Stats{Avatars: row.Avatars, Served: row.Served}, nil
}

// Lookup returns the ledger row for identity.
func Lookup(db *gorm.DB, identity string) (*Avatar, error) {
	var avatar Avatar
	if err := db.Where("identity_key = ?", IdentityKey(identity)).First(&avatar).Error; err != nil {
		return nil, err
	}
	return &avatar, nil
}

const pruneBatchSize = 1000

// PruneStale deletes ledger rows last served before cutoff, in batches, and
// returns how many rows were removed.
func PruneStale(db *gorm.DB, logger *slog.Logger, cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()
	var total int64

	for {
		stale := db.Model(&Avatar{}).Select("id").Where("last_served_at < ?", cutoff).Limit(pruneBatchSize)
		result := db.Where("id IN (?)", stale).Delete(&Avatar{})
		if result.Error != nil {
			logger.Error("Failed to prune avatar ledger",
				slog.Any("error", result.Error),
				slog.Int64("deleted_so_far", total))
			return total, result.Error
		}

		total += result.RowsAffected
		if result.RowsAffected < pruneBatchSize {
			break
		}
	}

	return total, nil
}
