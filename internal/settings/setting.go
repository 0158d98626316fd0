package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"sigil/internal/fingerprint"
)

// AvatarPaletteKey stores a palette override in the same "name=#hex,..." form
// accepted by SIGIL_AVATAR_PALETTE. An empty value means no override.
const AvatarPaletteKey = "avatar_palette"

// Setting represents a configuration item in the database
type Setting struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

// SettingResponse is the display form of a setting.
type SettingResponse struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

var (
	paletteCache   *cache.Cache[string, fingerprint.Palette]
	paletteCacheDB *gorm.DB
	paletteCacheMu sync.Mutex
)

// SetupDefaultSettings initializes default settings in the database
func SetupDefaultSettings(dbConn *gorm.DB) error {
	defaults := []Setting{
		{Key: AvatarPaletteKey, Value: ""},
	}
	err := sqlite.PerformWrite(slog.Default(), dbConn, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, setting := range defaults {
			err := tx.Exec(`
                INSERT INTO settings (key, value, created_at, updated_at)
                VALUES (?, ?, ?, ?)
                ON CONFLICT(key) DO NOTHING
            `, setting.Key, setting.Value, now, now).Error
			if err != nil {
				slog.Default().Error("Failed to upsert setting", slog.String("key", setting.Key), slog.Any("error", err))
				return fmt.Errorf("failed to upsert setting %s: %w", setting.Key, err)
			}
		}
		return nil
	})

	loadCache(dbConn, slog.Default())

	return err
}

// GetSetting retrieves a setting value from the database
func GetSetting(dbConn *gorm.DB, key string) (string, error) {
	var setting Setting
	result := dbConn.Where("key = ?", key).First(&setting)

	if result.Error != nil {
		return "", result.Error
	}

	return setting.Value, nil
}

// UpdateSetting writes a setting, creating it when missing.
func UpdateSetting(dbConn *gorm.DB, key string, value string) error {
	err := sqlite.PerformWrite(slog.Default(), dbConn, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		return tx.Exec(`
            INSERT INTO settings (key, value, created_at, updated_at)
            VALUES (?, ?, ?, ?)
            ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
        `, key, value, now, now).Error
	})
	if err != nil {
		return fmt.Errorf("failed to update setting %s: %w", key, err)
	}

	// Clear and reload the cache after successful update
	paletteCacheMu.Lock()
	if paletteCache != nil {
		paletteCache.Clear()
	}
	paletteCacheMu.Unlock()
	loadCache(dbConn, slog.Default())

	return nil
}

// GetAvatarPalette returns the stored palette override, or nil when none is set.
func GetAvatarPalette(dbConn *gorm.DB) (fingerprint.Palette, error) {
	paletteCacheMu.Lock()
	c := paletteCache
	if c == nil || paletteCacheDB != dbConn {
		paletteCacheMu.Unlock()
		loadCache(dbConn, slog.Default())
		paletteCacheMu.Lock()
		c = paletteCache
	}
	paletteCacheMu.Unlock()

	palette, err := c.Get(AvatarPaletteKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read avatar palette: %w", err)
	}
	return palette, nil
}

// SetAvatarPalette validates and stores a palette override. An empty palette
// removes the override.
func SetAvatarPalette(dbConn *gorm.DB, palette fingerprint.Palette) error {
	if len(palette) == 0 {
		return UpdateSetting(dbConn, AvatarPaletteKey, "")
	}
	if err := palette.Validate(); err != nil {
		return err
	}
	return UpdateSetting(dbConn, AvatarPaletteKey, palette.String())
}

func loadCache(dbConn *gorm.DB, logger *slog.Logger) {
	fetchFunc := func(key string) (fingerprint.Palette, error) {
		var value string
		err := dbConn.WithContext(context.Background()).Raw("SELECT value FROM settings WHERE key = ? LIMIT 1", key).Scan(&value).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if strings.TrimSpace(value) == "" {
			return nil, nil
		}
		return fingerprint.ParsePalette(value)
	}

	paletteCacheMu.Lock()
	defer paletteCacheMu.Unlock()
	paletteCache = cache.NewCache[string, fingerprint.Palette](logger, 5*time.Minute, fetchFunc)
	paletteCacheDB = dbConn
}

// GetAllSettingsForDisplay returns every stored setting ordered by key.
func GetAllSettingsForDisplay(db *gorm.DB) ([]SettingResponse, error) {
	var allSettings []Setting
	if err := db.Order("key ASC").Find(&allSettings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}

	result := make([]SettingResponse, 0, len(allSettings))
	for _, setting := range allSettings {
		result = append(result, SettingResponse{Key: setting.Key, Value: setting.Value})
	}
	return result, nil
}
