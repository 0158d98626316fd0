package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sigil/internal"
	"sigil/internal/avatars"
	"sigil/internal/config"
	"sigil/internal/database"
	"sigil/internal/settings"
)

// AdminAPIKey is the admin key configured by CreateMinimalTestApp.
const AdminAPIKey = "test-admin-key"

func init() {
	if os.Getenv("SIGIL_ENV") == "" {
		os.Setenv("SIGIL_ENV", config.Test)
		config.Reset()
	}
}

// testDBCache caches test databases by root test name so that helpers
// called from subtests share one database.
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a named in-memory database with every model migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	t.Helper()

	cfg := config.GetConfig()
	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set SIGIL_ENV=test", cfg.Environment)
	}

	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tableNames {
			tx.Exec("DELETE FROM " + table)
		}
		return nil
	})
}

// TestConfig returns a copy of the global test config so tests can tweak
// avatar settings without leaking into other tests.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()

	base := config.GetConfig()
	require.Equal(t, config.Test, base.Environment)
	cfg := *base
	cfg.AdminAPIKey = AdminAPIKey
	return &cfg
}

// NewAvatarService builds an avatar service over db with cfg.
func NewAvatarService(t *testing.T, cfg *config.Config, db *gorm.DB) *avatars.Service {
	t.Helper()

	svc, err := avatars.NewService(cfg, db, GetLogger())
	require.NoError(t, err)
	require.NoError(t, settings.SetupDefaultSettings(db))
	return svc
}

// CreateTestAvatar inserts a ledger row for identity.
func CreateTestAvatar(t *testing.T, db *gorm.DB, identity string, served int64, lastServed time.Time) avatars.Avatar {
	t.Helper()

	avatar := avatars.Avatar{
		IdentityKey:   avatars.IdentityKey(identity),
		HashScheme:    "int32",
		ServedCount:   served,
		FirstServedAt: lastServed.UTC(),
		LastServedAt:  lastServed.UTC(),
	}
	require.NoError(t, db.Create(&avatar).Error)
	return avatar
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateMinimalTestApp creates a Fiber app with every route mounted over db.
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) (*fiber.App, *avatars.Service) {
	t.Helper()

	appConfig := TestConfig(t)
	svc := NewAvatarService(t, appConfig, db)

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = NewTestDBManager(db)
	cfg.EnableSecFetchSite = false

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.NewRouteMounter(appConfig, svc)(srv)
	return srv.App(), svc
}
