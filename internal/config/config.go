// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"sigil/internal/fingerprint"
	"sigil/internal/render"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

const defaultPrivateKey = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`
	AdminAPIKey string   `mapstructure:"adminapikey"`

	// File paths
	DatabasePath    string `mapstructure:"storagepath"`
	DatabaseName    string `mapstructure:"-"` // Derived from other settings
	PublicDirectory string `mapstructure:"publicdir"`
	TraceFile       string `mapstructure:"tracefile"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`

	// Ledger retention settings
	LedgerRetentionDays int `mapstructure:"ledgerretentiondays"`

	// Avatar settings
	AvatarPalette         string  `mapstructure:"avatarpalette"`
	AvatarBackground      string  `mapstructure:"avatarbackground"`
	AvatarCircleOpacity   float64 `mapstructure:"avatarcircleopacity"`
	AvatarRectOpacity     float64 `mapstructure:"avatarrectopacity"`
	AvatarTriangleOpacity float64 `mapstructure:"avatartriangleopacity"`
	AvatarNoiseOpacity    float64 `mapstructure:"avatarnoiseopacity"`
	AvatarNoiseFrequency  float64 `mapstructure:"avatarnoisefrequency"`
	AvatarNoiseOctaves    int     `mapstructure:"avatarnoiseoctaves"`
	AvatarHashScheme      string  `mapstructure:"avatarhashscheme"`
	AvatarDefaultSize     int     `mapstructure:"avatardefaultsize"`
	AvatarMaxSize         int     `mapstructure:"avatarmaxsize"`
	AvatarCornerRadius    float64 `mapstructure:"avatarcornerradius"`
	AvatarFrameColor      string  `mapstructure:"avatarframecolor"`
	AvatarCacheTTLSeconds int     `mapstructure:"avatarcachettlseconds"`
	AvatarBatchLimit      int     `mapstructure:"avatarbatchlimit"`
	AvatarBatchWorkers    int     `mapstructure:"avatarbatchworkers"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		defaults := fingerprint.DefaultOptions()

		// Set defaults
		v.SetDefault("appname", "sigil")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", defaultPrivateKey)
		v.SetDefault("adminapikey", "")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("publicdir", "public")
		v.SetDefault("tracefile", "")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("jobintervalseconds", 60)
		v.SetDefault("ledgerretentiondays", 180)
		v.SetDefault("avatarpalette", defaults.Palette.String())
		v.SetDefault("avatarbackground", defaults.Background)
		v.SetDefault("avatarcircleopacity", defaults.Opacity.Circle)
		v.SetDefault("avatarrectopacity", defaults.Opacity.Rect)
		v.SetDefault("avatartriangleopacity", defaults.Opacity.Triangle)
		v.SetDefault("avatarnoiseopacity", defaults.Opacity.Noise)
		v.SetDefault("avatarnoisefrequency", defaults.Noise.BaseFrequency)
		v.SetDefault("avatarnoiseoctaves", defaults.Noise.Octaves)
		v.SetDefault("avatarhashscheme", string(defaults.Scheme))
		v.SetDefault("avatardefaultsize", render.DefaultSize)
		v.SetDefault("avatarmaxsize", render.DefaultMaxSize)
		v.SetDefault("avatarcornerradius", render.DefaultCornerRadius)
		v.SetDefault("avatarframecolor", render.DefaultFrame)
		v.SetDefault("avatarcachettlseconds", 3600)
		v.SetDefault("avatarbatchlimit", 100)
		v.SetDefault("avatarbatchworkers", 4)

		// Bind environment variables
		v.BindEnv("appname", "SIGIL_APP_NAME")
		v.BindEnv("appport", "SIGIL_APP_PORT")
		v.BindEnv("environment", "SIGIL_ENV")
		v.BindEnv("loglevel", "SIGIL_LOG_LEVEL")
		v.BindEnv("privatekey", "SIGIL_PRIVATE_KEY")
		v.BindEnv("adminapikey", "SIGIL_ADMIN_API_KEY")
		v.BindEnv("storagepath", "SIGIL_STORAGE_PATH")
		v.BindEnv("publicdir", "SIGIL_PUBLIC_DIR")
		v.BindEnv("tracefile", "SIGIL_TRACE_FILE")
		v.BindEnv("logsdir", "SIGIL_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "SIGIL_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "SIGIL_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "SIGIL_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "SIGIL_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "SIGIL_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "SIGIL_DB_MAX_IDLE_CONNS")
		v.BindEnv("jobintervalseconds", "SIGIL_JOB_INTERVAL_SECONDS")
		v.BindEnv("ledgerretentiondays", "SIGIL_LEDGER_RETENTION_DAYS")
		v.BindEnv("avatarpalette", "SIGIL_AVATAR_PALETTE")
		v.BindEnv("avatarbackground", "SIGIL_AVATAR_BACKGROUND")
		v.BindEnv("avatarcircleopacity", "SIGIL_AVATAR_CIRCLE_OPACITY")
		v.BindEnv("avatarrectopacity", "SIGIL_AVATAR_RECT_OPACITY")
		v.BindEnv("avatartriangleopacity", "SIGIL_AVATAR_TRIANGLE_OPACITY")
		v.BindEnv("avatarnoiseopacity", "SIGIL_AVATAR_NOISE_OPACITY")
		v.BindEnv("avatarnoisefrequency", "SIGIL_AVATAR_NOISE_FREQUENCY")
		v.BindEnv("avatarnoiseoctaves", "SIGIL_AVATAR_NOISE_OCTAVES")
		v.BindEnv("avatarhashscheme", "SIGIL_AVATAR_HASH_SCHEME")
		v.BindEnv("avatardefaultsize", "SIGIL_AVATAR_DEFAULT_SIZE")
		v.BindEnv("avatarmaxsize", "SIGIL_AVATAR_MAX_SIZE")
		v.BindEnv("avatarcornerradius", "SIGIL_AVATAR_CORNER_RADIUS")
		v.BindEnv("avatarframecolor", "SIGIL_AVATAR_FRAME_COLOR")
		v.BindEnv("avatarcachettlseconds", "SIGIL_AVATAR_CACHE_TTL_SECONDS")
		v.BindEnv("avatarbatchlimit", "SIGIL_AVATAR_BATCH_LIMIT")
		v.BindEnv("avatarbatchworkers", "SIGIL_AVATAR_BATCH_WORKERS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		// Validate
		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()

		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultPrivateKey {
			log.Fatal("Production requires a unique SIGIL_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if _, err := c.FingerprintOptions(); err != nil {
		return err
	}
	if err := c.RenderOptions(c.AvatarDefaultSize).Validate(); err != nil {
		return fmt.Errorf("invalid avatar render options: %w", err)
	}
	if c.AvatarBatchLimit < 1 {
		return fmt.Errorf("invalid avatar batch limit: %d", c.AvatarBatchLimit)
	}
	if c.AvatarBatchWorkers < 1 {
		return fmt.Errorf("invalid avatar batch workers: %d", c.AvatarBatchWorkers)
	}

	return nil
}

// FingerprintOptions builds the composer options from the avatar settings.
func (c *Config) FingerprintOptions() (fingerprint.Options, error) {
	palette, err := fingerprint.ParsePalette(c.AvatarPalette)
	if err != nil {
		return fingerprint.Options{}, fmt.Errorf("invalid avatar palette: %w", err)
	}
	scheme, err := fingerprint.ParseHashScheme(c.AvatarHashScheme)
	if err != nil {
		return fingerprint.Options{}, fmt.Errorf("invalid avatar hash scheme: %w", err)
	}

	opts := fingerprint.Options{
		Palette:    palette,
		Background: c.AvatarBackground,
		Opacity: fingerprint.Opacity{
			Circle:   c.AvatarCircleOpacity,
			Rect:     c.AvatarRectOpacity,
			Triangle: c.AvatarTriangleOpacity,
			Noise:    c.AvatarNoiseOpacity,
		},
		Noise: fingerprint.Noise{
			BaseFrequency: c.AvatarNoiseFrequency,
			Octaves:       c.AvatarNoiseOctaves,
		},
		Scheme: scheme,
	}
	if err := opts.Validate(); err != nil {
		return fingerprint.Options{}, fmt.Errorf("invalid avatar options: %w", err)
	}
	return opts, nil
}

// RenderOptions returns the SVG options for the given pixel size.
func (c *Config) RenderOptions(size int) render.Options {
	return render.Options{
		Size:         size,
		MaxSize:      c.AvatarMaxSize,
		CornerRadius: c.AvatarCornerRadius,
		Frame:        c.AvatarFrameColor,
	}
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return "/assets"
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 10
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
