package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"

	"sigil/internal/config"
	"sigil/internal/database"
	"sigil/internal/fingerprint"
	"sigil/internal/logging"
)

var errNoIdentities = errors.New("no identities given: pass them as arguments or pipe them on stdin")

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	logLevel string
	scheme   string
	palette  string
	database string
}

func newRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "sigilctl",
		Short: "Deterministic identity avatar toolkit",
		Long: `sigilctl derives seeds, fingerprints and SVG avatars for identities using the
same configuration as the sigil server (SIGIL_* environment variables), and
manages the server's avatar database.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), opts.logLevel))
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("sigilctl %s\n", version))

	flags := root.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.scheme, "scheme", "", "Hash scheme: int32 or ecmascript (env: SIGIL_AVATAR_HASH_SCHEME)")
	flags.StringVar(&opts.palette, "palette", "", `Palette as "name=#hex,..." (env: SIGIL_AVATAR_PALETTE)`)
	flags.StringVar(&opts.database, "database", "", "SQLite database file (default: derived from SIGIL_STORAGE_PATH)")

	root.AddCommand(
		newSeedCmd(opts),
		newDescribeCmd(opts),
		newRenderCmd(opts),
		newPaletteCmd(opts),
		newMigrateCmd(opts),
		newPruneCmd(opts),
		newStatsCmd(opts),
		newVersionCmd(version),
	)
	return root
}

// loadConfig returns a copy of the server configuration with the command
// line overrides applied.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg := *config.GetConfig()
	if o.scheme != "" {
		cfg.AvatarHashScheme = o.scheme
	}
	if o.palette != "" {
		cfg.AvatarPalette = o.palette
	}
	if o.database != "" {
		cfg.DatabaseName = o.database
	}
	if _, err := cfg.FingerprintOptions(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (o *globalOptions) composer() (*fingerprint.Composer, *config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	fpOpts, err := cfg.FingerprintOptions()
	if err != nil {
		return nil, nil, err
	}
	c, err := fingerprint.NewComposer(fpOpts)
	if err != nil {
		return nil, nil, err
	}
	return c, cfg, nil
}

// store is an open, migrated avatar database.
type store struct {
	db   *gorm.DB
	path string
}

func (s *store) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// openDatabase connects to the configured database and brings its schema up
// to date.
func (o *globalOptions) openDatabase() (*store, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	dm := database.NewDBManager(cfg, slog.Default())
	if err := dm.Init(); err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DatabaseName, err)
	}
	s := &store{db: dm.GetConnection(), path: cfg.DatabaseName}
	if err := dm.MigrateDatabase(); err != nil {
		s.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

// readIdentities returns args, or one identity per non-blank stdin line when
// no args are given and stdin is not a terminal.
func readIdentities(cmd *cobra.Command, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	in := cmd.InOrStdin()
	if isTerminal(in) {
		return nil, errNoIdentities
	}

	var identities []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		identities = append(identities, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read identities: %w", err)
	}
	if len(identities) == 0 {
		return nil, errNoIdentities
	}
	return identities, nil
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
