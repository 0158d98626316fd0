package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"sigil/internal/avatars"
	"sigil/internal/settings"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.openDatabase()
			if err != nil {
				return err
			}
			defer st.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Migrations completed for %s\n", st.path)
			return nil
		},
	}
}

func newPruneCmd(opts *globalOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete avatars that have not been served recently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.LedgerRetentionDays
			}
			if days <= 0 {
				return errors.New("--days must be positive")
			}

			st, err := opts.openDatabase()
			if err != nil {
				return err
			}
			defer st.Close()

			cutoff := time.Now().UTC().AddDate(0, 0, -days)
			deleted, err := avatars.PruneStale(st.db, slog.Default(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d avatars not served since %s\n", deleted, cutoff.Format(time.DateOnly))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (default: SIGIL_LEDGER_RETENTION_DAYS)")
	return cmd
}

type statsOutput struct {
	Database string                     `json:"database"`
	Ledger   avatars.Stats              `json:"ledger"`
	Settings []settings.SettingResponse `json:"settings"`
}

func newStatsCmd(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the avatar ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.openDatabase()
			if err != nil {
				return err
			}
			defer st.Close()

			ledger, err := avatars.LedgerStats(st.db)
			if err != nil {
				return err
			}
			all, err := settings.GetAllSettingsForDisplay(st.db)
			if err != nil {
				return err
			}

			return writeFormatted(cmd.OutOrStdout(), format, statsOutput{
				Database: st.path,
				Ledger:   ledger,
				Settings: all,
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	return cmd
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sigilctl %s\n", version)
		},
	}
}
