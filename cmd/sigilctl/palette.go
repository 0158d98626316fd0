package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"sigil/internal/fingerprint"
	"sigil/internal/settings"
)

const paletteReloadNote = "A running server applies the change once its caches expire, or after POST /api/v1/admin/cache/purge."

func newPaletteCmd(opts *globalOptions) *cobra.Command {
	var stored bool

	cmd := &cobra.Command{
		Use:   "palette",
		Short: "Show the palette shapes are filled from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if stored {
				st, err := opts.openDatabase()
				if err != nil {
					return err
				}
				defer st.Close()

				palette, err := settings.GetAvatarPalette(st.db)
				if err != nil {
					return err
				}
				if len(palette) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stored palette override")
					return nil
				}
				return writePalette(cmd.OutOrStdout(), palette)
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			fpOpts, err := cfg.FingerprintOptions()
			if err != nil {
				return err
			}
			return writePalette(cmd.OutOrStdout(), fpOpts.Palette)
		},
	}
	cmd.Flags().BoolVar(&stored, "stored", false, "Show the override stored in the database instead")

	cmd.AddCommand(&cobra.Command{
		Use:     "set <palette>",
		Short:   `Store a palette override ("name=#hex,...")`,
		Long:    `Stores a palette override in the database.` + "\n" + paletteReloadNote,
		Example: `  sigilctl palette set "ink=#111827,sky=#0EA5E9,rose=#F43F5E"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			palette, err := fingerprint.ParsePalette(args[0])
			if err != nil {
				return err
			}

			st, err := opts.openDatabase()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := settings.SetAvatarPalette(st.db, palette); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored palette override with %d colors\n", len(palette))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Remove the stored palette override",
		Long:  `Removes the palette override so the configured palette applies again.` + "\n" + paletteReloadNote,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.openDatabase()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := settings.SetAvatarPalette(st.db, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Palette override removed")
			return nil
		},
	})

	return cmd
}

func writePalette(w io.Writer, palette fingerprint.Palette) error {
	caser := cases.Title(language.AmericanEnglish)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tCOLOR")
	for i, c := range palette {
		name := "-"
		if c.Name != "" {
			name = caser.String(c.Name)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, name, c.Hex)
	}
	return tw.Flush()
}
