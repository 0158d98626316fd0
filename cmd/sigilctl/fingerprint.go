package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sigil/internal/fingerprint"
	"sigil/internal/render"
)

func newSeedCmd(opts *globalOptions) *cobra.Command {
	var withAlias bool

	cmd := &cobra.Command{
		Use:   "seed [identity...]",
		Short: "Print the seed of each identity",
		Long: `Prints the seed and the identity, tab separated, for every identity.
Identities are read one per line from stdin when none are given as arguments.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			identities, err := readIdentities(cmd, args)
			if err != nil {
				return err
			}
			c, _, err := opts.composer()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, identity := range identities {
				seed := c.Seed(identity)
				if withAlias {
					fmt.Fprintf(w, "%d\t%s\t%s\n", seed, identity, fingerprint.Alias(seed))
					continue
				}
				fmt.Fprintf(w, "%d\t%s\n", seed, identity)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withAlias, "alias", false, "Append the readable alias of each seed")
	return cmd
}

func newDescribeCmd(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "describe <identity>",
		Short: "Print the fingerprint descriptor of an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := opts.composer()
			if err != nil {
				return err
			}
			return writeFormatted(cmd.OutOrStdout(), format, c.Compose(args[0]))
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	return cmd
}

func newRenderCmd(opts *globalOptions) *cobra.Command {
	var (
		size  int
		out   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "render <identity>",
		Short: "Render the avatar of an identity as SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := opts.composer()
			if err != nil {
				return err
			}
			if size == 0 {
				size = cfg.AvatarDefaultSize
			}

			svg, err := render.SVG(c.Compose(args[0]), cfg.RenderOptions(size))
			if err != nil {
				return err
			}

			if out != "" && out != "-" {
				if err := os.WriteFile(out, svg, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
				slog.Info("Avatar written", slog.String("path", out), slog.Int("size", size), slog.Int("bytes", len(svg)))
				return nil
			}

			w := cmd.OutOrStdout()
			if isTerminal(w) && !force {
				return errors.New("refusing to write SVG to a terminal: use --out or --force")
			}
			_, err = w.Write(svg)
			return err
		},
	}
	cmd.Flags().IntVarP(&size, "size", "s", 0, "Size in pixels (default: SIGIL_AVATAR_DEFAULT_SIZE)")
	cmd.Flags().StringVarP(&out, "out", "o", "", `Output file, "-" for stdout`)
	cmd.Flags().BoolVar(&force, "force", false, "Write SVG even when stdout is a terminal")
	return cmd
}

// writeFormatted encodes v as indented JSON or as YAML.
func writeFormatted(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		out, err := toYAML(v)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}

// toYAML goes through the JSON encoding so MarshalJSON methods decide the
// shape, then through a yaml.Node so key order is kept.
func toYAML(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("failed to convert to yaml: %w", err)
	}
	blockStyle(&node)
	return yaml.Marshal(&node)
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}
