package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strand-protocol/binn/pkg/inspect"
	"github.com/strand-protocol/binn/pkg/output"
	"github.com/strand-protocol/binn/pkg/tui"
)

var (
	inspectHex bool
	viewHex    bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Print an annotated dump of a BINN document",
	Long: `Print one line per encoded unit: its offset, header bytes, key, tag and a
short summary. Containers whose size field disagrees with their length, as
written by some older encoders, are flagged. With --output json or yaml the
annotated tree is printed instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args, inspectHex)
		if err != nil {
			return err
		}
		root, err := inspect.Walk(data, registry)
		if err != nil {
			return fmt.Errorf("failed to inspect: %w", err)
		}
		if cfg.OutputFormat == "" || cfg.OutputFormat == output.FormatTable {
			fmt.Fprint(cmd.OutOrStdout(), output.Dump(root, data))
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(root))
		return nil
	},
}

var viewCmd = &cobra.Command{
	Use:   "view [file]",
	Short: "Browse a BINN document interactively",
	Long: `Open a terminal tree browser over a BINN document.

Key bindings:
  Up / Down, j / k   Move
  Enter / Space      Fold or unfold a container
  Left / Right       Fold / unfold, or jump to the parent
  g / G              First / last row
  q / Ctrl+C         Quit`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args, viewHex)
		if err != nil {
			return err
		}
		root, err := inspect.Walk(data, registry)
		if err != nil {
			return fmt.Errorf("failed to inspect: %w", err)
		}
		title := "stdin"
		if len(args) > 0 && args[0] != "-" {
			title = args[0]
		}
		return tui.Run(tui.New(fmt.Sprintf("%s (%d bytes)", title, len(data)), root))
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectHex, "hex", false, "read hex digits instead of raw bytes")
	rootCmd.AddCommand(inspectCmd)

	viewCmd.Flags().BoolVar(&viewHex, "hex", false, "read hex digits instead of raw bytes")
	rootCmd.AddCommand(viewCmd)
}
