package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/strand-protocol/binn/pkg/binn"
	"github.com/strand-protocol/binn/pkg/config"
	"github.com/strand-protocol/binn/pkg/output"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
	serverAddr   string
	extTags      []string // --ext: custom tags to accept as opaque values

	// Shared state set during PersistentPreRun
	cfg       *config.Config
	registry  *binn.Registry
	codecOpts []binn.Option
	formatter output.Formatter
)

// rootCmd is the base command for binnctl.
var rootCmd = &cobra.Command{
	Use:   "binnctl",
	Short: "BINN toolkit: convert, inspect, browse and store BINN documents",
	Long: `binnctl works with documents in the BINN binary format.
It converts between BINN and JSON, YAML or CBOR, prints annotated wire
dumps, opens an interactive tree browser, and talks to a binnd document
server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.ApplyEnv()

		// Override config with flags
		if serverAddr != "" {
			cfg.Server.Addr = serverAddr
		}
		if outputFormat != "" {
			cfg.OutputFormat = outputFormat
		}
		for _, s := range extTags {
			tag, err := strconv.ParseUint(s, 0, 8)
			if err != nil {
				return fmt.Errorf("invalid --ext tag %q: want a byte such as 0x10", s)
			}
			cfg.Codec.PassThroughTags = append(cfg.Codec.PassThroughTags, int(tag))
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		registry, err = cfg.Registry()
		if err != nil {
			return err
		}
		codecOpts = cfg.CodecOptions(registry)
		formatter = output.NewFormatter(cfg.OutputFormat)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// RootCmd returns the root cobra.Command for testing purposes.
func RootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.binn/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table, json, yaml (default \"table\")")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "binnd server address (default \"127.0.0.1:7420\")")
	rootCmd.PersistentFlags().StringSliceVar(&extTags, "ext", nil, "custom tags to accept as opaque values, e.g. --ext 0x10,0x11")
}
