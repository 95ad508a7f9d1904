package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/strand-protocol/binn/pkg/binn"
	"github.com/strand-protocol/binn/pkg/client"
)

var (
	docTimeout time.Duration
	putFrom    string
	putCreate  bool
	getRaw     bool
	getHex     bool
	deleteYes  bool
	listLimit  uint32
)

// withClient dials the configured server and runs fn with a deadline.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), docTimeout)
	defer cancel()
	c, err := client.Dial(ctx, cfg.Server.Network, cfg.Server.Addr, client.WithDecodeOptions(codecOpts...))
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Store and fetch documents on a binnd server",
	Long:  "Put, get, delete and list BINN documents held by a binnd document server.",
}

var docPutCmd = &cobra.Command{
	Use:   "put <key> [file]",
	Short: "Store a document under key",
	Long: `Store a document under key. The input is JSON, YAML, CBOR or BINN, chosen
by --from, else the file extension, else JSON. Non-BINN input is encoded
before it is sent; the server rejects documents it cannot decode.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, rest := args[0], args[1:]
		data, err := readInput(cmd, rest, false)
		if err != nil {
			return err
		}
		format := inputFormat(putFrom, rest, formatJSON)
		if format != formatBINN {
			v, err := parseDocument(format, data)
			if err != nil {
				return fmt.Errorf("failed to parse input: %w", err)
			}
			if data, err = binn.Encode(v, codecOpts...); err != nil {
				return fmt.Errorf("failed to encode: %w", err)
			}
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if putCreate {
				if err := c.Create(ctx, key, data); err != nil {
					return fmt.Errorf("failed to create document: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Document %q created (%d bytes).\n", key, len(data))
				return nil
			}
			if err := c.Put(ctx, key, data); err != nil {
				return fmt.Errorf("failed to store document: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document %q stored (%d bytes).\n", key, len(data))
			return nil
		})
	},
}

var docGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Fetch and print a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if getRaw || getHex {
				doc, err := c.Get(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to get document: %w", err)
				}
				return writeBinary(cmd, doc, getHex)
			}
			v, err := c.GetValue(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get document: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.Format(v))
			return nil
		})
	},
}

var docDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !deleteYes {
			fmt.Fprintf(cmd.OutOrStdout(), "Delete document %q? [y/N]: ", args[0])
			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Scan()
			if strings.ToLower(strings.TrimSpace(scanner.Text())) != "y" {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.Delete(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete document: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document %q deleted.\n", args[0])
			return nil
		})
	},
}

var docListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List document keys, optionally under a prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			keys, err := c.List(ctx, prefix, listLimit)
			if err != nil {
				return fmt.Errorf("failed to list documents: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.Format(keys))
			return nil
		})
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the binnd server answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			rtt, err := c.Ping(ctx)
			if err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pong from %s/%s in %s\n", cfg.Server.Network, cfg.Server.Addr, rtt.Round(time.Microsecond))
			return nil
		})
	},
}

func init() {
	docCmd.PersistentFlags().DurationVar(&docTimeout, "timeout", 10*time.Second, "deadline for the whole request")
	pingCmd.Flags().DurationVar(&docTimeout, "timeout", 10*time.Second, "deadline for the ping")

	docPutCmd.Flags().StringVar(&putFrom, "from", "", "input format: json, yaml, cbor, binn")
	docPutCmd.Flags().BoolVar(&putCreate, "create", false, "fail if the key already exists")
	docGetCmd.Flags().BoolVar(&getRaw, "raw", false, "write the stored BINN bytes")
	docGetCmd.Flags().BoolVar(&getHex, "hex", false, "write the stored BINN bytes as hex")
	docDeleteCmd.Flags().BoolVar(&deleteYes, "yes", false, "skip the confirmation prompt")
	docListCmd.Flags().Uint32Var(&listLimit, "limit", 0, "maximum number of keys (0: server maximum)")

	docCmd.AddCommand(docPutCmd)
	docCmd.AddCommand(docGetCmd)
	docCmd.AddCommand(docDeleteCmd)
	docCmd.AddCommand(docListCmd)
	rootCmd.AddCommand(docCmd)
	rootCmd.AddCommand(pingCmd)
}
