package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strand-protocol/binn/pkg/binn"
	"github.com/strand-protocol/binn/pkg/convert"
	"github.com/strand-protocol/binn/pkg/output"
)

var (
	encodeFrom string
	encodeHex  bool

	decodeTo  string
	decodeHex bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode [file]",
	Short: "Convert a JSON, YAML or CBOR document to BINN",
	Long: `Convert a document to BINN and write the encoding to stdout.

The input format comes from --from, else from the file extension, else JSON.
Objects {"$tag": n, "$data": "<base64>"} become custom values with tag n.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args, false)
		if err != nil {
			return err
		}
		v, err := parseDocument(inputFormat(encodeFrom, args, formatJSON), data)
		if err != nil {
			return fmt.Errorf("failed to parse input: %w", err)
		}
		out, err := binn.Encode(v, codecOpts...)
		if err != nil {
			return fmt.Errorf("failed to encode: %w", err)
		}
		return writeBinary(cmd, out, encodeHex)
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode a BINN document to table, JSON, YAML or CBOR",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args, decodeHex)
		if err != nil {
			return err
		}
		v, err := binn.Decode(data, codecOpts...)
		if err != nil {
			return fmt.Errorf("failed to decode: %w", err)
		}
		if strings.EqualFold(decodeTo, formatCBOR) {
			out, err := convert.ToCBOR(v)
			if err != nil {
				return fmt.Errorf("failed to convert: %w", err)
			}
			return writeBinary(cmd, out, false)
		}
		f := formatter
		if decodeTo != "" {
			f = output.NewFormatter(decodeTo)
		}
		fmt.Fprint(cmd.OutOrStdout(), f.Format(v))
		return nil
	},
}

func init() {
	encodeCmd.Flags().StringVar(&encodeFrom, "from", "", "input format: json, yaml, cbor")
	encodeCmd.Flags().BoolVar(&encodeHex, "hex", false, "write hex digits instead of raw bytes")
	rootCmd.AddCommand(encodeCmd)

	decodeCmd.Flags().StringVar(&decodeTo, "to", "", "output format: table, json, yaml, cbor (default: --output)")
	decodeCmd.Flags().BoolVar(&decodeHex, "hex", false, "read hex digits instead of raw bytes")
	rootCmd.AddCommand(decodeCmd)
}
