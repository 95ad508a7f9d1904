package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strand-protocol/binn/pkg/binn"
	"github.com/strand-protocol/binn/pkg/convert"
)

// Document formats accepted by --from and --to.
const (
	formatBINN = "binn"
	formatJSON = "json"
	formatYAML = "yaml"
	formatCBOR = "cbor"
)

// readInput reads the file named by args[0], or stdin when there is no
// argument or it is "-". With hexText the input is hex digits, whitespace
// allowed.
func readInput(cmd *cobra.Command, args []string, hexText bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if !hexText {
		return data, nil
	}
	out, err := hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
	if err != nil {
		return nil, fmt.Errorf("decode hex input: %w", err)
	}
	return out, nil
}

// inputFormat returns flag if set, else guesses from the file extension.
func inputFormat(flag string, args []string, fallback string) string {
	if flag != "" {
		return strings.ToLower(flag)
	}
	if len(args) > 0 {
		switch strings.ToLower(filepath.Ext(args[0])) {
		case ".json":
			return formatJSON
		case ".yaml", ".yml":
			return formatYAML
		case ".cbor":
			return formatCBOR
		case ".binn", ".bin":
			return formatBINN
		}
	}
	return fallback
}

// parseDocument converts data in the given format to a Value.
func parseDocument(format string, data []byte) (binn.Value, error) {
	switch format {
	case formatJSON:
		return convert.FromJSON(data)
	case formatYAML:
		return convert.FromYAML(data)
	case formatCBOR:
		return convert.FromCBOR(data)
	case formatBINN:
		return binn.Decode(data, codecOpts...)
	}
	return nil, fmt.Errorf("unknown input format %q (want json, yaml, cbor or binn)", format)
}

// writeBinary writes raw bytes, or hex digits and a newline when hexText is
// set.
func writeBinary(cmd *cobra.Command, data []byte, hexText bool) error {
	w := cmd.OutOrStdout()
	if hexText {
		_, err := fmt.Fprintln(w, hex.EncodeToString(data))
		return err
	}
	_, err := w.Write(data)
	return err
}
