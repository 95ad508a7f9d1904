package output

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/strand-protocol/binn/pkg/inspect"
)

// maxDumpBytes caps the raw bytes shown per line.
const maxDumpBytes = 8

var (
	offsetStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	hexStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	tagStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
)

// Dump renders the tree rooted at n as an indented listing, one line per
// unit:
//
//	offset  header bytes  key: TAG  summary
//
// data must be the buffer n was walked from. Containers whose size field
// disagrees with their length are flagged.
func Dump(n *inspect.Node, data []byte) string {
	var sb strings.Builder
	n.Visit(func(n *inspect.Node, depth int) {
		sb.WriteString(offsetStyle.Render(fmt.Sprintf("%06x", n.Offset)))
		sb.WriteString("  ")
		sb.WriteString(hexStyle.Render(fmt.Sprintf("%-*s", maxDumpBytes*3, rawBytes(n, data))))
		sb.WriteString(strings.Repeat("  ", depth))
		if n.Key != "" {
			sb.WriteString(keyStyle.Render(n.Key + ":"))
			sb.WriteString(" ")
		}
		sb.WriteString(tagStyle.Render(n.TagName))
		if n.Summary != "" {
			sb.WriteString(" ")
			sb.WriteString(summaryStyle.Render(n.Summary))
		}
		if n.SizeMismatch {
			sb.WriteString(" ")
			sb.WriteString(warnStyle.Render(fmt.Sprintf("(declared size %d, actual %d)", n.DeclaredSize, n.Len)))
		}
		sb.WriteString("\n")
	})
	return sb.String()
}

// rawBytes shows a container's header or a scalar's whole encoding, clipped
// to maxDumpBytes.
func rawBytes(n *inspect.Node, data []byte) string {
	end := n.Offset + n.Len
	if n.IsContainer() {
		end = n.Offset + n.HeaderLen
	}
	if end > len(data) {
		end = len(data)
	}
	if n.Offset >= end {
		return ""
	}
	b := data[n.Offset:end]
	clipped := len(b) > maxDumpBytes
	if clipped {
		b = b[:maxDumpBytes-1]
	}
	s := hex.EncodeToString(b)
	var out strings.Builder
	for i := 0; i < len(s); i += 2 {
		if i > 0 {
			out.WriteByte(' ')
		}
		out.WriteString(s[i : i+2])
	}
	if clipped {
		out.WriteString(" ..")
	}
	return out.String()
}
