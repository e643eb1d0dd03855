package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/dbsync/internal/merge"
)

// MarkdownFormatter writes the changes as a markdown table
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the report document
func (f *MarkdownFormatter) Format(tokens []*merge.Token) error {
	_, _ = fmt.Fprintln(f.writer, "# Detected Changes")
	_, _ = fmt.Fprintln(f.writer)

	if len(tokens) == 0 {
		_, err := fmt.Fprintln(f.writer, "No changes to import.")
		return err
	}

	_, _ = fmt.Fprintln(f.writer, "| Change | Object | Direction |")
	_, _ = fmt.Fprintln(f.writer, "|--------|--------|-----------|")
	for _, t := range tokens {
		if _, err := fmt.Fprintf(f.writer, "| %s | %s | %s |\n", cell(t.Name()), cell(t.Value()), t.Direction); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(f.writer, "\n%d change(s)\n", len(tokens))
	return err
}

// cell escapes table separators
func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}
