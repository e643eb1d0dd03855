// Package formatter renders the changes found by an import run
package formatter

import (
	"fmt"
	"io"

	"github.com/tordrt/dbsync/internal/merge"
)

// Formatter writes a change report
type Formatter interface {
	Format(tokens []*merge.Token) error
}

// New returns the formatter for a format name
func New(format string, w io.Writer) (Formatter, error) {
	switch format {
	case "", "text":
		return NewTextFormatter(w), nil
	case "markdown", "md":
		return NewMarkdownFormatter(w), nil
	}
	return nil, fmt.Errorf("unsupported format %q: must be one of: text, markdown", format)
}

// TextFormatter writes the same block the import logs
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes one padded line per token
func (f *TextFormatter) Format(tokens []*merge.Token) error {
	if len(tokens) == 0 {
		_, err := fmt.Fprintln(f.writer, "Detected changes: No changes to import.")
		return err
	}

	if _, err := fmt.Fprintln(f.writer, "Detected changes: "); err != nil {
		return err
	}
	for _, t := range tokens {
		if _, err := fmt.Fprintf(f.writer, "    %-20s %s\n", t.Name(), t.Value()); err != nil {
			return err
		}
	}
	return nil
}
