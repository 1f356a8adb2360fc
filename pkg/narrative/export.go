package narrative

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// FormatHTML is the export format for a standalone HTML page.
const FormatHTML = "html"

// ErrUnknownFormat is returned for export formats other than markdown and
// html.
var ErrUnknownFormat = errors.New("unknown report format")

var markdownRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

const htmlPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`

// Export writes the report body to w. Markdown is written as is; html
// renders it into a standalone page.
func Export(w io.Writer, r *Report, format string) error {
	if r == nil {
		return errors.New("no report to export")
	}

	switch strings.ToLower(format) {
	case FormatMarkdown, "md", "":
		_, err := io.WriteString(w, r.Body)
		return err

	case FormatHTML:
		var body bytes.Buffer
		if err := markdownRenderer.Convert([]byte(r.Body), &body); err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
		_, err := fmt.Fprintf(w, htmlPage, html.EscapeString(r.Title), body.String())
		return err

	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ExportFile writes the report to path. An empty format is taken from the
// file extension, defaulting to markdown.
func ExportFile(path string, r *Report, format string) error {
	if format == "" {
		format = FormatFromPath(path)
	}

	var buf bytes.Buffer
	if err := Export(&buf, r, format); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// FormatFromPath guesses the export format from a file name.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return FormatHTML
	default:
		return FormatMarkdown
	}
}
