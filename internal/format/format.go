// Package format converts raw script output into common wire formats. It
// never fails a run: malformed input degrades to a best-effort textual
// rendering with the Error field set.
package format

import "fmt"

// Format identifies a target output format.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatJSON     Format = "json"
	FormatXML      Format = "xml"
	FormatYAML     Format = "yaml"
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat converts a wire-format name into a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatPlain, "":
		return FormatPlain, nil
	case FormatJSON, FormatXML, FormatYAML, FormatTable, FormatCSV, FormatMarkdown:
		return Format(name), nil
	default:
		return FormatPlain, fmt.Errorf("unknown output format %q", name)
	}
}

// Output is a formatted rendering of a script result. It is a value, never
// persisted.
type Output struct {
	Format      Format
	Content     string
	ContentType string
	IsTabular   bool
	Error       string
}

func contentType(f Format) string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXML:
		return "application/xml"
	case FormatYAML:
		return "application/x-yaml"
	case FormatCSV:
		return "text/csv"
	case FormatMarkdown:
		return "text/markdown"
	default:
		return "text/plain"
	}
}

// Render classifies raw output and renders it into the target format.
func Render(raw string, target Format) Output {
	out := Output{Format: target, ContentType: contentType(target)}

	switch target {
	case FormatPlain, "":
		out.Content = raw
	case FormatJSON:
		renderJSON(raw, &out)
	case FormatXML:
		renderXML(raw, &out)
	case FormatYAML:
		renderYAML(raw, &out)
	case FormatTable:
		renderTable(raw, &out)
	case FormatCSV:
		renderCSV(raw, &out)
	case FormatMarkdown:
		renderMarkdown(raw, &out)
	default:
		out.Content = raw
		out.Error = fmt.Sprintf("unknown output format %q", target)
	}
	return out
}
