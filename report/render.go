package report

import (
	"encoding/json"
	"encoding/xml"
	"sort"
	"strings"

	"github.com/seven-shadow/sentinel-eye/errcode"
)

// Format identifies a report output format.
type Format string

// Supported output formats.
const (
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
	FormatXML      Format = "xml"
)

// FormatInfo provides metadata about an output format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatMarkdown: {
		Name:      FormatMarkdown,
		MIMEType:  "text/markdown",
		Extension: ".md",
	},
	FormatJSON: {
		Name:      FormatJSON,
		MIMEType:  "application/json",
		Extension: ".json",
	},
	FormatXML: {
		Name:      FormatXML,
		MIMEType:  "application/xml",
		Extension: ".xml",
	},
}

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := FormatRegistry[f]; !ok {
		return "", errcode.New(errcode.ArgInvalid,
			"unknown format %q (supported: %s)", s, strings.Join(FormatNames(), ", "))
	}
	return f, nil
}

// FormatNames returns the supported format names, sorted.
func FormatNames() []string {
	names := make([]string, 0, len(FormatRegistry))
	for name := range FormatRegistry {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

// Renderable is a report that knows its Markdown form. JSON and XML forms
// come from the struct tags.
type Renderable interface {
	Markdown() string
}

// Render serializes a report in the requested format. Output always ends
// with a newline.
func Render(format Format, r Renderable) (string, error) {
	switch format {
	case FormatMarkdown:
		return r.Markdown(), nil
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	case FormatXML:
		data, err := xml.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", err
		}
		return xml.Header + string(data) + "\n", nil
	default:
		return "", errcode.New(errcode.ArgInvalid, "unknown format %q", format)
	}
}
