// Package frontmatter splits post files into their metadata block and body
// and converts metadata between TOML, YAML and JSON.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies the serialization of a metadata block.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// Label returns the upper-case name used in user facing messages.
func (f Format) Label() string { return strings.ToUpper(string(f)) }

// Formats lists the supported formats in detection order.
func Formats() []Format { return []Format{FormatTOML, FormatYAML, FormatJSON} }

// ParseFormat maps a configuration value to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown frontmatter format %q", s)
	}
}

// FormatFromExt maps a file extension (with or without the leading dot) to a Format.
func FormatFromExt(path string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "yaml", "yml":
		return FormatYAML, true
	case "toml":
		return FormatTOML, true
	case "json":
		return FormatJSON, true
	default:
		return "", false
	}
}

// Style captures formatting details needed for stable rewriting.
//
// It intentionally focuses on newline/trailing newline shape and does not
// attempt to preserve original metadata formatting.
type Style struct {
	Newline            string
	HasTrailingNewline bool
}

// Document is a post file split into its parts.
//
// For JSON the Frontmatter bytes include the enclosing braces; for YAML and
// TOML they exclude the delimiter lines.
type Document struct {
	Format      Format
	Frontmatter []byte
	Body        []byte
	Had         bool
	Style       Style
}

type delimiters struct {
	open, close   string
	includeBraces bool
}

var delimitersByFormat = map[Format]delimiters{
	FormatYAML: {open: "---", close: "---"},
	FormatTOML: {open: "+++", close: "+++"},
	FormatJSON: {open: "{", close: "}", includeBraces: true},
}

// Split separates the metadata block from the Markdown body.
//
// The block is detected by its opening delimiter line: `---` for YAML, `+++`
// for TOML and `{` for JSON. If the document does not start with any of them,
// Had is false and Body is the full input. An opening delimiter without a
// matching closing line yields ErrMissingClosingDelimiter.
func Split(content []byte) (Document, error) {
	style := detectStyle(content)
	doc := Document{Body: content, Style: style}

	firstLine := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		firstLine = content[:i]
	}
	firstLine = bytes.TrimSuffix(firstLine, []byte("\r"))

	for _, f := range Formats() {
		d := delimitersByFormat[f]
		if string(firstLine) != d.open || len(firstLine) == len(content) {
			continue
		}
		start := len(firstLine) + 1
		if content[len(firstLine)] == '\r' {
			start++
		}
		fm, body, ok := scanClose(content, start, d)
		if !ok {
			return Document{Format: f, Style: style}, ErrMissingClosingDelimiter
		}
		doc.Format = f
		doc.Frontmatter = fm
		doc.Body = body
		doc.Had = true
		return doc, nil
	}
	return doc, nil
}

func scanClose(content []byte, start int, d delimiters) (fm []byte, body []byte, ok bool) {
	pos := start
	for pos < len(content) {
		end := bytes.IndexByte(content[pos:], '\n')
		line, next := content[pos:], len(content)
		if end >= 0 {
			line, next = content[pos:pos+end], pos+end+1
		}
		if string(bytes.TrimSuffix(line, []byte("\r"))) == d.close {
			if d.includeBraces {
				return content[:pos+len(d.close)], content[next:], true
			}
			return content[start:pos], content[next:], true
		}
		if end < 0 {
			break
		}
		pos = next
	}
	return nil, nil, false
}

// Join reassembles a document from raw frontmatter and body.
//
// If Had is false, Join returns Body as-is. Otherwise the block is emitted
// with the delimiters of doc.Format and the newline style captured in Style.
func Join(doc Document) []byte {
	if !doc.Had {
		return doc.Body
	}

	nl := doc.Style.Newline
	if nl == "" {
		nl = "\n"
	}
	format := doc.Format
	if format == "" {
		format = FormatYAML
	}
	d := delimitersByFormat[format]

	out := make([]byte, 0, len(doc.Frontmatter)+len(doc.Body)+16)
	fm := doc.Frontmatter
	if !d.includeBraces {
		out = append(out, d.open+nl...)
	}
	out = append(out, fm...)
	if len(fm) > 0 && fm[len(fm)-1] != '\n' {
		out = append(out, nl...)
	}
	if !d.includeBraces {
		out = append(out, d.close+nl...)
	}
	out = append(out, doc.Body...)
	return out
}

// ErrMissingClosingDelimiter indicates the document started with a
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("frontmatter start delimiter found but closing delimiter is missing")

func detectStyle(content []byte) Style {
	newline := "\n"
	for i := 0; i+1 < len(content); i++ {
		if content[i] == '\r' && content[i+1] == '\n' {
			newline = "\r\n"
			break
		}
		if content[i] == '\n' {
			newline = "\n"
			break
		}
	}

	hasTrailingNewline := len(content) > 0 && (content[len(content)-1] == '\n')

	return Style{
		Newline:            newline,
		HasTrailingNewline: hasTrailingNewline,
	}
}
