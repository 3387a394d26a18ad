// Package parser splits article export files and extracts frontmatter
// metadata from Markdown content.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/article"
)

// ErrMalformedFrontmatter reports a missing or unparsable frontmatter block.
// Malformed files are surfaced to the author as lint diagnostics rather than
// silently indexed without metadata.
var ErrMalformedFrontmatter = errors.New("malformed frontmatter")

// DefaultSeparator is the token some export files use to concatenate several
// articles into one file. It must appear alone on a line.
const DefaultSeparator = "<<<ARTICLE_BREAK>>>"

// Frontmatter block delimiters.
const (
	yamlDelim = "---"
	tomlDelim = "+++"
)

// Result holds the output of parsing one article segment.
type Result struct {
	Frontmatter article.Frontmatter
	Raw         map[string]any
	Body        string
	Format      string // "yaml" or "toml"
}

// Split divides raw export data into independent article segments on the
// separator token. Single-article files come back as one segment. Segments
// that are entirely blank are dropped.
func Split(data []byte, separator string) [][]byte {
	if separator == "" {
		separator = DefaultSeparator
	}
	var out [][]byte
	for _, seg := range bytes.Split(data, []byte(separator)) {
		if len(bytes.TrimSpace(seg)) == 0 {
			continue
		}
		out = append(out, bytes.TrimLeft(seg, "\n\r"))
	}
	return out
}

// Parse extracts the frontmatter block and body from one article segment.
// The block must open and close with matching delimiters (--- for YAML,
// +++ for TOML) and decode cleanly; anything else is ErrMalformedFrontmatter.
func Parse(data []byte) (*Result, error) {
	trimmed := bytes.TrimLeft(data, "\n\r")

	var delim, format string
	switch {
	case hasDelimLine(trimmed, yamlDelim):
		delim, format = yamlDelim, "yaml"
	case hasDelimLine(trimmed, tomlDelim):
		delim, format = tomlDelim, "toml"
	default:
		return nil, fmt.Errorf("%w: missing opening delimiter", ErrMalformedFrontmatter)
	}

	rest := trimmed[len(delim):]
	idx := closingDelimIndex(rest, delim)
	if idx < 0 {
		return nil, fmt.Errorf("%w: missing closing %s delimiter", ErrMalformedFrontmatter, delim)
	}

	block := rest[:idx]
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")

	var fm article.Frontmatter
	var raw map[string]any
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(block, &fm); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrontmatter, err)
		}
		if err := yaml.Unmarshal(block, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrontmatter, err)
		}
	case "toml":
		if err := toml.Unmarshal(block, &fm); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrontmatter, err)
		}
		if err := toml.Unmarshal(block, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrontmatter, err)
		}
	}

	return &Result{
		Frontmatter: fm,
		Raw:         raw,
		Body:        body,
		Format:      format,
	}, nil
}

// Serialize renders frontmatter and body back into canonical YAML article
// form. Parse(Serialize(fm, body)) returns the same frontmatter and body.
func Serialize(fm article.Frontmatter, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(yamlDelim + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&fm); err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("parser: close encoder: %w", err)
	}
	buf.WriteString(yamlDelim + "\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// hasDelimLine reports whether data starts with delim on its own line.
// Rules out TOML tables ("+++x") and stray dashes mid-token.
func hasDelimLine(data []byte, delim string) bool {
	if !bytes.HasPrefix(data, []byte(delim)) {
		return false
	}
	rest := data[len(delim):]
	return len(rest) == 0 || rest[0] == '\n' || (rest[0] == '\r' && len(rest) > 1 && rest[1] == '\n')
}

// closingDelimIndex locates the closing fence: delim at the start of a line
// with nothing after it but the line break. Lines that merely begin with
// delim ("---extra") are skipped.
func closingDelimIndex(data []byte, delim string) int {
	marker := []byte("\n" + delim)
	from := 0
	for {
		i := bytes.Index(data[from:], marker)
		if i < 0 {
			return -1
		}
		i += from
		if hasDelimLine(data[i+1:], delim) {
			return i
		}
		from = i + 1
	}
}
