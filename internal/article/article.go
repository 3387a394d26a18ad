// Package article defines the domain types for Ansuz.
package article

import (
	"fmt"
	"strings"
	"time"
)

// Category identifies a topical grouping an article belongs to.
type Category struct {
	Name string `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty"`
	Slug string `yaml:"slug,omitempty" toml:"slug,omitempty" json:"slug,omitempty"`
}

// Author identifies the writer of an article.
type Author struct {
	Name string `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty"`
	Slug string `yaml:"slug,omitempty" toml:"slug,omitempty" json:"slug,omitempty"`
}

// Frontmatter is the structured metadata block at the top of an article file.
//
// Date fields are kept as the literal strings found in the file so that
// serializing an article reproduces its input byte-for-byte; the validator
// checks that they parse as ISO-8601.
type Frontmatter struct {
	Title       string   `yaml:"title,omitempty" toml:"title,omitempty" json:"title,omitempty"`
	Excerpt     string   `yaml:"excerpt,omitempty" toml:"excerpt,omitempty" json:"excerpt,omitempty"`
	Category    Category `yaml:"category,omitempty" toml:"category,omitempty" json:"category,omitempty"`
	Date        string   `yaml:"date,omitempty" toml:"date,omitempty" json:"date,omitempty"`
	PublishedAt string   `yaml:"publishedAt,omitempty" toml:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	UpdatedAt   string   `yaml:"updatedAt,omitempty" toml:"updatedAt,omitempty" json:"updatedAt,omitempty"`
	ReadingTime string   `yaml:"readingTime,omitempty" toml:"readingTime,omitempty" json:"readingTime,omitempty"`
	Author      Author   `yaml:"author,omitempty" toml:"author,omitempty" json:"author,omitempty"`
	Tags        []string `yaml:"tags,omitempty" toml:"tags,omitempty" json:"tags,omitempty"`
}

// Published reports whether the article carries a publication date. Published
// articles are frozen except for their body and the server-managed updatedAt.
func (f Frontmatter) Published() bool {
	return f.PublishedAt != "" || f.Date != ""
}

// Article represents one parsed content unit from the corpus.
//
// Key equals Path for single-article files. Export files that concatenate
// several articles with a separator token yield keys "path#2", "path#3", …
// for the segments after the first.
type Article struct {
	Key         string      `json:"key"`
	Path        string      `json:"path"`
	Frontmatter Frontmatter `json:"frontmatter"`
	Body        string      `json:"body"`
	Checksum    string      `json:"checksum"`
}

// Metadata is a lightweight representation returned by storage listings.
type Metadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SegmentKey derives the index key for the n-th article (0-based) in a file.
func SegmentKey(path string, n int) string {
	if n == 0 {
		return path
	}
	return fmt.Sprintf("%s#%d", path, n+1)
}

// KeyPath returns the file path an index key refers to.
func KeyPath(key string) string {
	if i := strings.LastIndex(key, "#"); i >= 0 {
		return key[:i]
	}
	return key
}

// readingTimeWPM is the assumed reading speed for derived estimates.
const readingTimeWPM = 220

// EstimateReadingTime derives a "N min read" string from the body word count.
// Used when an author omits readingTime; an existing value is never replaced.
func EstimateReadingTime(body string) string {
	words := len(strings.Fields(body))
	mins := (words + readingTimeWPM - 1) / readingTimeWPM
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("%d min read", mins)
}
