// Package validate checks article frontmatter against the corpus schema and
// reports every problem in one pass so an author can fix a file in a single
// edit, rather than stopping at the first missing field.
package validate

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	slug "github.com/goliatone/go-slug"

	"github.com/starford/ansuz/internal/article"
)

// Severity classifies a diagnostic.
type Severity string

const (
	// SeverityError marks a violation of a required-field invariant.
	SeverityError Severity = "error"
	// SeverityWarning marks a convention breach (slug shape, date format).
	SeverityWarning Severity = "warning"
)

// Diagnostic is one problem found in a frontmatter block.
type Diagnostic struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Field, d.Message)
}

// Diagnostics is the accumulated result of validating one frontmatter block.
type Diagnostics []Diagnostic

// HasErrors reports whether any diagnostic is error severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Error joins all diagnostics into one message.
func (ds Diagnostics) Error() string {
	msgs := make([]string, len(ds))
	for i, d := range ds {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "; ")
}

// Accepted layouts for date / publishedAt / updatedAt values.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
}

// Frontmatter validates a parsed frontmatter block. Required fields (title,
// category.slug) report errors; convention breaches report warnings. All
// checks run regardless of earlier failures.
func Frontmatter(fm article.Frontmatter) Diagnostics {
	var ds Diagnostics

	if strings.TrimSpace(fm.Title) == "" {
		ds = append(ds, Diagnostic{Field: "title", Message: "required field is missing or empty", Severity: SeverityError})
	}
	if strings.TrimSpace(fm.Category.Slug) == "" {
		ds = append(ds, Diagnostic{Field: "category.slug", Message: "required field is missing or empty", Severity: SeverityError})
	} else if !slug.IsValid(fm.Category.Slug) {
		ds = append(ds, Diagnostic{Field: "category.slug", Message: "not URL-safe (expected lowercase, hyphenated)", Severity: SeverityWarning})
	}

	if fm.Author.Slug != "" && !slug.IsValid(fm.Author.Slug) {
		ds = append(ds, Diagnostic{Field: "author.slug", Message: "not URL-safe (expected lowercase, hyphenated)", Severity: SeverityWarning})
	}

	ds = append(ds, checkDate("date", fm.Date)...)
	ds = append(ds, checkDate("publishedAt", fm.PublishedAt)...)
	ds = append(ds, checkDate("updatedAt", fm.UpdatedAt)...)

	return ds
}

// checkDate reports a warning when value is present but not ISO-8601.
func checkDate(field, value string) Diagnostics {
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if err := validation.Validate(value, validation.Date(layout)); err == nil {
			return nil
		}
	}
	return Diagnostics{{
		Field:    field,
		Message:  fmt.Sprintf("%q is not an ISO-8601 date or datetime", value),
		Severity: SeverityWarning,
	}}
}
