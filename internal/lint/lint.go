// Package lint walks the corpus and reports frontmatter diagnostics the way
// a human author fixes them: every problem in every file, in one pass.
package lint

import (
	"fmt"
	"io"

	"github.com/starford/ansuz/internal/article"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/validate"
)

// ArticleReport holds diagnostics for one article segment of a file.
type ArticleReport struct {
	Key         string               `json:"key"`
	ParseError  string               `json:"parse_error,omitempty"`
	Diagnostics validate.Diagnostics `json:"diagnostics,omitempty"`
}

// FileReport holds the outcome for one corpus file.
type FileReport struct {
	Path     string          `json:"path"`
	ReadErr  string          `json:"read_error,omitempty"`
	Articles []ArticleReport `json:"articles,omitempty"`
}

// Report is the result of linting the whole corpus.
type Report struct {
	Files    []FileReport `json:"files"`
	Scanned  int          `json:"scanned"`
	Articles int          `json:"articles"`
	Errors   int          `json:"errors"`
	Warnings int          `json:"warnings"`
}

// Clean reports whether the corpus has no error-severity findings.
// Warnings alone do not fail a lint run.
func (r *Report) Clean() bool {
	return r.Errors == 0
}

// Run lints every .md file under the corpus root. Only files with findings
// appear in the report; the counters cover the whole corpus.
func Run(store storage.Provider, separator string) (*Report, error) {
	metas, err := store.List("")
	if err != nil {
		return nil, fmt.Errorf("lint: %w", err)
	}

	rep := &Report{}
	for _, m := range metas {
		rep.Scanned++

		data, err := store.Read(m.Path)
		if err != nil {
			rep.Errors++
			rep.Files = append(rep.Files, FileReport{Path: m.Path, ReadErr: err.Error()})
			continue
		}

		fr := FileReport{Path: m.Path}
		for _, ar := range Content(m.Path, data, separator) {
			rep.Articles++
			switch {
			case ar.ParseError != "":
				rep.Errors++
				fr.Articles = append(fr.Articles, ar)
			case len(ar.Diagnostics) > 0:
				for _, d := range ar.Diagnostics {
					if d.Severity == validate.SeverityError {
						rep.Errors++
					} else {
						rep.Warnings++
					}
				}
				fr.Articles = append(fr.Articles, ar)
			}
		}
		if len(fr.Articles) > 0 {
			rep.Files = append(rep.Files, fr)
		}
	}

	return rep, nil
}

// Content lints raw article data without touching the filesystem: the input
// is split on the separator token and every segment parsed and validated
// independently. name seeds the per-segment keys.
func Content(name string, data []byte, separator string) []ArticleReport {
	var out []ArticleReport
	for i, seg := range parser.Split(data, separator) {
		ar := ArticleReport{Key: article.SegmentKey(name, i)}
		res, err := parser.Parse(seg)
		if err != nil {
			ar.ParseError = err.Error()
		} else {
			ar.Diagnostics = validate.Frontmatter(res.Frontmatter)
		}
		out = append(out, ar)
	}
	return out
}

// Write prints the report in compiler-style "path: field: message" lines
// followed by a summary.
func (r *Report) Write(w io.Writer) {
	for _, f := range r.Files {
		if f.ReadErr != "" {
			fmt.Fprintf(w, "%s: error: %s\n", f.Path, f.ReadErr)
			continue
		}
		for _, a := range f.Articles {
			if a.ParseError != "" {
				fmt.Fprintf(w, "%s: error: %s\n", a.Key, a.ParseError)
				continue
			}
			for _, d := range a.Diagnostics {
				fmt.Fprintf(w, "%s: %s: %s: %s\n", a.Key, d.Severity, d.Field, d.Message)
			}
		}
	}
	fmt.Fprintf(w, "%d files, %d articles, %d errors, %d warnings\n",
		r.Scanned, r.Articles, r.Errors, r.Warnings)
}
