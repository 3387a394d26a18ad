// Package articleservice coordinates storage and index operations for the
// article corpus.
package articleservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/article"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/lint"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/validate"
)

// ValidationError carries the full accumulated diagnostic list for a
// rejected write, so an author sees every problem in one response.
type ValidationError struct {
	Diagnostics validate.Diagnostics
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Diagnostics.Error()
}

// Unwrap lets callers match with errors.Is(err, apperr.ErrInvalid).
func (e *ValidationError) Unwrap() error { return apperr.ErrInvalid }

// ArticleDetail is the full representation of one article.
type ArticleDetail struct {
	Key         string               `json:"key"`
	Path        string               `json:"path"`
	Title       string               `json:"title"`
	Frontmatter article.Frontmatter  `json:"frontmatter"`
	Raw         map[string]any       `json:"raw,omitempty"`
	Body        string               `json:"body"`
	BodyHTML    string               `json:"body_html,omitempty"`
	Checksum    string               `json:"checksum"`
	Diagnostics validate.Diagnostics `json:"diagnostics,omitempty"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// ArticleListItem is a lightweight item in a list response.
type ArticleListItem struct {
	Key         string    `json:"key"`
	Path        string    `json:"path"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt,omitempty"`
	Category    string    `json:"category,omitempty"`
	Author      string    `json:"author,omitempty"`
	ReadingTime string    `json:"reading_time,omitempty"`
	Tags        []string  `json:"tags"`
	Checksum    string    `json:"checksum"`
	PublishedAt string    `json:"published_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Service coordinates storage and index operations.
type Service struct {
	store     storage.Provider
	db        *index.DB
	separator string
}

// NewService creates a new article service.
func NewService(store storage.Provider, db *index.DB, separator string) *Service {
	if separator == "" {
		separator = parser.DefaultSeparator
	}
	return &Service{store: store, db: db, separator: separator}
}

// GetArticle reads one article by index key (path, or path#n inside a
// multi-article export file) and parses it. renderHTML additionally renders
// the Markdown body via goldmark.
func (s *Service) GetArticle(_ context.Context, key string, renderHTML bool) (*ArticleDetail, error) {
	path := article.KeyPath(key)
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	segs := parser.Split(data, s.separator)
	idx, err := segmentIndex(key, path)
	if err != nil || idx >= len(segs) {
		return nil, apperr.ErrNotFound
	}

	modTime, err := s.store.ModTime(path)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(key, path, segs[idx], renderHTML, modTime)
}

// CreateArticle validates and writes a new single-article file, then indexes
// it. When readingTime is absent it is derived from the body; everything
// else is stored exactly as the author wrote it.
func (s *Service) CreateArticle(_ context.Context, path string, content []byte) (*ArticleDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}

	segs := parser.Split(content, s.separator)
	if len(segs) != 1 {
		return nil, fmt.Errorf("%w: create expects exactly one article per file", apperr.ErrInvalid)
	}

	res, err := parser.Parse(segs[0])
	if err != nil {
		return nil, err
	}
	if ds := validate.Frontmatter(res.Frontmatter); ds.HasErrors() {
		return nil, &ValidationError{Diagnostics: ds}
	}

	if res.Frontmatter.ReadingTime == "" {
		fm := res.Frontmatter
		fm.ReadingTime = article.EstimateReadingTime(res.Body)
		if content, err = parser.Serialize(fm, res.Body); err != nil {
			return nil, err
		}
	}

	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := index.IndexFile(s.db, path, content, s.separator); err != nil {
		return nil, err
	}
	modTime, err := s.store.ModTime(path)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(path, path, content, false, modTime)
}

// UpdateArticle replaces a single-article file with optimistic concurrency:
// ifMatch, when set, must equal the stored file checksum. Published articles
// are frozen apart from their body: frontmatter changes are rejected with
// per-field diagnostics. The updatedAt timestamp is refreshed on every
// successful write.
func (s *Service) UpdateArticle(_ context.Context, path string, content []byte, ifMatch string) (*ArticleDetail, error) {
	existing, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}

	segs := parser.Split(content, s.separator)
	if len(segs) != 1 {
		return nil, fmt.Errorf("%w: update expects exactly one article per file", apperr.ErrInvalid)
	}
	res, err := parser.Parse(segs[0])
	if err != nil {
		return nil, err
	}
	ds := validate.Frontmatter(res.Frontmatter)
	if prev := storedFrontmatter(existing, s.separator); prev != nil && prev.Published() {
		ds = append(ds, immutableFieldChanges(*prev, res.Frontmatter)...)
	}
	if ds.HasErrors() {
		return nil, &ValidationError{Diagnostics: ds}
	}

	fm := res.Frontmatter
	fm.UpdatedAt = time.Now().UTC().Format("2006-01-02T15:04:05Z07:00")
	if fm.ReadingTime == "" {
		fm.ReadingTime = article.EstimateReadingTime(res.Body)
	}
	canonical, err := parser.Serialize(fm, res.Body)
	if err != nil {
		return nil, err
	}

	if err := s.store.Write(path, canonical); err != nil {
		return nil, err
	}
	if err := index.IndexFile(s.db, path, canonical, s.separator); err != nil {
		return nil, err
	}
	modTime, err := s.store.ModTime(path)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(path, path, canonical, false, modTime)
}

// DeleteArticle removes a corpus file and all its index rows.
func (s *Service) DeleteArticle(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return s.db.DeleteFile(path)
}

// ListArticles returns paginated articles with optional taxonomy filters.
func (s *Service) ListArticles(_ context.Context, limit, offset int, f index.ListFilter) ([]ArticleListItem, int, error) {
	rows, total, err := s.db.ListArticles(limit, offset, f)
	if err != nil {
		return nil, 0, err
	}
	items := make([]ArticleListItem, len(rows))
	for i, r := range rows {
		items[i] = ArticleListItem{
			Key:         r.Key,
			Path:        r.Path,
			Title:       r.Title,
			Excerpt:     r.Excerpt,
			Category:    r.CategorySlug,
			Author:      r.AuthorSlug,
			ReadingTime: r.ReadingTime,
			Tags:        nonNilSlice(r.Tags),
			Checksum:    r.Checksum,
			PublishedAt: r.PublishedAt,
			UpdatedAt:   r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Categories returns all categories with article counts.
func (s *Service) Categories(_ context.Context) ([]index.TaxonomyCount, error) {
	return s.db.Categories()
}

// Tags returns all tags with article counts.
func (s *Service) Tags(_ context.Context) ([]index.TaxonomyCount, error) {
	return s.db.Tags()
}

// LintContent validates raw article content without writing anything.
func (s *Service) LintContent(_ context.Context, name string, content []byte) []lint.ArticleReport {
	if name == "" {
		name = "input.md"
	}
	return lint.Content(name, content, s.separator)
}

// LintCorpus lints every file in the corpus.
func (s *Service) LintCorpus(_ context.Context) (*lint.Report, error) {
	return lint.Run(s.store, s.separator)
}

// storedFrontmatter parses the first segment of an existing file. A nil
// return means the stored content cannot be compared against (malformed or
// empty), in which case the update is judged on its own frontmatter alone.
func storedFrontmatter(data []byte, separator string) *article.Frontmatter {
	segs := parser.Split(data, separator)
	if len(segs) == 0 {
		return nil
	}
	res, err := parser.Parse(segs[0])
	if err != nil {
		return nil
	}
	return &res.Frontmatter
}

// immutableFieldChanges compares an update against the stored frontmatter of
// a published article. Only the body may change after publication (updatedAt
// is server-managed and readingTime is derived from the body); every other
// field that differs yields an error diagnostic.
func immutableFieldChanges(old, upd article.Frontmatter) validate.Diagnostics {
	var ds validate.Diagnostics
	frozen := func(field string, changed bool) {
		if changed {
			ds = append(ds, validate.Diagnostic{
				Field:    field,
				Message:  "cannot change after publication",
				Severity: validate.SeverityError,
			})
		}
	}
	frozen("title", upd.Title != old.Title)
	frozen("excerpt", upd.Excerpt != old.Excerpt)
	frozen("category", upd.Category != old.Category)
	frozen("author", upd.Author != old.Author)
	frozen("date", upd.Date != old.Date)
	frozen("publishedAt", upd.PublishedAt != old.PublishedAt)
	frozen("tags", !slices.Equal(upd.Tags, old.Tags))
	return ds
}

// buildDetail constructs an ArticleDetail from raw segment data without
// re-reading the file. Validation warnings ride along as diagnostics.
// modTime is the file's modification time as reported by storage.
func (s *Service) buildDetail(key, path string, seg []byte, renderHTML bool, modTime time.Time) (*ArticleDetail, error) {
	res, err := parser.Parse(seg)
	if err != nil {
		return nil, err
	}
	detail := &ArticleDetail{
		Key:         key,
		Path:        path,
		Title:       res.Frontmatter.Title,
		Frontmatter: res.Frontmatter,
		Raw:         res.Raw,
		Body:        res.Body,
		Checksum:    checksum.Sum(seg),
		Diagnostics: validate.Frontmatter(res.Frontmatter),
		UpdatedAt:   modTime,
	}
	if renderHTML {
		htmlBody, err := render.HTML(res.Body)
		if err != nil {
			return nil, err
		}
		detail.BodyHTML = htmlBody
	}
	return detail, nil
}

// segmentIndex converts an index key back to a 0-based segment position.
func segmentIndex(key, path string) (int, error) {
	if key == path {
		return 0, nil
	}
	suffix := strings.TrimPrefix(key, path+"#")
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 2 {
		return 0, fmt.Errorf("bad segment key %q", key)
	}
	return n - 1, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
