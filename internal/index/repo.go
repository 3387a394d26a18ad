package index

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ArticleRow represents a row in the articles table.
type ArticleRow struct {
	Key          string
	Path         string
	Title        string
	Excerpt      string
	CategoryName string
	CategorySlug string
	AuthorName   string
	AuthorSlug   string
	ReadingTime  string
	Tags         []string
	Checksum     string
	PublishedAt  string
	UpdatedAt    time.Time
}

// IndexedArticle pairs a row with the Markdown body it was parsed from.
type IndexedArticle struct {
	Row  ArticleRow
	Body string
}

// SearchResult represents one search hit.
type SearchResult struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// TaxonomyCount is one category or tag with its article count.
type TaxonomyCount struct {
	Slug  string `json:"slug"`
	Name  string `json:"name,omitempty"`
	Count int    `json:"count"`
}

// ListFilter narrows and orders a ListArticles query.
type ListFilter struct {
	Category string
	Tag      string
	Author   string
	Sort     string // "published_at" (default), "updated_at", "title", "path"
}

// ReplaceFile atomically swaps all index rows for one corpus file: old rows
// and FTS entries for path are removed, the new articles inserted, and the
// file checksum recorded, all in a single transaction.
func (db *DB) ReplaceFile(path, checksum string, articles []IndexedArticle) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM articles WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: clear articles: %w", err)
	}
	ftsDeletePath(tx, path)

	for _, a := range articles {
		tagsJSON, _ := json.Marshal(a.Row.Tags)
		_, err := tx.Exec(`
			INSERT INTO articles (key, path, title, excerpt, category_name, category_slug,
			                      author_name, author_slug, reading_time, tags, checksum,
			                      body, published_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.Row.Key, path, a.Row.Title, a.Row.Excerpt, a.Row.CategoryName, a.Row.CategorySlug,
			a.Row.AuthorName, a.Row.AuthorSlug, a.Row.ReadingTime, string(tagsJSON), a.Row.Checksum,
			a.Body, a.Row.PublishedAt, a.Row.UpdatedAt)
		if err != nil {
			return fmt.Errorf("index: insert article %s: %w", a.Row.Key, err)
		}
		if err := ftsUpsert(tx, a); err != nil {
			return err
		}
	}

	_, err = tx.Exec(`
		INSERT INTO files (path, checksum, indexed_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET checksum = excluded.checksum, indexed_at = excluded.indexed_at
	`, path, checksum, time.Now())
	if err != nil {
		return fmt.Errorf("index: upsert file: %w", err)
	}

	return tx.Commit()
}

// DeleteFile removes every article of a corpus file plus its checksum record.
func (db *DB) DeleteFile(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDeletePath(tx, path)
	_, _ = tx.Exec(`DELETE FROM articles WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM files WHERE path = ?`, path)

	return tx.Commit()
}

// FileChecksums returns the recorded checksum for every indexed corpus file.
func (db *DB) FileChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: file checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ListArticles returns one page of articles plus the total match count.
func (db *DB) ListArticles(limit, offset int, f ListFilter) ([]ArticleRow, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := "1=1"
	var args []any
	if f.Category != "" {
		where += " AND category_slug = ?"
		args = append(args, f.Category)
	}
	if f.Author != "" {
		where += " AND author_slug = ?"
		args = append(args, f.Author)
	}
	if f.Tag != "" {
		// Tags are stored as a JSON array of strings.
		where += " AND tags LIKE ?"
		args = append(args, `%"`+f.Tag+`"%`)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM articles WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count articles: %w", err)
	}

	order := "published_at DESC, key ASC"
	switch f.Sort {
	case "", "published_at":
	case "updated_at":
		order = "updated_at DESC, key ASC"
	case "title":
		order = "title COLLATE NOCASE ASC, key ASC"
	case "path":
		order = "key ASC"
	default:
		return nil, 0, fmt.Errorf("index: unknown sort %q", f.Sort)
	}

	query := fmt.Sprintf(`
		SELECT key, path, title, excerpt, category_name, category_slug,
		       author_name, author_slug, reading_time, tags, checksum,
		       published_at, updated_at
		FROM articles WHERE %s ORDER BY %s LIMIT ? OFFSET ?
	`, where, order)
	rows, err := db.conn.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list articles: %w", err)
	}
	defer rows.Close()

	var out []ArticleRow
	for rows.Next() {
		r, err := scanArticle(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(sc rowScanner) (ArticleRow, error) {
	var r ArticleRow
	var tagsJSON string
	err := sc.Scan(&r.Key, &r.Path, &r.Title, &r.Excerpt, &r.CategoryName, &r.CategorySlug,
		&r.AuthorName, &r.AuthorSlug, &r.ReadingTime, &tagsJSON, &r.Checksum,
		&r.PublishedAt, &r.UpdatedAt)
	if err != nil {
		return r, fmt.Errorf("index: scan article: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
		r.Tags = nil
	}
	return r, nil
}

// Categories returns every category with its article count, alphabetical by slug.
func (db *DB) Categories() ([]TaxonomyCount, error) {
	rows, err := db.conn.Query(`
		SELECT category_slug, MAX(category_name), COUNT(*)
		FROM articles
		WHERE category_slug != ''
		GROUP BY category_slug
		ORDER BY category_slug
	`)
	if err != nil {
		return nil, fmt.Errorf("index: categories: %w", err)
	}
	defer rows.Close()

	var out []TaxonomyCount
	for rows.Next() {
		var t TaxonomyCount
		if err := rows.Scan(&t.Slug, &t.Name, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Tags returns every tag with its article count, alphabetical. Tags live in a
// JSON column, so the aggregation happens in Go rather than SQL.
func (db *DB) Tags() ([]TaxonomyCount, error) {
	rows, err := db.conn.Query(`SELECT tags FROM articles`)
	if err != nil {
		return nil, fmt.Errorf("index: tags: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tagsJSON string
		if err := rows.Scan(&tagsJSON); err != nil {
			return nil, err
		}
		var tags []string
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			continue
		}
		for _, t := range tags {
			counts[t]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]TaxonomyCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TaxonomyCount{Slug: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}
