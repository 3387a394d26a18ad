//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS articles_fts USING fts5(
			key UNINDEXED,
			path UNINDEXED,
			title,
			excerpt,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, a IndexedArticle) error {
	_, _ = tx.Exec(`DELETE FROM articles_fts WHERE key = ?`, a.Row.Key)
	_, err := tx.Exec(`INSERT INTO articles_fts (key, path, title, excerpt, body, tags) VALUES (?, ?, ?, ?, ?, ?)`,
		a.Row.Key, a.Row.Path, a.Row.Title, a.Row.Excerpt, a.Body, strings.Join(a.Row.Tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDeletePath(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM articles_fts WHERE path = ?`, path)
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT key,
		       title,
		       snippet(articles_fts, 4, '<b>', '</b>', '...', 64)
		FROM articles_fts
		WHERE articles_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Key, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
