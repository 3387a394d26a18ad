//go:build sqlite_fts5

package index

import (
	"testing"
	"time"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM articles_fts`).Scan(&count); err != nil {
		t.Fatalf("articles_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	r := ArticleRow{
		Key:       "fts.md",
		Path:      "fts.md",
		Title:     "FTS Article",
		Tags:      []string{"search"},
		UpdatedAt: time.Now(),
	}
	err := db.ReplaceFile("fts.md", "f1", []IndexedArticle{
		{Row: r, Body: "Ansuz provides powerful full-text search capabilities."},
	})
	if err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Key != "fts.md" {
		t.Errorf("key = %q", results[0].Key)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.ReplaceFile("gone.md", "g", []IndexedArticle{
		{Row: row("gone.md", "gone.md", "Gone"), Body: "vanishing content"},
	})
	_ = db.DeleteFile("gone.md")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Key == "gone.md" {
			t.Error("deleted article still in FTS index")
		}
	}
}

func TestFTS5_ReplaceSwapsContent(t *testing.T) {
	db := testDB(t)
	_ = db.ReplaceFile("evo.md", "1", []IndexedArticle{
		{Row: row("evo.md", "evo.md", "Old"), Body: "original text"},
	})
	_ = db.ReplaceFile("evo.md", "2", []IndexedArticle{
		{Row: row("evo.md", "evo.md", "New"), Body: "replacement text"},
	})

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
