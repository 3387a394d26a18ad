package index

// ArticleIndex defines the interface for article indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type ArticleIndex interface {
	ReplaceFile(path, checksum string, articles []IndexedArticle) error
	DeleteFile(path string) error
	ListArticles(limit, offset int, f ListFilter) ([]ArticleRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Categories() ([]TaxonomyCount, error)
	Tags() ([]TaxonomyCount, error)
	FileChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies ArticleIndex at compile time.
var _ ArticleIndex = (*DB)(nil)
