package index

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/ansuz/internal/article"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// Sync walks the corpus and brings the index up to date:
//   - new/changed files are split, parsed, and upserted
//   - files removed from disk are deleted from the index
//
// Files with malformed frontmatter are skipped with a warning; they stay out
// of the index until the author fixes them (lint reports the details).
func Sync(db *DB, store storage.Provider, separator string, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.FileChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data, separator); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteFile(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile splits data on the separator token, parses every segment, and
// replaces the file's index rows. A parse failure in any segment leaves the
// previous index state untouched so broken edits never half-index.
func IndexFile(db *DB, path string, data []byte, separator string) error {
	segs := parser.Split(data, separator)
	if len(segs) == 0 {
		return fmt.Errorf("index %s: file contains no article content", path)
	}

	now := time.Now()
	articles := make([]IndexedArticle, 0, len(segs))
	for i, seg := range segs {
		res, err := parser.Parse(seg)
		if err != nil {
			return fmt.Errorf("index %s segment %d: %w", path, i+1, err)
		}
		fm := res.Frontmatter
		published := fm.PublishedAt
		if published == "" {
			published = fm.Date
		}
		articles = append(articles, IndexedArticle{
			Row: ArticleRow{
				Key:          article.SegmentKey(path, i),
				Path:         path,
				Title:        fm.Title,
				Excerpt:      fm.Excerpt,
				CategoryName: fm.Category.Name,
				CategorySlug: fm.Category.Slug,
				AuthorName:   fm.Author.Name,
				AuthorSlug:   fm.Author.Slug,
				ReadingTime:  fm.ReadingTime,
				Tags:         fm.Tags,
				Checksum:     checksum.Sum(seg),
				PublishedAt:  published,
				UpdatedAt:    now,
			},
			Body: res.Body,
		})
	}

	return db.ReplaceFile(path, checksum.Sum(data), articles)
}
