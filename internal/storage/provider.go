// Package storage defines the corpus file-system abstraction.
package storage

import (
	"time"

	"github.com/starford/ansuz/internal/article"
)

// Provider is the interface for corpus file operations.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to corpus root).
	List(dir string) ([]article.Metadata, error)
	// Read returns the raw bytes of the file at path (relative to corpus root).
	Read(path string) ([]byte, error)
	// ModTime returns the last modification time of the file at path.
	ModTime(path string) (time.Time, error)
	// Write atomically writes content to path (relative to corpus root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to corpus root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to corpus root).
	Move(oldPath, newPath string) error
}
