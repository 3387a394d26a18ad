package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	assetDir       = "assets"
	maxUploadBytes = 50 << 20 // 50 MB
)

// AssetHandler serves and accepts article asset files (images, diagrams).
type AssetHandler struct {
	corpusRoot string
}

// NewAssetHandler creates a handler rooted at the corpus directory.
func NewAssetHandler(corpusRoot string) *AssetHandler {
	return &AssetHandler{corpusRoot: corpusRoot}
}

// assetPath returns the absolute path to the assets directory.
func (h *AssetHandler) assetPath() string {
	return filepath.Join(h.corpusRoot, assetDir)
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal) and returns the absolute path under the assets dir.
func (h *AssetHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	// Reject anything with path separators or traversal.
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	abs := filepath.Join(h.assetPath(), cleaned)
	// Double-check the resolved path is under the assets dir.
	if !strings.HasPrefix(abs, h.assetPath()+string(os.PathSeparator)) && abs != h.assetPath() {
		return "", fmt.Errorf("path escapes assets directory")
	}
	return abs, nil
}

// ServeFile handles GET /assets/{filename}.
func (h *AssetHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	abs, err := h.safeName(filename)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/assets (multipart/form-data, field "file").
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid multipart")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'file' field in multipart form")
		return
	}
	defer file.Close()

	abs, err := h.safeName(header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Ensure assets directory exists.
	if err := os.MkdirAll(h.assetPath(), 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create assets dir")
		return
	}

	dst, err := os.Create(abs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create file")
		return
	}
	defer dst.Close()

	written, err := io.Copy(dst, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to write file")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"filename": header.Filename,
		"size":     written,
		"url":      "/assets/" + header.Filename,
	})
}
