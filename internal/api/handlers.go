package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/articleservice"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/parser"
)

// Handler holds API route handlers.
type Handler struct {
	svc *articleservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *articleservice.Service) *Handler {
	return &Handler{svc: svc}
}

// articleKey extracts the article key from the URL (everything after
// /api/articles/). Supports encoded slashes and segment markers from
// OpenAPI clients (e.g. docker%2Fintro.md%232).
func articleKey(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListArticles handles GET /api/articles.
//
//	@Summary		List articles with optional pagination and filtering
//	@Tags			articles
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			category	query		string	false	"Filter by category slug"
//	@Param			tag			query		string	false	"Filter by tag"
//	@Param			author		query		string	false	"Filter by author slug"
//	@Param			sort		query		string	false	"Sort field"	Enums(published_at, updated_at, title, path)
//	@Success		200			{object}	ArticleListResponse
//	@Security		BearerAuth
//	@Router			/articles [get]
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	f := index.ListFilter{
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
		Author:   q.Get("author"),
		Sort:     q.Get("sort"),
	}

	items, total, err := h.svc.ListArticles(r.Context(), limit, offset, f)
	if err != nil {
		slog.Error("list articles failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"articles": items,
		"total":    total,
	})
}

// GetArticle handles GET /api/articles/*.
//
//	@Summary		Get a single article by key
//	@Tags			articles
//	@Produce		json
//	@Param			key		path		string	true	"Article key (path, or path#n for export segments)"
//	@Param			render	query		string	false	"Set to html to include a rendered body"
//	@Success		200		{object}	ArticleDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{key} [get]
func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	key := articleKey(r)
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	renderHTML := r.URL.Query().Get("render") == "html"
	detail, err := h.svc.GetArticle(r.Context(), key, renderHTML)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeError(w, http.StatusNotFound, "not found")
		case errors.Is(err, parser.ErrMalformedFrontmatter):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			slog.Error("get article failed", slog.String("key", key), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// CreateArticle handles POST /api/articles.
//
//	@Summary		Create a new article
//	@Tags			articles
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateArticleRequest	true	"Article to create"
//	@Success		201		{object}	ArticleDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	ValidationErrorResponse
//	@Security		BearerAuth
//	@Router			/articles [post]
func (h *Handler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Path == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "path and content are required")
		return
	}
	detail, err := h.svc.CreateArticle(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		h.writeArticleError(w, "create article", req.Path, err, "article already exists")
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// UpdateArticle handles PUT /api/articles/*.
//
//	@Summary		Update an article with optimistic concurrency
//	@Tags			articles
//	@Accept			json
//	@Produce		json
//	@Param			key			path		string					true	"Article path"
//	@Param			If-Match	header		string					false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		UpdateArticleRequest	true	"Updated content"
//	@Success		200			{object}	ArticleDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		422			{object}	ValidationErrorResponse
//	@Security		BearerAuth
//	@Router			/articles/{key} [put]
func (h *Handler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	path := articleKey(r)
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	detail, err := h.svc.UpdateArticle(r.Context(), path, []byte(req.Content), ifMatch)
	if err != nil {
		h.writeArticleError(w, "update article", path, err, "checksum mismatch")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// writeArticleError maps service errors for write endpoints. conflictMsg
// covers both ErrAlreadyExists (create) and ErrConflict (update).
func (h *Handler) writeArticleError(w http.ResponseWriter, op, path string, err error, conflictMsg string) {
	var verr *articleservice.ValidationError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrAlreadyExists), errors.Is(err, apperr.ErrConflict):
		writeError(w, http.StatusConflict, conflictMsg)
	case errors.As(err, &verr):
		writeDiagnostics(w, verr.Diagnostics)
	case errors.Is(err, parser.ErrMalformedFrontmatter), errors.Is(err, apperr.ErrInvalid):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error(op+" failed", slog.String("path", path), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// DeleteArticle handles DELETE /api/articles/*.
//
//	@Summary		Delete an article file
//	@Tags			articles
//	@Param			key	path	string	true	"Article path"
//	@Success		204	"Article deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{key} [delete]
func (h *Handler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	path := articleKey(r)
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	if err := h.svc.DeleteArticle(r.Context(), path); err != nil {
		slog.Error("delete article failed", slog.String("path", path), slog.String("error", err.Error()))
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across articles
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Categories handles GET /api/categories.
//
//	@Summary		List categories with article counts
//	@Tags			taxonomy
//	@Produce		json
//	@Success		200	{object}	TaxonomyResponse
//	@Security		BearerAuth
//	@Router			/categories [get]
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Categories(r.Context())
	if err != nil {
		slog.Error("categories failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Tags handles GET /api/tags.
//
//	@Summary		List tags with article counts
//	@Tags			taxonomy
//	@Produce		json
//	@Success		200	{object}	TaxonomyResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Tags(r.Context())
	if err != nil {
		slog.Error("tags failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Lint handles POST /api/lint.
//
//	@Summary		Validate raw article content without writing it
//	@Tags			lint
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LintRequest	true	"Content to lint"
//	@Success		200		{object}	LintResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lint [post]
func (h *Handler) Lint(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	reports := h.svc.LintContent(r.Context(), req.Name, []byte(req.Content))
	writeJSON(w, http.StatusOK, map[string]any{"articles": reports})
}
