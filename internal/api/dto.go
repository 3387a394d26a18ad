package api

import (
	"github.com/starford/ansuz/internal/articleservice"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/lint"
	"github.com/starford/ansuz/internal/validate"
)

// CreateArticleRequest is the request body for creating an article.
type CreateArticleRequest struct {
	Path    string `json:"path" example:"docker/getting-started.md" validate:"required"`
	Content string `json:"content" example:"---\ntitle: X\n---\nBody" validate:"required"`
}

// UpdateArticleRequest is the request body for updating an article.
type UpdateArticleRequest struct {
	Content string `json:"content" example:"---\ntitle: X\n---\nNew body" validate:"required"`
}

// LintRequest is the request body for linting raw content.
type LintRequest struct {
	Name    string `json:"name,omitempty" example:"draft.md"`
	Content string `json:"content" validate:"required"`
}

// ArticleDetail is the full article response type (aliased from the domain layer).
type ArticleDetail = articleservice.ArticleDetail

// ArticleListItem is a lightweight item in a list response (aliased from the domain layer).
type ArticleListItem = articleservice.ArticleListItem

// ArticleListResponse wraps paginated article listings.
type ArticleListResponse struct {
	Articles []ArticleListItem `json:"articles" validate:"required"`
	Total    int               `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Key     string `json:"key" example:"docker/getting-started.md" validate:"required"`
	Title   string `json:"title" example:"Getting Started with Docker" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// TaxonomyResponse wraps category or tag aggregates.
type TaxonomyResponse struct {
	Items []index.TaxonomyCount `json:"items" validate:"required"`
}

// LintResponse wraps the diagnostics for one lint request.
type LintResponse struct {
	Articles []lint.ArticleReport `json:"articles" validate:"required"`
}

// ValidationErrorResponse is returned when a write is rejected (422).
type ValidationErrorResponse struct {
	Error       string               `json:"error" validate:"required"`
	Diagnostics validate.Diagnostics `json:"diagnostics" validate:"required"`
}

// AssetUploadResponse is returned after a successful asset upload.
type AssetUploadResponse struct {
	Filename string `json:"filename" example:"diagram.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/assets/diagram.png" validate:"required"`
}
