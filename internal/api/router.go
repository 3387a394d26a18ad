package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/articleservice"
)

// NewRouter creates a chi router with all API routes mounted.
// auth controls request authentication for every route in the group.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// corpusRoot is used to resolve the assets directory.
func NewRouter(svc *articleservice.Service, auth AuthOptions, sseHandler http.Handler, corpusRoot string) chi.Router {
	h := NewHandler(svc)
	ah := NewAssetHandler(corpusRoot)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(auth))

	// Articles CRUD.
	r.Get("/articles", h.ListArticles)
	r.Post("/articles", h.CreateArticle)
	r.Get("/articles/*", h.GetArticle)
	r.Put("/articles/*", h.UpdateArticle)
	r.Delete("/articles/*", h.DeleteArticle)

	// Search.
	r.Get("/search", h.Search)

	// Taxonomies.
	r.Get("/categories", h.Categories)
	r.Get("/tags", h.Tags)

	// Lint.
	r.Post("/lint", h.Lint)

	// Asset upload (auth-protected).
	r.Post("/assets", ah.Upload)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
