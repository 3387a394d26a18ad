// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Ansuz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/articleservice"
	"github.com/starford/ansuz/internal/storage"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
	svc   *articleservice.Service
}

// New creates a new MCP server with all Ansuz tools registered.
func New(store storage.Provider, svc *articleservice.Service) *Server {
	s := &Server{store: store, svc: svc}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_articles",
		mcp.WithDescription("Full-text search through article titles, excerpts, and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchArticles)

	s.mcp.AddTool(mcp.NewTool("read_article",
		mcp.WithDescription("Read the full content of a Markdown article."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the article (e.g. docker/intro.md)")),
	), s.readArticle)

	s.mcp.AddTool(mcp.NewTool("create_article",
		mcp.WithDescription("Create a new Markdown article at the specified path. "+
			"Content MUST follow the canonical article format (YAML frontmatter with title, "+
			"category, author, tags, Markdown body). Read the contract first via the "+
			"get_article_contract tool or the ansuz://article-format resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new article (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the Ansuz article format contract")),
	), s.createArticle)

	s.mcp.AddTool(mcp.NewTool("validate_article",
		mcp.WithDescription("Validate article content against the frontmatter schema without "+
			"writing it. Reports every problem in one pass (missing fields, malformed "+
			"frontmatter, slug and date conventions)."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Raw article content to validate")),
	), s.validateArticle)

	s.mcp.AddTool(mcp.NewTool("get_article_contract",
		mcp.WithDescription("Returns the canonical Ansuz article format contract. "+
			"Call this before creating articles to ensure correct structure."),
	), s.getArticleContract)

	s.mcp.AddTool(mcp.NewTool("list_articles",
		mcp.WithDescription("List all articles or articles in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listArticles)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Download an image (or PDF) from a URL or data URI and store it "+
			"in the corpus assets directory. Idempotent for identical content; name "+
			"collisions with different content get a checksum suffix. Returns a Markdown "+
			"snippet ready to paste into an article body."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or base64 data URI of the asset")),
		mcp.WithString("filename", mcp.Description("Optional target filename (derived from the URL when omitted)")),
		mcp.WithString("alt", mcp.Description("Optional alt text for the Markdown snippet (derived from the filename when omitted)")),
	), s.uploadAsset)

	// Resource: article format contract.
	s.mcp.AddResource(
		mcp.NewResource("ansuz://article-format", "Article Format Contract",
			mcp.WithResourceDescription("Canonical Markdown article format that all articles must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readArticleFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchArticles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) createArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := s.svc.CreateArticle(ctx, path, []byte(content)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", path)), nil
}

func (s *Server) validateArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reports := s.svc.LintContent(ctx, "draft.md", []byte(content))
	clean := true
	for _, r := range reports {
		if r.ParseError != "" || len(r.Diagnostics) > 0 {
			clean = false
			break
		}
	}
	if clean {
		return mcp.NewToolResultText("valid: no problems found"), nil
	}
	out, _ := json.MarshalIndent(reports, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listArticles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = f
	}

	metas, err := s.store.List(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var paths []string
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getArticleContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ArticleFormatContract), nil
}

func (s *Server) readArticleFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ansuz://article-format",
			MIMEType: "text/markdown",
			Text:     ArticleFormatContract,
		},
	}, nil
}
