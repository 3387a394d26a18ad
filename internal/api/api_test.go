package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starford/ansuz/internal/articleservice"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/storage"
)

const validContent = "---\ntitle: Hello World\ncategory:\n  name: Engineering\n  slug: engineering\ntags:\n  - go\n---\n# Hello\nBody text.\n"

// testEnv sets up a temp corpus, SQLite DB, service, and router for testing.
func testEnv(t *testing.T, auth AuthOptions) (*articleservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithCorpus(t, auth)
	return svc, router
}

func testEnvWithCorpus(t *testing.T, auth AuthOptions) (*articleservice.Service, http.Handler, string) {
	t.Helper()

	corpusDir := t.TempDir()
	store, err := storage.NewFS(corpusDir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	dbFile, err := os.CreateTemp("", "ansuz-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := articleservice.NewService(store, db, "")
	router := NewRouter(svc, auth, nil, corpusDir)
	return svc, router, corpusDir
}

func createArticle(t *testing.T, router http.Handler, path, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"path": path, "content": content})
	req := httptest.NewRequest(http.MethodPost, "/articles", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetArticle(t *testing.T) {
	_, router := testEnv(t, AuthOptions{})

	w := createArticle(t, router, "hello.md", validContent)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/articles/hello.md", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var detail ArticleDetail
	_ = json.Unmarshal(w.Body.Bytes(), &detail)
	if detail.Path != "hello.md" {
		t.Errorf("path = %q", detail.Path)
	}
	if detail.Title != "Hello World" {
		t.Errorf("title = %q, want Hello World", detail.Title)
	}
	if detail.Checksum == "" {
		t.Error("missing checksum")
	}
	if detail.Frontmatter.ReadingTime == "" {
		t.Error("readingTime should be derived on create")
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, AuthOptions{})

	if w := createArticle(t, router, "dup.md", validContent); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	if w := createArticle(t, router, "dup.md", validContent); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateRejectsInvalidFrontmatter(t *testing.T) {
	_, router := testEnv(t, AuthOptions{})

	// No title and no category.slug: the response must list both problems.
	w := createArticle(t, router, "bad.md", "---\nexcerpt: just an excerpt\n---\nbody\n")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body = %s", w.Code, w.Body.String())
	}
	var resp ValidationErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	fields := map[string]bool{}
	for _, d := range resp.Diagnostics {
		fields[d.Field] = true
	}
	if !fields["title"] || !fields["category.slug"] {
		t.Errorf("diagnostics must cover both missing fields: %+v", resp.Diagnostics)
	}
}

func TestCreateRejectsMalformedFrontmatter(t *testing.T) {
	_, router := testEnv(t, AuthOptions{})

	w := createArticle(t, router, "nofm.md", "# heading without frontmatter\n")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestCreateRejectsMultiArticleContent(t *testing.T) {
	_, router := testEnv(t, AuthOptions{})

	content := validContent + "<<<ARTICLE_BREAK>>>\n" + validContent
	w := createArticle(t, router, "multi.md", content)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, AuthOptions{})

	w := createArticle(t, router, "lock.md", validContent)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	var created ArticleDetail
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	updated := strings.Replace(validContent, "Body text.", "Revised body.", 1)
	body, _ := json.Marshal(map[string]string{"content": updated})

	// Wrong checksum: 409.
	req := httptest.NewRequest(http.MethodPut, "/articles/lock.md", bytes.NewReader(body))
	req.Header.Set("If-Match", "bogus-checksum")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("stale update = %d, want 409", w.Code)
	}

	// Correct checksum: 200.
	req = httptest.NewRequest(http.MethodPut, "/articles/lock.md", bytes.NewReader(body))
	req.Header.Set("If-Match", `"`+created.Checksum+`"`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	var detail ArticleDetail
	_ = json.Unmarshal(w.Body.Bytes(), &detail)
	if !strings.Contains(detail.Body, "Revised body.") {
		t.Errorf("body = %q", detail.Body)
	}
	if detail.Frontmatter.UpdatedAt == "" {
		t.Error("updatedAt should be refreshed on update")
	}
}

func TestUpdatePublishedArticleFrozenFields(t *testing.T) {
	const published = "---\ntitle: Launch Notes\npublishedAt: \"2024-03-01T09:00:00Z\"\ncategory:\n  name: Engineering\n  slug: engineering\ntags:\n  - go\n---\nShipped.\n"
	_, router := testEnv(t, AuthOptions{})

	if w := createArticle(t, router, "launch.md", published); w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}

	// Changing the title of a published article is rejected.
	retitled := strings.Replace(published, "Launch Notes", "Renamed Notes", 1)
	body, _ := json.Marshal(map[string]string{"content": retitled})
	req := httptest.NewRequest(http.MethodPut, "/articles/launch.md", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("retitle = %d, want 422, body = %s", w.Code, w.Body.String())
	}
	var verr ValidationErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &verr)
	found := false
	for _, d := range verr.Diagnostics {
		if d.Field == "title" {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics %v missing frozen title", verr.Diagnostics)
	}

	// The body is still editable.
	revised := strings.Replace(published, "Shipped.", "Shipped, with errata.", 1)
	body, _ = json.Marshal(map[string]string{"content": revised})
	req = httptest.NewRequest(http.MethodPut, "/articles/launch.md", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("body edit = %d, want 200, body = %s", w.Code, w.Body.String())
	}
}

func TestUpdateUnpublishedArticleStaysOpen(t *testing.T) {
	_, router := testEnv(t, AuthOptions{})

	if w := createArticle(t, router, "draft.md", validContent); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}

	// No publication date yet, so every field may still change.
	retitled := strings.Replace(validContent, "Hello World", "Second Draft", 1)
	body, _ := json.Marshal(map[string]string{"content": retitled})
	req := httptest.NewRequest(http.MethodPut, "/articles/draft.md", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("retitle draft = %d, want 200, body = %s", w.Code, w.Body.String())
	}
	var detail ArticleDetail
	_ = json.Unmarshal(w.Body.Bytes(), &detail)
	if detail.Title != "Second Draft" {
		t.Errorf("title = %q, want Second Draft", detail.Title)
	}
}

func TestGetArticleReportsFileModTime(t *testing.T) {
	_, router, corpusDir := testEnvWithCorpus(t, AuthOptions{})

	if w := createArticle(t, router, "aged.md", validContent); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	past := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	if err := os.Chtimes(filepath.Join(corpusDir, "aged.md"), past, past); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/articles/aged.md", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	var detail ArticleDetail
	_ = json.Unmarshal(w.Body.Bytes(), &detail)
	if diff := detail.UpdatedAt.Sub(past); diff < -time.Second || diff > time.Second {
		t.Errorf("updated_at = %v, want file modification time %v", detail.UpdatedAt, past)
	}
}

func TestUpdateNotFound(t *testing.T) {
	_, router := testEnv(t, AuthOptions{})

	body, _ := json.Marshal(map[string]string{"content": validContent})
	req := httptest.NewRequest(http.MethodPut, "/articles/ghost.md", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetRenderedHTML(t *testing.T) {
	_, router := testEnv(t, AuthOptions{})

	if w := createArticle(t, router, "render.md", validContent); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/articles/render.md?render=html", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	var detail ArticleDetail
	_ = json.Unmarshal(w.Body.Bytes(), &detail)
	if !strings.Contains(detail.BodyHTML, "<h1") {
		t.Errorf("body_html = %q, want rendered heading", detail.BodyHTML)
	}
}

func TestGetExportSegment(t *testing.T) {
	_, router, corpusDir := testEnvWithCorpus(t, AuthOptions{})

	second := strings.Replace(validContent, "Hello World", "Second Article", 1)
	data := validContent + "<<<ARTICLE_BREAK>>>\n" + second
	if err := os.WriteFile(corpusDir+"/export.md", []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	// %23 is the '#' of the segment key.
	req := httptest.NewRequest(http.MethodGet, "/articles/export.md%232", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get segment = %d, body = %s", w.Code, w.Body.String())
	}
	var detail ArticleDetail
	_ = json.Unmarshal(w.Body.Bytes(), &detail)
	if detail.Title != "Second Article" {
		t.Errorf("title = %q, want Second Article", detail.Title)
	}

	// Out-of-range segment is a 404.
	req = httptest.NewRequest(http.MethodGet, "/articles/export.md%235", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("out-of-range segment = %d, want 404", w.Code)
	}
}

func TestDeleteArticle(t *testing.T) {
	_, router := testEnv(t, AuthOptions{})

	if w := createArticle(t, router, "del.md", validContent); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/articles/del.md", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/articles/del.md", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestListArticlesWithFilters(t *testing.T) {
	_, router := testEnv(t, AuthOptions{})

	news := strings.Replace(validContent, "slug: engineering", "slug: news", 1)
	if w := createArticle(t, router, "eng.md", validContent); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	if w := createArticle(t, router, "news.md", news); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var list ArticleListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 {
		t.Errorf("total = %d, want 2", list.Total)
	}

	req = httptest.NewRequest(http.MethodGet, "/articles?category=news", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || list.Articles[0].Key != "news.md" {
		t.Errorf("filtered list = %+v", list)
	}

	req = httptest.NewRequest(http.MethodGet, "/articles?limit=1&offset=0&sort=path", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 || len(list.Articles) != 1 {
		t.Errorf("paginated: total = %d, page = %d", list.Total, len(list.Articles))
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, AuthOptions{})

	content := strings.Replace(validContent, "Body text.", "zanzibar appears once", 1)
	if w := createArticle(t, router, "s.md", content); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/search?q=zanzibar", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Key != "s.md" {
		t.Errorf("results = %+v", resp.Results)
	}

	// Missing query is a 400.
	req = httptest.NewRequest(http.MethodGet, "/search", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q = %d, want 400", w.Code)
	}
}

func TestTaxonomyEndpoints(t *testing.T) {
	_, router := testEnv(t, AuthOptions{})

	if w := createArticle(t, router, "t.md", validContent); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/categories", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var resp TaxonomyResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Items) != 1 || resp.Items[0].Slug != "engineering" {
		t.Errorf("categories = %+v", resp.Items)
	}

	req = httptest.NewRequest(http.MethodGet, "/tags", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Items) != 1 || resp.Items[0].Slug != "go" {
		t.Errorf("tags = %+v", resp.Items)
	}
}

func TestLintEndpoint(t *testing.T) {
	_, router := testEnv(t, AuthOptions{})

	body, _ := json.Marshal(map[string]string{
		"name":    "draft.md",
		"content": "---\ncategory:\n  slug: eng\ndate: someday\n---\nbody\n",
	})
	req := httptest.NewRequest(http.MethodPost, "/lint", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("lint = %d", w.Code)
	}
	var resp LintResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Articles) != 1 {
		t.Fatalf("articles = %+v", resp.Articles)
	}
	if len(resp.Articles[0].Diagnostics) != 2 {
		t.Errorf("diagnostics = %+v, want missing title plus date warning", resp.Articles[0].Diagnostics)
	}
}

func TestAuthTokenMode(t *testing.T) {
	_, router := testEnv(t, AuthOptions{Mode: AuthToken, Token: "sekret"})

	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/articles", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/articles", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthJWTMode(t *testing.T) {
	secret := "jwt-secret"
	_, router := testEnv(t, AuthOptions{Mode: AuthJWT, JWTSecret: secret})

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "writer",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid jwt = %d, want 200", w.Code)
	}

	badTok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "writer"})
	badSigned, _ := badTok.SignedString([]byte("other-secret"))
	req = httptest.NewRequest(http.MethodGet, "/articles", nil)
	req.Header.Set("Authorization", "Bearer "+badSigned)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad signature = %d, want 401", w.Code)
	}
}

func TestAssetUpload(t *testing.T) {
	_, router, corpusDir := testEnvWithCorpus(t, AuthOptions{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "diagram.png")
	_, _ = fw.Write([]byte("fake png bytes"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp AssetUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.URL != "/assets/diagram.png" {
		t.Errorf("url = %q", resp.URL)
	}
	if _, err := os.Stat(corpusDir + "/assets/diagram.png"); err != nil {
		t.Errorf("uploaded file missing: %v", err)
	}
}

func TestAssetSafeNameRejectsTraversal(t *testing.T) {
	h := NewAssetHandler(t.TempDir())
	cases := []string{"", "../escape.png", "a/b.png", "..", "/abs.png"}
	for _, name := range cases {
		if _, err := h.safeName(name); err == nil {
			t.Errorf("expected error for %q", name)
		}
	}
	if _, err := h.safeName("ok.png"); err != nil {
		t.Errorf("plain name rejected: %v", err)
	}
}
