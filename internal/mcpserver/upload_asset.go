package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/checksum"
)

const (
	assetsDir    = "assets"
	maxAssetSize = 10 << 20 // 10 MB
)

// assetTypes maps the permitted asset extensions to their MIME types.
// Anything outside this table is rejected before it reaches the corpus.
var assetTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
}

var safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// assetResult mirrors the shape of the HTTP asset upload response, plus the
// ready-to-paste Markdown snippet for the article body.
type assetResult struct {
	Path     string `json:"path"`
	URL      string `json:"url"`
	Size     int    `json:"size"`
	Markdown string `json:"markdown"`
}

// uploadAsset fetches an image or PDF and stores it under assets/. Uploads
// are idempotent: re-uploading identical content under the same name returns
// the stored asset, while a name collision with different content gets a
// checksum-derived suffix instead of failing.
func (s *Server) uploadAsset(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, detectedExt, err := fetchAsset(rawURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxAssetSize {
		return mcp.NewToolResultError(fmt.Sprintf("asset too large: %d bytes (max %d)", len(data), maxAssetSize)), nil
	}

	filename := ""
	if v, fErr := req.RequireString("filename"); fErr == nil {
		filename = v
	}
	if filename == "" {
		filename = filenameFromURL(rawURL, detectedExt)
	}
	filename = sanitizeFilename(filename)

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := assetTypes[ext]; !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported asset extension %q (allowed: %s)", ext, allowedExtList())), nil
	}
	if err := checkContentType(data, ext); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	savePath := path.Join(assetsDir, filename)
	if existing, readErr := s.store.Read(savePath); readErr == nil {
		if checksum.Sum(existing) != checksum.Sum(data) {
			// Same name, different content: keep both.
			filename = suffixFilename(filename, checksum.Sum(data))
			savePath = path.Join(assetsDir, filename)
		}
	}
	if err := s.store.Write(savePath, data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save asset: %v", err)), nil
	}

	alt := ""
	if v, aErr := req.RequireString("alt"); aErr == nil {
		alt = v
	}
	if alt == "" {
		alt = altFromFilename(filename)
	}

	urlPath := "/" + assetsDir + "/" + filename
	snippet := fmt.Sprintf("![%s](%s)", alt, urlPath)
	if ext == ".pdf" {
		snippet = fmt.Sprintf("[%s](%s)", alt, urlPath)
	}
	out, _ := json.Marshal(assetResult{
		Path:     savePath,
		URL:      urlPath,
		Size:     len(data),
		Markdown: snippet,
	})
	return mcp.NewToolResultText(string(out)), nil
}

// fetchAsset dispatches on the URL form: inline data URI or remote HTTP(S).
// The returned extension is a hint from the declared MIME type and may be
// empty for HTTP responses without a recognized Content-Type.
func fetchAsset(rawURL string) ([]byte, string, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return decodeDataURI(rawURL)
	}
	return fetchHTTP(rawURL)
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext := extForMIME(mime)
	if ext == "" {
		return nil, "", fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}
	return data, ext, nil
}

// fetchHTTP downloads an asset, refusing loopback and cloud metadata hosts
// on the initial request and on every redirect hop.
func fetchHTTP(rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := guardHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return guardHost(req.URL.Hostname())
		},
	}

	resp, err := client.Get(rawURL) //nolint:noctx
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxAssetSize {
		return nil, "", fmt.Errorf("asset too large: exceeds %d bytes", maxAssetSize)
	}

	ct := strings.Split(resp.Header.Get("Content-Type"), ";")[0]
	return data, extForMIME(ct), nil
}

// guardHost rejects loopback and cloud metadata addresses.
func guardHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	// AWS/GCP/Azure metadata endpoint.
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// filenameFromURL extracts a usable filename from a URL, falling back to a
// random name with the detected extension.
func filenameFromURL(rawURL, detectedExt string) string {
	if !strings.HasPrefix(rawURL, "data:") {
		if parsed, err := url.Parse(rawURL); err == nil {
			base := path.Base(parsed.Path)
			if base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
				return base
			}
		}
	}
	if detectedExt == "" {
		detectedExt = ".bin"
	}
	return uuid.New().String() + detectedExt
}

// sanitizeFilename strips path separators and unsafe characters.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = safeFilenameRe.ReplaceAllString(name, "_")
	if name == "" || name == "." {
		name = uuid.New().String()
	}
	return name
}

// suffixFilename inserts a short content-checksum tag before the extension,
// so colliding uploads land side by side instead of clobbering each other.
func suffixFilename(name, sum string) string {
	tag := sum
	if len(tag) > 8 {
		tag = tag[:8]
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + tag + ext
}

// altFromFilename turns "release-graph_v2.png" into "release graph v2" for
// use as default image alt text.
func altFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(base))
}

// extForMIME returns the canonical extension for a MIME type known to
// assetTypes, or "" when the type is not permitted.
func extForMIME(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	default:
		for ext, m := range assetTypes {
			if m == mime {
				return ext
			}
		}
	}
	return ""
}

func allowedExtList() string {
	exts := make([]string, 0, len(assetTypes))
	for ext := range assetTypes {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	slices.Sort(exts)
	return strings.Join(exts, ", ")
}

// checkContentType verifies the bytes match the declared extension. SVG is
// text and invisible to content sniffing, so it gets a tag check instead.
func checkContentType(data []byte, ext string) error {
	if ext == ".svg" {
		prefix := data
		if len(prefix) > 1024 {
			prefix = prefix[:1024]
		}
		if !bytes.Contains(prefix, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be a valid SVG (missing <svg tag)")
		}
		return nil
	}

	detected := strings.Split(http.DetectContentType(data), ";")[0]
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if extForMIME(detected) != ext {
		return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
	}
	return nil
}
