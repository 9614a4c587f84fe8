// Package loader turns already-extracted specification sources, plain
// text files or HTML pages, into (filename, text) pairs for ingestion.
// OCR and file storage live upstream; this package only normalizes text.
package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

type LoaderConfig struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second for URL loads
}

type Loader struct {
	config  LoaderConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config LoaderConfig) *Loader {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	return &Loader{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func New() *Loader {
	return NewWithConfig(LoaderConfig{})
}

// LoadFile reads a local document. HTML files are stripped to their main
// content text; everything else is returned as-is.
func (l *Loader) LoadFile(filePath string) (string, string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	filename := filepath.Base(filePath)
	text := string(data)

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".html", ".htm":
		text, err = stripHTML(strings.NewReader(text))
		if err != nil {
			return "", "", fmt.Errorf("failed to parse %s: %w", filePath, err)
		}
	}
	return filename, text, nil
}

// LoadURL fetches one document over HTTP, rate-limited. HTML responses are
// stripped to main-content text.
func (l *Loader) LoadURL(ctx context.Context, rawURL string) (string, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid URL %s: %w", rawURL, err)
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, rawURL)
	}

	filename := path.Base(parsed.Path)
	if filename == "" || filename == "/" || filename == "." {
		filename = parsed.Host
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		text, err := stripHTML(resp.Body)
		if err != nil {
			return "", "", err
		}
		return filename, text, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", err
	}
	return filename, cleanContent(doc.Text()), nil
}

// stripHTML extracts the main content area of an HTML document, falling
// back to the whole body.
func stripHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}

	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".specification",
		"#specification",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}
	if content == "" {
		content = doc.Find("body").Text()
	}
	return cleanContent(content), nil
}

func cleanContent(content string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(content), " "))
}
