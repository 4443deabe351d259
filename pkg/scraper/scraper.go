// Package scraper provides functionality to fetch archive pages and find season links
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"golang.org/x/net/html/charset"
)

const maxRedirects = 5

// TransportError reports a page that could not be fetched. StatusCode is 0
// when no HTTP response was received.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: non-200 status code: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Fetcher downloads pages over HTTP
type Fetcher struct {
	client  *fasthttp.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// NewFetcher creates a fetcher whose requests time out after timeout
func NewFetcher(timeout time.Duration, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		client: &fasthttp.Client{
			Name:                "squash-ladder",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
		timeout: timeout,
		logger:  logger,
	}
}

// Fetch downloads the page at url and returns it decoded to UTF-8
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &TransportError{URL: url, Err: err}
	}
	f.logger.Debug().Str("url", url).Msg("fetching URL")

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := f.client.DoRedirects(req, resp, maxRedirects); err != nil {
		return "", &TransportError{URL: url, Err: err}
	}

	f.logger.Debug().
		Str("url", url).
		Int("status", resp.StatusCode()).
		Int("content_length", len(resp.Body())).
		Msg("HTTP response")

	if resp.StatusCode() != fasthttp.StatusOK {
		return "", &TransportError{URL: url, StatusCode: resp.StatusCode()}
	}

	body, err := decodeBody(resp.Body(), string(resp.Header.ContentType()))
	if err != nil {
		return "", &TransportError{URL: url, Err: err}
	}
	return body, nil
}

// decodeBody converts a page to UTF-8 using the declared or sniffed charset
func decodeBody(body []byte, contentType string) (string, error) {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return string(body), nil
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("error decoding %s body: %w", name, err)
	}
	return string(decoded), nil
}

// PageFetcher is anything that can download a page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetchWithFallback fetches url and, when the server answers with a
// non-success status, retries once with the alternate file extension
// (.htm <-> .html)
func FetchWithFallback(ctx context.Context, f PageFetcher, url string) (string, error) {
	content, err := f.Fetch(ctx, url)
	if err == nil {
		return content, nil
	}

	var terr *TransportError
	if !errors.As(err, &terr) || terr.StatusCode == 0 {
		return "", err
	}
	alternate, ok := AlternateExtension(url)
	if !ok {
		return "", err
	}
	return f.Fetch(ctx, alternate)
}

// AlternateExtension swaps a trailing .htm for .html and vice versa
func AlternateExtension(url string) (string, bool) {
	switch {
	case strings.HasSuffix(url, ".html"):
		return strings.TrimSuffix(url, "l"), true
	case strings.HasSuffix(url, ".htm"):
		return url + "l", true
	}
	return "", false
}

// SaveContentToFile saves content to a file
func SaveContentToFile(filename string, content string) error {
	return os.WriteFile(filename, []byte(content), 0644)
}

// ArchiveLink is a season page referenced from the archive index
type ArchiveLink struct {
	Href string // as written in the index page
	File string // file name, e.g. "1605.htm"
	Key  string // season key, e.g. "1605"
}

// ExtractArchiveLinks extracts links to individual season pages, in the
// order they appear on the index page. Repeated seasons keep their first link.
func ExtractArchiveLinks(htmlContent string) ([]ArchiveLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("error parsing index page: %w", err)
	}

	var links []ArchiveLink
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))

		// Only collect links that look like archived season pages
		idx := strings.Index(href, "archives/")
		if idx == -1 {
			return
		}
		file := strings.SplitN(href[idx+len("archives/"):], "#", 2)[0]
		file = strings.SplitN(file, "?", 2)[0]
		if file == "" || strings.Contains(file, "/") {
			return
		}
		key := strings.TrimSuffix(file, path.Ext(file))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		links = append(links, ArchiveLink{Href: href, File: file, Key: key})
	})

	return links, nil
}

// ResolveRelativeURL resolves a link found on the page at baseURL
func ResolveRelativeURL(baseURL, relativeURL string) string {
	// Check if the relative URL is already an absolute URL
	if strings.HasPrefix(relativeURL, "http://") || strings.HasPrefix(relativeURL, "https://") {
		return relativeURL
	}

	// If no protocol, assume https
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return relativeURL
	}
	ref, err := url.Parse(relativeURL)
	if err != nil {
		return relativeURL
	}
	return base.ResolveReference(ref).String()
}
