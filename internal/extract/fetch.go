package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"

	"newswire/internal/observability"
)

// ErrTooShort marks extracted bodies below the minimum length; the article is
// rejected rather than stored.
var ErrTooShort = errors.New("extracted text too short")

// ErrUnsupportedContentType marks responses that are not article-shaped.
var ErrUnsupportedContentType = errors.New("unsupported content type")

// Result is the extracted article content.
type Result struct {
	FinalURL  string
	Title     string
	CleanText string
	Language  string
	FetchedAt time.Time
}

// Options tunes fetching. Zero value is not useful; use NewExtractor defaults.
type Options struct {
	Timeout       time.Duration
	MaxBytes      int64
	MinTextLength int
	UserAgent     string
	MaxRedirects  int
}

// Extractor fetches article pages and extracts their main content.
type Extractor struct {
	client *http.Client
	opts   Options
}

// NewExtractor creates an extractor with hardened transport defaults.
func NewExtractor(opts Options) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 8 * 1000 * 1000
	}
	if opts.MinTextLength <= 0 {
		opts.MinTextLength = 200
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 10
	}
	client := observability.NewHTTPClient(opts.Timeout)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > opts.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", opts.MaxRedirects)
		}
		return nil
	}
	return &Extractor{client: client, opts: opts}
}

// acceptable content types for article extraction.
func acceptableContentType(ct string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		// Some feeds link to servers that omit or mangle the header; treat
		// as HTML and let readability decide.
		return "text/html", true
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml", "text/plain":
		return mediaType, true
	}
	return mediaType, false
}

// Extract fetches the page at rawURL and returns its readable main content.
// Boilerplate (nav, ads, chrome) is removed by readability; the output is
// plain text.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if e.opts.UserAgent != "" {
		req.Header.Set("User-Agent", e.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,text/plain;q=0.8,*/*;q=0.1")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	mediaType, ok := acceptableContentType(resp.Header.Get("Content-Type"))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, mediaType)
	}

	body := io.LimitReader(resp.Body, e.opts.MaxBytes)
	reader, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("charset decode: %w", err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	res := &Result{FinalURL: finalURL, FetchedAt: time.Now().UTC()}

	if mediaType == "text/plain" {
		b, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		res.CleanText = strings.TrimSpace(string(b))
	} else {
		parsedURL, err := url.Parse(finalURL)
		if err != nil {
			return nil, fmt.Errorf("parse final url: %w", err)
		}
		article, err := readability.FromReader(reader, parsedURL)
		if err != nil {
			return nil, fmt.Errorf("readability: %w", err)
		}
		res.Title = strings.TrimSpace(article.Title)
		res.CleanText = collapseBlankRuns(article.TextContent)
	}

	if len(res.CleanText) < e.opts.MinTextLength {
		return nil, fmt.Errorf("%w: %d chars", ErrTooShort, len(res.CleanText))
	}
	return res, nil
}

// collapseBlankRuns trims readability output: each line trimmed, runs of
// blank lines reduced to one, preserving paragraph boundaries for the
// chunking fallback.
func collapseBlankRuns(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := true
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, ln)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
