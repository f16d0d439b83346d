package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloo-solutions/studybuddy/internal/domain"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxTextChars = 5000
	DefaultUserAgent    = "Mozilla/5.0"

	maxPageBytes = 10 << 20
)

// ErrNoReadableText is returned when a page has no paragraph text.
var ErrNoReadableText = domain.NewDomainError(domain.ErrCodeExtractionEmpty, "No readable text content found on this page.")

// WebPage fetches a page and returns the text of its <p> elements.
type WebPage struct {
	client    *http.Client
	userAgent string
	maxChars  int
}

// WebPageOption configures a WebPage extractor.
type WebPageOption func(*WebPage)

// WithHTTPClient replaces the default client; its timeout is kept as is.
func WithHTTPClient(c *http.Client) WebPageOption {
	return func(w *WebPage) { w.client = c }
}

func WithMaxChars(n int) WebPageOption {
	return func(w *WebPage) { w.maxChars = n }
}

func NewWebPage(opts ...WebPageOption) *WebPage {
	w := &WebPage{
		client:    &http.Client{Timeout: DefaultFetchTimeout},
		userAgent: DefaultUserAgent,
		maxChars:  DefaultMaxTextChars,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Extract downloads rawURL and returns its paragraph text, space-joined and
// truncated to the configured number of characters.
func (w *WebPage) Extract(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "url must be an absolute http or https URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamFailure, "Error while scraping", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.NewDomainError(domain.ErrCodeInvalidOperation,
			fmt.Sprintf("Failed to fetch %s (status code: %d)", rawURL, resp.StatusCode))
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamFailure, "Error while scraping", err)
	}

	text := strings.Join(paragraphs(doc), " ")
	if strings.TrimSpace(text) == "" {
		return "", ErrNoReadableText
	}

	return truncateRunes(text, w.maxChars), nil
}

// paragraphs returns the text of each <p> element with its text nodes
// trimmed and joined by single spaces.
func paragraphs(doc *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.P {
			var parts []string
			collectText(n, &parts)
			out = append(out, strings.Join(parts, " "))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func collectText(n *html.Node, parts *[]string) {
	switch {
	case n.Type == html.TextNode:
		if s := strings.TrimSpace(n.Data); s != "" {
			*parts = append(*parts, s)
		}
		return
	case n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style):
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
