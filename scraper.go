package argot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// ErrNoTitle is returned when a page has no usable <title>.
var ErrNoTitle = errors.New("page has no title")

// maxScrapeBytes limits how much of a page is read looking for the title.
const maxScrapeBytes = 128 << 10

// TitleFetcher guesses a post title from its link.
type TitleFetcher interface {
	FetchTitle(ctx context.Context, url string) (string, error)
}

// HTTPTitleFetcher fetches a page and returns the text of its <title>.
type HTTPTitleFetcher struct {
	Client *http.Client
}

// NewHTTPTitleFetcher returns a fetcher whose requests time out after timeout.
func NewHTTPTitleFetcher(timeout time.Duration) *HTTPTitleFetcher {
	return &HTTPTitleFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *HTTPTitleFetcher) FetchTitle(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "argot/1.0 (+title fetch)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return ExtractTitle(io.LimitReader(resp.Body, maxScrapeBytes))
}

// ExtractTitle returns the whitespace-collapsed text of the first <title>
// element in an HTML document.
func ExtractTitle(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var title string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			title = strings.Join(strings.Fields(b.String()), " ")
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	if title == "" {
		return "", ErrNoTitle
	}
	return title, nil
}
