package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/html"

	"github.com/YumaSeno/AIDeveloper/internal/config"
	"github.com/YumaSeno/AIDeveloper/internal/tool"
)

const (
	WebSearchName       = "WebSearchTool"
	GetHTTPContentsName = "GetHttpContentsTool"
)

const (
	noResults         = "no results"
	omitSnippetsAfter = 5
)

// browserHeaders are rotated per request so searches look like ordinary
// browser traffic.
var browserHeaders = []map[string]string{
	{
		"User-Agent":         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
		"sec-ch-ua":          `"Google Chrome";v="125", "Chromium";v="125", "Not.A/Brand";v="24"`,
		"sec-ch-ua-mobile":   "?0",
		"sec-ch-ua-platform": `"Linux"`,
		"Accept":             "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":    "en-US,en;q=0.9",
		"Referer":            "https://www.google.com/",
	},
	{
		"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64; rv:126.0) Gecko/20100101 Firefox/126.0",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"Sec-Fetch-Dest":  "document",
		"Sec-Fetch-Mode":  "navigate",
		"Sec-Fetch-Site":  "cross-site",
	},
	{
		"User-Agent":         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36 Edg/125.0.0.0",
		"sec-ch-ua":          `"Microsoft Edge";v="125", "Chromium";v="125", "Not.A/Brand";v="24"`,
		"sec-ch-ua-mobile":   "?0",
		"sec-ch-ua-platform": `"Windows"`,
		"Accept":             "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language":    "en-US,en;q=0.9",
		"Referer":            "https://www.bing.com/",
	},
	{
		"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	},
}

// Fetcher issues browser-like GET requests and returns decoded bodies.
type Fetcher struct {
	client  *http.Client
	maxBody int64

	mu   sync.Mutex
	next int
}

func NewFetcher(cfg config.ToolsConfig) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
		maxBody: int64(cfg.MaxBodyBytes),
	}
}

func (f *Fetcher) headers() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := browserHeaders[f.next]
	f.next = (f.next + 1) % len(browserHeaders)
	return h
}

// Get returns the body of rawURL, capped at the configured size. The second
// return value reports truncation.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	for k, v := range f.headers() {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("request %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, false, fmt.Errorf("decompress response: %w", err)
		}
		defer zr.Close()
		body = zr
	}

	limit := f.maxBody
	if limit <= 0 {
		limit = 512 << 10
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, false, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

type WebSearchArgs struct {
	Query string `json:"query" jsonschema_description:"Search keywords."`
}

type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type SearchResults struct {
	Results []SearchResult `json:"results"`
	Note    string         `json:"note,omitempty"`
}

// WebSearch queries the configured HTML search endpoint.
func WebSearch(f *Fetcher, searchURL string) tool.Tool {
	return tool.New(tool.Spec[WebSearchArgs, SearchResults]{
		Name: WebSearchName,
		Description: "Searches the web and returns page titles, addresses and snippets. " +
			"Use " + GetHTTPContentsName + " to read a page in full.",
		Run: func(ctx context.Context, args WebSearchArgs) (SearchResults, error) {
			if strings.TrimSpace(args.Query) == "" {
				return SearchResults{}, errors.New("query is empty")
			}
			u, err := url.Parse(searchURL)
			if err != nil {
				return SearchResults{}, fmt.Errorf("parse search url: %w", err)
			}
			q := u.Query()
			q.Set("q", args.Query)
			u.RawQuery = q.Encode()

			body, _, err := f.Get(ctx, u.String())
			if err != nil {
				return SearchResults{}, err
			}
			results, err := parseSearchResults(body)
			if err != nil {
				return SearchResults{}, err
			}
			if len(results) == 0 {
				return SearchResults{Results: []SearchResult{}, Note: noResults}, nil
			}
			return SearchResults{Results: results}, nil
		},
		OmitResult: func(turnsElapsed int, r SearchResults) SearchResults {
			if turnsElapsed < omitSnippetsAfter {
				return r
			}
			for i := range r.Results {
				r.Results[i].Snippet = "omitted"
			}
			return r
		},
	})
}

func parseSearchResults(body []byte) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	var out []SearchResult
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "result") {
			if r, ok := searchResult(n); ok {
				out = append(out, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return out, nil
}

func searchResult(n *html.Node) (SearchResult, bool) {
	link := findClass(n, "result__a")
	if link == nil {
		return SearchResult{}, false
	}
	r := SearchResult{
		Title: collapse(text(link)),
		URL:   attr(link, "href"),
	}
	if snippet := findClass(n, "result__snippet"); snippet != nil {
		r.Snippet = collapse(text(snippet))
	}
	if r.Title == "" || r.URL == "" {
		return SearchResult{}, false
	}
	return r, true
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func findClass(n *html.Node, class string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && hasClass(c, class) {
			return c
		}
		if found := findClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type GetHTTPContentsArgs struct {
	URL string `json:"url" jsonschema_description:"Absolute address to fetch, e.g. https://example.com/docs."`
}

// GetHTTPContents fetches a page body as text.
func GetHTTPContents(f *Fetcher) tool.Tool {
	return tool.New(tool.Spec[GetHTTPContentsArgs, string]{
		Name:        GetHTTPContentsName,
		Description: "Fetches the contents of a web address and returns the response body.",
		Run: func(ctx context.Context, args GetHTTPContentsArgs) (string, error) {
			if args.URL == "" {
				return "", errors.New("url is empty")
			}
			body, truncated, err := f.Get(ctx, args.URL)
			if err != nil {
				return "", err
			}
			if truncated {
				return string(body) + "\n(truncated)", nil
			}
			return string(body), nil
		},
		OmitResult: func(int, string) string { return omitted },
	})
}
