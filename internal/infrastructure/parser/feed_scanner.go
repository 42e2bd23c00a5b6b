package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/scanner"
)

// inlineTag matches formatting tags with optional name="value" attributes.
var inlineTag = regexp.MustCompile(`(?i)</?(?:a|b|i|em|strong|font|span|sup|sub|br)(?:\s+[a-z-]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s<>]+))*\s*/?>`)

const (
	googleNewsSearchURL = "https://news.google.com/rss/search"
	defaultItemLimit    = 50
	defaultUserAgent    = "NewsDigest/1.0"
)

// FeedScanner downloads an RSS/Atom document and maps its items to articles.
// The URL strategy differs per scanner name.
type FeedScanner struct {
	name      string
	client    *http.Client
	userAgent string
	feedURL   func(req scanner.Request) (string, error)
}

// NewRSSScanner reads the feed at the request URL.
func NewRSSScanner(client *http.Client, userAgent string) *FeedScanner {
	return newFeedScanner("rss", client, userAgent, func(req scanner.Request) (string, error) {
		if strings.TrimSpace(req.URL) == "" {
			return "", fmt.Errorf("site %s: rss scanner requires a url", req.SiteName)
		}
		return req.URL, nil
	})
}

// NewGoogleNewsScanner searches Google News RSS for the request query.
// Options hl, gl and ceid select the edition; a request URL replaces the search endpoint.
func NewGoogleNewsScanner(client *http.Client, userAgent string) *FeedScanner {
	return newFeedScanner("googlenews", client, userAgent, buildGoogleNewsURL)
}

func newFeedScanner(name string, client *http.Client, userAgent string, feedURL func(scanner.Request) (string, error)) *FeedScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &FeedScanner{name: name, client: client, userAgent: userAgent, feedURL: feedURL}
}

// Name identifies the strategy inside the registry.
func (s *FeedScanner) Name() string {
	return s.name
}

// Scan fetches the feed and returns at most req.Limit articles (50 by default) in feed order.
func (s *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	feedURL, err := s.feedURL(req)
	if err != nil {
		return nil, err
	}

	feed, err := s.fetchFeed(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", req.SiteName, err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultItemLimit
	}

	articles := make([]domain.Article, 0, min(limit, len(feed.Items)))
	for _, item := range feed.Items {
		if len(articles) == limit {
			break
		}
		if item == nil {
			continue
		}
		articles = append(articles, toArticle(item))
	}

	return articles, nil
}

func (s *FeedScanner) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	return feed, nil
}

func buildGoogleNewsURL(req scanner.Request) (string, error) {
	if strings.TrimSpace(req.Query) == "" {
		return "", fmt.Errorf("site %s: googlenews scanner requires a query", req.SiteName)
	}

	base := req.URL
	if base == "" {
		base = googleNewsSearchURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid search url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("q", req.Query)
	query.Set("hl", req.Option("hl", "ko"))
	query.Set("gl", req.Option("gl", "KR"))
	query.Set("ceid", req.Option("ceid", "KR:ko"))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func toArticle(item *gofeed.Item) domain.Article {
	title := plainText(item.Title)

	published := strings.TrimSpace(item.Published)
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC().Format(time.RFC3339)
	} else if published == "" && item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC().Format(time.RFC3339)
	}

	source := outletFromDescription(item.Description)
	if source == "" {
		source = domain.SourceFromTitle(title)
	}

	return domain.Article{
		Title:     title,
		URL:       strings.TrimSpace(item.Link),
		Published: published,
		Source:    source,
	}
}

// plainText removes the inline formatting tags some feeds leave inside
// titles. Any other bracketed text, such as "<SDV>" or "<CES 2025>", is part
// of the headline and kept as is.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") {
		return s
	}
	s = inlineTag.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// outletFromDescription reads the outlet Google News puts in a trailing <font> element.
func outletFromDescription(description string) string {
	if !strings.Contains(description, "<font") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("font").Last().Text())
}
