package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mmcdole/gofeed"

	"NewsDigest/internal/config"
	"NewsDigest/internal/scanner"
)

const googleNewsFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>"자동차SW" - Google 뉴스</title>
    <item>
      <title>자동차SW 해킹 사고 - 뉴스사</title>
      <link>https://news.google.com/rss/articles/abc?oc=5</link>
      <pubDate>Tue, 02 Jan 2024 08:00:00 GMT</pubDate>
      <description>&lt;a href="https://news.google.com/rss/articles/abc"&gt;자동차SW 해킹 사고&lt;/a&gt;&amp;nbsp;&amp;nbsp;&lt;font color="#6f6f6f"&gt;뉴스사&lt;/font&gt;</description>
    </item>
    <item>
      <title>&lt;b&gt;SDV&lt;/b&gt; 전략 발표</title>
      <link> https://example.com/sdv </link>
      <pubDate>not a date</pubDate>
    </item>
    <item>
      <title>&lt;SDV&gt; 해킹 사고 대응</title>
      <link>https://example.com/bracketed</link>
    </item>
    <item>
      <title>Third item - Outlet</title>
      <link>https://example.com/third</link>
    </item>
  </channel>
</rss>`

func TestBuildGoogleNewsURL(t *testing.T) {
	t.Parallel()

	raw, err := buildGoogleNewsURL(scanner.Request{
		SiteName: "google",
		Query:    `("자동차 SW" OR SDV)`,
	})
	if err != nil {
		t.Fatalf("buildGoogleNewsURL returned error: %v", err)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if parsed.Host != "news.google.com" || parsed.Path != "/rss/search" {
		t.Fatalf("unexpected endpoint: %s", raw)
	}

	q := parsed.Query()
	if q.Get("q") != `("자동차 SW" OR SDV)` {
		t.Fatalf("unexpected query: %s", q.Get("q"))
	}
	if q.Get("hl") != "ko" || q.Get("gl") != "KR" || q.Get("ceid") != "KR:ko" {
		t.Fatalf("unexpected edition params: %v", q)
	}

	if _, err := buildGoogleNewsURL(scanner.Request{SiteName: "google"}); err == nil {
		t.Fatalf("expected error for empty query")
	}
}

func TestGoogleNewsScannerScan(t *testing.T) {
	t.Parallel()

	var gotQuery, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(googleNewsFeed))
	}))
	defer server.Close()

	sc := NewGoogleNewsScanner(server.Client(), "digest-test")
	articles, err := sc.Scan(context.Background(), scanner.Request{
		SiteName: "google",
		URL:      server.URL + "/rss/search",
		Query:    "자동차SW",
		Limit:    2,
		Options:  map[string]string{"hl": "en"},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if gotQuery != "자동차SW" || gotAgent != "digest-test" {
		t.Fatalf("unexpected request: q=%q ua=%q", gotQuery, gotAgent)
	}
	if len(articles) != 2 {
		t.Fatalf("expected limit to cap articles at 2, got %d", len(articles))
	}

	first := articles[0]
	if first.Title != "자동차SW 해킹 사고 - 뉴스사" {
		t.Fatalf("unexpected title: %s", first.Title)
	}
	if first.Published != "2024-01-02T08:00:00Z" {
		t.Fatalf("expected RFC3339 published, got %s", first.Published)
	}
	if first.Source != "뉴스사" {
		t.Fatalf("unexpected source: %s", first.Source)
	}

	second := articles[1]
	if second.Title != "SDV 전략 발표" {
		t.Fatalf("markup should be stripped from titles, got %q", second.Title)
	}
	if second.URL != "https://example.com/sdv" {
		t.Fatalf("link should be trimmed, got %q", second.URL)
	}
	if second.Published != "not a date" {
		t.Fatalf("unparsed dates keep their text, got %q", second.Published)
	}
}

func TestRSSScannerRequiresURL(t *testing.T) {
	t.Parallel()

	sc := NewRSSScanner(nil, "")
	if _, err := sc.Scan(context.Background(), scanner.Request{SiteName: "blog"}); err == nil {
		t.Fatalf("expected error for missing url")
	}
}

func TestRSSScannerHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	sc := NewRSSScanner(server.Client(), "")
	_, err := sc.Scan(context.Background(), scanner.Request{SiteName: "blog", URL: server.URL})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestStrategySourceSkipsFailingSource(t *testing.T) {
	t.Parallel()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(googleNewsFeed))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	reg := scanner.NewRegistry()
	reg.Register(NewRSSScanner(nil, ""))

	src := NewStrategySource(reg, []config.SourceConfig{
		{Name: "broken", Scanner: "rss", URL: bad.URL},
		{Name: "working", Scanner: "rss", URL: good.URL},
	}, "", nil)

	articles, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(articles) != 4 {
		t.Fatalf("expected 4 articles from the working source, got %d", len(articles))
	}
	if articles[1].Source != "working" {
		t.Fatalf("articles without outlet should carry the source name, got %q", articles[1].Source)
	}
	if articles[2].Title != "<SDV> 해킹 사고 대응" {
		t.Fatalf("bracketed title text should survive parsing, got %q", articles[2].Title)
	}
	if articles[3].Source != "Outlet" {
		t.Fatalf("title suffix should provide the outlet, got %q", articles[3].Source)
	}
}

func TestStrategySourceAllFail(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	src := NewStrategySource(reg, []config.SourceConfig{{Name: "x", Scanner: "missing"}}, "", nil)
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error when every source fails")
	}
}

func TestToArticleKeepsBracketedTitleText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "<SDV> 해킹 사고 대응", want: "<SDV> 해킹 사고 대응"},
		{in: "[단독] <CES 2025> 자동차SW 보안", want: "[단독] <CES 2025> 자동차SW 보안"},
		{in: "<U 시리즈> 리콜", want: "<U 시리즈> 리콜"},
		{in: "<b>SDV</b> 전략 발표", want: "SDV 전략 발표"},
		{in: `<font color="#6f6f6f">속보</font>  <SDV> 공개<br/>`, want: "속보 <SDV> 공개"},
		{in: `<a href='https://x.com'>OTA</a> 업데이트`, want: "OTA 업데이트"},
	}
	for _, tc := range cases {
		got := toArticle(&gofeed.Item{Title: tc.in}).Title
		if got != tc.want {
			t.Fatalf("title %q became %q, want %q", tc.in, got, tc.want)
		}
	}
}
