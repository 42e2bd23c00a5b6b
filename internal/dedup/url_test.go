package dedup

import (
	"strings"
	"testing"
)

func TestCanonicalURLStripsTrackingAndNormalizes(t *testing.T) {
	t.Parallel()

	got := CanonicalURL("  HTTPS://Example.COM/news/path/?utm_source=x&b=2&UTM_Medium=y&a=1&gclid=1&FBCLID=2#frag ")
	want := "https://example.com/news/path?a=1&b=2"
	if got != want {
		t.Fatalf("unexpected canonical url:\n got %s\nwant %s", got, want)
	}
}

func TestCanonicalURLTrackingParamRemoval(t *testing.T) {
	t.Parallel()

	got := CanonicalURL("https://x.com/a?utm_source=x&b=2")
	if !strings.Contains(got, "b=2") {
		t.Fatalf("expected b=2 to survive: %s", got)
	}
	if strings.Contains(got, "utm_source") {
		t.Fatalf("expected utm_source to be removed: %s", got)
	}
}

func TestCanonicalURLTrailingSlash(t *testing.T) {
	t.Parallel()

	if CanonicalURL("https://x.com/a/") != CanonicalURL("https://x.com/a") {
		t.Fatalf("trailing slash should not change the key")
	}
	if got := CanonicalURL("https://x.com/"); got != "https://x.com/" {
		t.Fatalf("root path must be preserved, got %s", got)
	}
	if got := CanonicalURL("https://x.com/a//"); got != "https://x.com/a" {
		t.Fatalf("repeated trailing slashes should collapse, got %s", got)
	}
}

func TestCanonicalURLKeepsBlankAndSortsParams(t *testing.T) {
	t.Parallel()

	got := CanonicalURL("https://x.com/a?z=1&empty=&a=2&a=1&flag&ref=home&spm=3&ref_src=tw")
	want := "https://x.com/a?a=1&a=2&empty=&flag=&z=1"
	if got != want {
		t.Fatalf("unexpected query:\n got %s\nwant %s", got, want)
	}
}

func TestCanonicalURLDefaultsScheme(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "example.com/a", want: "https://example.com/a"},
		{in: "//Example.com/a?x=1", want: "https://example.com/a?x=1"},
		{in: "http://a.com/1", want: "http://a.com/1"},
	}
	for _, tc := range cases {
		if got := CanonicalURL(tc.in); got != tc.want {
			t.Fatalf("CanonicalURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalURLUnusableInput(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "not a url", "mailto:someone@example.com", "/relative/only", "http://[::1"} {
		if got := CanonicalURL(in); got != "" {
			t.Fatalf("CanonicalURL(%q) = %q, want empty key", in, got)
		}
	}
}

func TestCanonicalURLIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"http://a.com/1?utm_source=x",
		"https://x.com/a/?b=2&a=1#top",
		"HTTP://User:Pw@Host.com:8080/Path%20With%20Space/?q=a+b&q=%zz",
		"example.com",
		"https://x.com/",
		"https://news.google.com/rss/articles/CBMiK2h0dHBz?oc=5",
		"https://x.com/a%2Fb/",
	}
	for _, in := range inputs {
		once := CanonicalURL(in)
		if twice := CanonicalURL(once); twice != once {
			t.Fatalf("not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestURLHashUsesCanonicalKey(t *testing.T) {
	t.Parallel()

	if URLHash("http://a.com/1?utm_source=x") != URLHash("http://a.com/1") {
		t.Fatalf("hash must be computed from the canonical key")
	}
	if URLHash("http://a.com/1") == URLHash("http://a.com/2") {
		t.Fatalf("different urls must hash differently")
	}
}
