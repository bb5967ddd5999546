package linkpreview

import (
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("bad url %q: %v", raw, err)
	}
	return u
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		html string
		want Preview
	}{
		{
			name: "opengraph wins",
			html: `<html><head>
				<title>Plain title</title>
				<meta property="og:title" content="OG  Title">
				<meta name="twitter:title" content="Twitter Title">
				<meta property="og:description" content="OG description">
				<meta name="description" content="Plain description">
				<meta property="og:image" content="/img/card.jpg">
				<meta property="og:site_name" content="Example">
				<meta property="og:type" content="article">
				<link rel="icon" href="/static/icon.png">
			</head><body><meta property="og:title" content="ignored"></body></html>`,
			want: Preview{
				URL:         "https://example.com/post/1",
				Title:       "OG Title",
				Description: "OG description",
				Image:       "https://example.com/img/card.jpg",
				SiteName:    "Example",
				Type:        "article",
				Icon:        "https://example.com/static/icon.png",
			},
		},
		{
			name: "twitter card fallback",
			html: `<head>
				<meta name="twitter:title" content="Card title">
				<meta name="twitter:description" content="Card description">
				<meta name="twitter:image" content="https://cdn.example.net/card.png">
			</head>`,
			want: Preview{
				URL:         "https://example.com/post/1",
				Title:       "Card title",
				Description: "Card description",
				Image:       "https://cdn.example.net/card.png",
				Icon:        "https://example.com/favicon.ico",
			},
		},
		{
			name: "plain html",
			html: `<head><title>
				Grant   Program
			</title><meta name="description" content="Apply now"><link rel="shortcut icon" href="fav.ico"></head>`,
			want: Preview{
				URL:         "https://example.com/post/1",
				Title:       "Grant Program",
				Description: "Apply now",
				Icon:        "https://example.com/post/fav.ico",
			},
		},
		{
			name: "canonical url",
			html: `<head><title>T</title><link rel="canonical" href="/canonical"></head>`,
			want: Preview{
				URL:   "https://example.com/canonical",
				Title: "T",
				Icon:  "https://example.com/favicon.ico",
			},
		},
		{
			name: "non-http image dropped",
			html: `<head><title>T</title><meta property="og:image" content="javascript:alert(1)"></head>`,
			want: Preview{
				URL:   "https://example.com/post/1",
				Title: "T",
				Icon:  "https://example.com/favicon.ico",
			},
		},
		{
			name: "no title falls back to hostname",
			html: `<html><body><p>nothing here</p></body></html>`,
			want: Preview{
				URL:     "https://example.com/post/1",
				Title:   "example.com",
				Icon:    "https://example.com/favicon.ico",
				Partial: true,
			},
		},
	}

	base := mustURL(t, "https://example.com/post/1")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.html), base)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("preview mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_TruncatesLongText(t *testing.T) {
	long := strings.Repeat("word ", 300)
	got, err := Parse(strings.NewReader(`<meta name="description" content="`+long+`"><title>x</title>`), mustURL(t, "https://example.com"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if n := len([]rune(got.Description)); n > maxTextLen {
		t.Errorf("description has %d runes, want <= %d", n, maxTextLen)
	}
	if !strings.HasSuffix(got.Description, "…") {
		t.Errorf("expected ellipsis, got %q", got.Description[len(got.Description)-10:])
	}
}

func TestFallback(t *testing.T) {
	got := Fallback(mustURL(t, "https://www.scholarships.example/apply?id=3"))
	want := Preview{
		URL:     "https://www.scholarships.example/apply?id=3",
		Title:   "scholarships.example",
		Partial: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fallback mismatch (-want +got):\n%s", diff)
	}
}
