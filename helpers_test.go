package spacetravel

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base     string
		segments []string
		want     string
	}{
		{"https://blog.example.com", nil, "https://blog.example.com"},
		{"https://blog.example.com", []string{"post", "como-utilizar-hooks"}, "https://blog.example.com/post/como-utilizar-hooks/"},
		{"https://blog.example.com/blog/", []string{"post", "a"}, "https://blog.example.com/blog/post/a/"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segments...); got != tt.want {
			t.Errorf("BuildURL(%q, %v) = %q, want %q", tt.base, tt.segments, got, tt.want)
		}
	}
}

func TestListingHref(t *testing.T) {
	if got := ListingHref(""); got != "/" {
		t.Errorf("ListingHref(\"\") = %q", got)
	}
	if got := ListingHref("a b&c"); got != "/?page=a+b%26c" {
		t.Errorf("ListingHref escaped = %q", got)
	}
}

func TestPostHref(t *testing.T) {
	if got := PostHref("criando-um-app"); got != "/post/criando-um-app/" {
		t.Errorf("PostHref = %q", got)
	}
}

func TestBlogPostingJsonLD(t *testing.T) {
	published := time.Date(2021, 3, 15, 19, 25, 0, 0, time.UTC)
	post := PostDetail{
		ID:          "como-utilizar-hooks",
		PublishedAt: &published,
		Title:       "Como utilizar </script> Hooks",
		Author:      "Joseph Oliveira",
		Sections:    []Section{{BodyText: strings.Repeat("palavra ", 250)}},
	}
	raw := BlogPostingJsonLD(post, SiteConfig{Name: "Space Traveling", URL: "https://blog.example.com"})
	if strings.Contains(raw, "</script>") {
		t.Errorf("JSON-LD is not safe to embed in a script tag: %s", raw)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		t.Fatalf("invalid JSON-LD: %v", err)
	}
	if data["url"] != "https://blog.example.com/post/como-utilizar-hooks/" {
		t.Errorf("url = %v", data["url"])
	}
	if data["datePublished"] != "2021-03-15T19:25:00Z" {
		t.Errorf("datePublished = %v", data["datePublished"])
	}
	if data["timeRequired"] != "PT2M" {
		t.Errorf("timeRequired = %v", data["timeRequired"])
	}
	if _, ok := data["dateModified"]; ok {
		t.Error("dateModified set without an update time")
	}
}

func TestWriteRSSAndSitemap(t *testing.T) {
	published := time.Date(2021, 3, 15, 19, 25, 0, 0, time.UTC)
	cfg := SiteConfig{Name: "Space Traveling", URL: "https://blog.example.com", Locale: "pt-BR"}
	posts := []PostSummary{
		{ID: "p1", PublishedAt: &published, Title: "Fish & Chips", Subtitle: "sub", Author: "Ana"},
		{ID: "draft", Title: "Draft"},
	}

	var feed bytes.Buffer
	if err := writeRSS(&feed, cfg, posts); err != nil {
		t.Fatalf("writeRSS: %v", err)
	}
	for _, want := range []string{
		"<title>Fish &amp; Chips</title>",
		"<link>https://blog.example.com/post/p1/</link>",
		"<pubDate>Mon, 15 Mar 2021 19:25:00 +0000</pubDate>",
		"<language>pt-BR</language>",
	} {
		if !strings.Contains(feed.String(), want) {
			t.Errorf("feed missing %q", want)
		}
	}
	if strings.Count(feed.String(), "<pubDate>") != 1 {
		t.Error("draft post should have no pubDate")
	}

	var sitemap bytes.Buffer
	if err := writeSitemap(&sitemap, cfg, posts); err != nil {
		t.Fatalf("writeSitemap: %v", err)
	}
	for _, want := range []string{
		"<loc>https://blog.example.com</loc>",
		"<loc>https://blog.example.com/post/p1/</loc><lastmod>2021-03-15</lastmod>",
		"<loc>https://blog.example.com/post/draft/</loc>",
	} {
		if !strings.Contains(sitemap.String(), want) {
			t.Errorf("sitemap missing %q", want)
		}
	}
}
