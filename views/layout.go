// Package views renders the site's pages as templ components.
package views

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	spacetravel "github.com/eringen/spacetravel"
)

// PageMeta carries per-page OpenGraph and SEO metadata into the <head>.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
	JSONLD      string
	Refresh     int // seconds; 0 disables the meta refresh
	NoIndex     bool
}

// out writes HTML to w, keeping the first error.
type out struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (o *out) raw(s string) {
	if o.err == nil {
		_, o.err = io.WriteString(o.w, s)
	}
}

func (o *out) text(s string) { o.raw(templ.EscapeString(s)) }

func (o *out) url(s string) { o.text(string(templ.URL(s))) }

func (o *out) render(c templ.Component) {
	if o.err == nil && c != nil {
		o.err = c.Render(o.ctx, o.w)
	}
}

// page wraps body in the document shell shared by every page.
func page(cfg spacetravel.SiteConfig, meta PageMeta, body func(o *out)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := lookup(cfg.Locale)
		o := &out{ctx: ctx, w: w}
		title := cfg.Name
		if meta.Title != "" {
			title = meta.Title + " | " + cfg.Name
		}
		description := meta.Description
		if description == "" {
			description = cfg.Description
		}

		o.raw(`<!DOCTYPE html><html lang="`)
		o.text(m.lang)
		o.raw(`"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		o.raw(`<title>`)
		o.text(title)
		o.raw(`</title>`)
		if description != "" {
			o.raw(`<meta name="description" content="`)
			o.text(description)
			o.raw(`">`)
		}
		if meta.NoIndex {
			o.raw(`<meta name="robots" content="noindex">`)
		}
		if meta.Refresh > 0 {
			o.raw(`<meta http-equiv="refresh" content="`)
			o.raw(strconv.Itoa(meta.Refresh))
			o.raw(`">`)
		}
		if meta.URL != "" {
			o.raw(`<link rel="canonical" href="`)
			o.url(meta.URL)
			o.raw(`"><meta property="og:url" content="`)
			o.url(meta.URL)
			o.raw(`">`)
		}
		o.raw(`<meta property="og:title" content="`)
		o.text(title)
		o.raw(`"><meta property="og:type" content="`)
		if meta.OGType != "" {
			o.text(meta.OGType)
		} else {
			o.raw("website")
		}
		o.raw(`">`)
		if meta.Image != "" {
			o.raw(`<meta property="og:image" content="`)
			o.url(meta.Image)
			o.raw(`">`)
		}
		o.raw(`<link rel="alternate" type="application/rss+xml" title="`)
		o.text(cfg.Name)
		o.raw(`" href="/feed.xml"><link rel="stylesheet" href="/public/style.css">`)
		if meta.JSONLD != "" {
			// json.Marshal escapes <, > and &, so the document cannot end the script.
			o.raw(`<script type="application/ld+json">`)
			o.raw(meta.JSONLD)
			o.raw(`</script>`)
		}
		o.raw(`</head><body><header class="header container"><a href="/"><img src="/public/logo.svg" alt="logo"></a></header><main>`)
		if o.err == nil {
			body(o)
		}
		o.raw(`</main></body></html>`)
		return o.err
	})
}
