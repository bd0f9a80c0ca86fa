package views

import (
	"fmt"
	"time"

	"github.com/a-h/templ"

	spacetravel "github.com/eringen/spacetravel"
)

// loadingRefresh is how often the loading page reloads itself.
const loadingRefresh = 2

// Home renders one page of the post listing. nextHref is only used when the
// page has a next cursor.
func Home(cfg spacetravel.SiteConfig, listing spacetravel.ListingPage, nextHref string) templ.Component {
	meta := PageMeta{
		URL:    spacetravel.BuildURL(cfg.URL),
		OGType: "website",
		JSONLD: spacetravel.WebsiteJsonLD(cfg),
	}
	return page(cfg, meta, func(o *out) {
		m := lookup(cfg.Locale)
		o.raw(`<div class="container post-list">`)
		if len(listing.Items) == 0 {
			o.raw(`<p>`)
			o.text(m.noPosts)
			o.raw(`</p>`)
		}
		for _, p := range listing.Items {
			o.raw(`<a href="`)
			o.url(spacetravel.PostHref(p.ID))
			o.raw(`"><strong>`)
			o.text(p.Title)
			o.raw(`</strong>`)
			if p.Subtitle != "" {
				o.raw(`<p>`)
				o.text(p.Subtitle)
				o.raw(`</p>`)
			}
			o.raw(`<div class="info">`)
			writeDate(o, p.PublishedAt, cfg.Locale)
			if p.Author != "" {
				o.raw(`<span class="author">`)
				o.text(p.Author)
				o.raw(`</span>`)
			}
			o.raw(`</div></a>`)
		}
		if listing.NextCursor != "" && nextHref != "" {
			o.raw(`<a class="load-more" href="`)
			o.url(nextHref)
			o.raw(`">`)
			o.text(m.loadMore)
			o.raw(`</a>`)
		}
		o.raw(`</div>`)
	})
}

// Post renders the post page in the given state.
func Post(cfg spacetravel.SiteConfig, p spacetravel.PostPage) templ.Component {
	switch p.State {
	case spacetravel.StateLoading:
		return loading(cfg)
	case spacetravel.StateNotFound:
		return NotFound(cfg)
	}
	return post(cfg, p.Result)
}

func loading(cfg spacetravel.SiteConfig) templ.Component {
	meta := PageMeta{Refresh: loadingRefresh, NoIndex: true}
	return page(cfg, meta, func(o *out) {
		o.raw(`<div class="container"><h1 class="loading">`)
		o.text(lookup(cfg.Locale).loading)
		o.raw(`</h1></div>`)
	})
}

func post(cfg spacetravel.SiteConfig, res spacetravel.DetailResult) templ.Component {
	d := res.Post
	meta := PageMeta{
		Title:       d.Title,
		Description: d.Subtitle,
		URL:         spacetravel.BuildURL(cfg.URL, "post", d.ID),
		OGType:      "article",
		Image:       d.BannerURL,
		JSONLD:      spacetravel.BlogPostingJsonLD(d, cfg),
		NoIndex:     res.Context.PreviewMode,
	}
	return page(cfg, meta, func(o *out) {
		m := lookup(cfg.Locale)
		if res.Context.PreviewMode {
			o.raw(`<a class="exit-preview" href="/api/exit-preview">`)
			o.text(m.exitPreview)
			o.raw(`</a>`)
		}
		if d.BannerURL != "" {
			o.raw(`<img class="banner" src="`)
			o.url(d.BannerURL)
			o.raw(`" alt="`)
			o.text(d.BannerAlt)
			o.raw(`">`)
		}
		o.raw(`<article class="container post"><h1>`)
		o.text(d.Title)
		o.raw(`</h1><div class="info">`)
		writeDate(o, d.PublishedAt, cfg.Locale)
		if d.Author != "" {
			o.raw(`<span class="author">`)
			o.text(d.Author)
			o.raw(`</span>`)
		}
		o.raw(`<span class="reading-time">`)
		o.text(fmt.Sprintf(m.readingTime, d.ReadingTime()))
		o.raw(`</span></div>`)
		if line := m.editedLine(d.PublishedAt, d.UpdatedAt); line != "" {
			o.raw(`<p class="updated">`)
			o.text(line)
			o.raw(`</p>`)
		}

		for _, s := range d.Sections {
			o.raw(`<section>`)
			if s.Heading != "" {
				o.raw(`<h2>`)
				o.text(s.Heading)
				o.raw(`</h2>`)
			}
			o.raw(`<div class="body">`)
			o.render(templ.Raw(s.BodyHTML))
			o.raw(`</div></section>`)
		}

		o.raw(`<div id="inject-comments-for-uterances"></div>`)
		if res.Pagination != nil {
			o.raw(`<hr class="separator"><nav class="neighbours">`)
			writeNeighbour(o, "previous", res.Pagination.Previous, m.previous)
			writeNeighbour(o, "next", res.Pagination.Next, m.next)
			o.raw(`</nav>`)
		}
		o.raw(`</article>`)
	})
}

func writeDate(o *out, t *time.Time, locale string) {
	if t == nil {
		return
	}
	o.raw(`<span class="date"><time datetime="`)
	o.text(t.Format(time.RFC3339))
	o.raw(`">`)
	o.text(FormatDate(t, locale))
	o.raw(`</time></span>`)
}

func writeNeighbour(o *out, class string, n *spacetravel.NeighborRef, label string) {
	if n == nil {
		return
	}
	o.raw(`<div class="`)
	o.text(class)
	o.raw(`"><p>`)
	o.text(n.Title)
	o.raw(`</p><a href="`)
	o.url(n.Href)
	o.raw(`">`)
	o.text(label)
	o.raw(`</a></div>`)
}

// NotFound renders the 404 page.
func NotFound(cfg spacetravel.SiteConfig) templ.Component {
	m := lookup(cfg.Locale)
	return errorPage(cfg, m.notFound, m.notFoundMsg)
}

// ServerError renders the 500 page.
func ServerError(cfg spacetravel.SiteConfig) templ.Component {
	m := lookup(cfg.Locale)
	return errorPage(cfg, m.serverError, m.serverMsg)
}

func errorPage(cfg spacetravel.SiteConfig, title, message string) templ.Component {
	return page(cfg, PageMeta{Title: title, NoIndex: true}, func(o *out) {
		o.raw(`<div class="container error-page"><h1>`)
		o.text(title)
		o.raw(`</h1><p>`)
		o.text(message)
		o.raw(`</p><p><a href="/">`)
		o.text(lookup(cfg.Locale).backHome)
		o.raw(`</a></p></div>`)
	})
}

// Funcs returns the components the App and the Generator render with.
func Funcs() spacetravel.ViewFuncs {
	return spacetravel.ViewFuncs{
		Home:        Home,
		Post:        Post,
		NotFound:    NotFound,
		ServerError: ServerError,
	}
}
