package richtext

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"unicode/utf16"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// LinkResolver maps a document link to an href. An empty result drops the
// anchor and keeps its content.
type LinkResolver func(l Link) string

// DefaultLinkResolver sends document links to the post page of their UID.
func DefaultLinkResolver(l Link) string {
	if l.UID == "" {
		return ""
	}
	return "/post/" + url.PathEscape(l.UID) + "/"
}

type options struct {
	resolve LinkResolver
}

// Option configures HTML rendering.
type Option func(*options)

// WithLinkResolver sets the resolver used for document links.
func WithLinkResolver(fn LinkResolver) Option {
	return func(o *options) {
		if fn != nil {
			o.resolve = fn
		}
	}
}

// HTML renders rt as a sanitized HTML fragment. Consecutive list items are
// grouped into a single list; unknown block types are skipped.
func (rt RichText) HTML(opts ...Option) string {
	o := options{resolve: DefaultLinkResolver}
	for _, opt := range opts {
		opt(&o)
	}

	var nodes []*html.Node
	var list *html.Node
	for _, b := range rt {
		if b.Type == TypeListItem || b.Type == TypeOListItem {
			tag := atom.Ul
			if b.Type == TypeOListItem {
				tag = atom.Ol
			}
			if list == nil || list.DataAtom != tag {
				list = element(tag)
				nodes = append(nodes, list)
			}
			li := element(atom.Li)
			renderSpans(li, utf16.Encode([]rune(b.Text)), b.Spans, o)
			list.AppendChild(li)
			continue
		}
		list = nil
		if n := o.block(b); n != nil {
			nodes = append(nodes, n)
		}
	}

	var sb strings.Builder
	for _, n := range nodes {
		if err := html.Render(&sb, n); err != nil {
			return ""
		}
	}
	return sb.String()
}

func (o options) block(b Block) *html.Node {
	var n *html.Node
	switch b.Type {
	case TypeParagraph:
		n = element(atom.P)
	case TypePreformatted:
		n = element(atom.Pre)
	case TypeHeading1:
		n = element(atom.H1)
	case TypeHeading2:
		n = element(atom.H2)
	case TypeHeading3:
		n = element(atom.H3)
	case TypeHeading4:
		n = element(atom.H4)
	case TypeHeading5:
		n = element(atom.H5)
	case TypeHeading6:
		n = element(atom.H6)
	case TypeImage:
		return o.image(b)
	case TypeEmbed:
		return embed(b)
	default:
		return nil
	}
	renderSpans(n, utf16.Encode([]rune(b.Text)), b.Spans, o)
	return n
}

func (o options) image(b Block) *html.Node {
	src := safeURL(b.URL, false)
	if src == "" {
		return nil
	}
	img := element(atom.Img, html.Attribute{Key: "src", Val: src}, html.Attribute{Key: "alt", Val: b.Alt})
	wrap := element(atom.P, html.Attribute{Key: "class", Val: "block-img"})
	if b.LinkTo != nil {
		if href := o.href(*b.LinkTo); href != "" {
			a := anchor(href, b.LinkTo.Target)
			a.AppendChild(img)
			wrap.AppendChild(a)
			return wrap
		}
	}
	wrap.AppendChild(img)
	return wrap
}

func embed(b Block) *html.Node {
	if b.Oembed == nil {
		return nil
	}
	href := safeURL(b.Oembed.EmbedURL, false)
	if href == "" {
		return nil
	}
	div := element(atom.Div,
		html.Attribute{Key: "class", Val: "block-embed"},
		html.Attribute{Key: "data-oembed-type", Val: b.Oembed.Type},
		html.Attribute{Key: "data-oembed-provider", Val: b.Oembed.ProviderName},
	)
	label := b.Oembed.Title
	if label == "" {
		label = href
	}
	a := anchor(href, "_blank")
	a.AppendChild(&html.Node{Type: html.TextNode, Data: label})
	div.AppendChild(a)
	return div
}

// href resolves a link to a safe href, or "" when it cannot be rendered.
func (o options) href(l Link) string {
	if l.LinkType == LinkDocument {
		return safeURL(o.resolve(l), true)
	}
	return safeURL(l.URL, true)
}

// renderSpans appends text[0:len(text)] to parent, nesting span elements
// by offset. A span partially overlapping an earlier one is split at the
// earlier span's end.
func renderSpans(parent *html.Node, text []uint16, spans []Span, o options) {
	valid := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > len(text) {
			s.End = len(text)
		}
		if s.Start < s.End {
			valid = append(valid, s)
		}
	}
	o.nest(parent, text, 0, len(text), valid)
}

func (o options) nest(parent *html.Node, text []uint16, from, to int, spans []Span) {
	sortSpans(spans)
	pos := from
	for len(spans) > 0 {
		s := spans[0]
		spans = spans[1:]
		if s.Start > pos {
			appendText(parent, text[pos:s.Start])
		}

		var inner, rest []Span
		for _, other := range spans {
			switch {
			case other.Start >= s.End:
				rest = append(rest, other)
			case other.End <= s.End:
				inner = append(inner, other)
			default:
				head, tail := other, other
				head.End = s.End
				tail.Start = s.End
				inner = append(inner, head)
				rest = append(rest, tail)
			}
		}

		if n := o.spanNode(s); n != nil {
			o.nest(n, text, s.Start, s.End, inner)
			parent.AppendChild(n)
		} else {
			o.nest(parent, text, s.Start, s.End, inner)
		}
		pos = s.End
		spans = rest
		sortSpans(spans)
	}
	if pos < to {
		appendText(parent, text[pos:to])
	}
}

func sortSpans(spans []Span) {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End > spans[j].End
	})
}

func (o options) spanNode(s Span) *html.Node {
	switch s.Type {
	case SpanStrong:
		return element(atom.Strong)
	case SpanEm:
		return element(atom.Em)
	case SpanHyperlink:
		var l Link
		if err := json.Unmarshal(s.Data, &l); err != nil {
			return nil
		}
		href := o.href(l)
		if href == "" {
			return nil
		}
		return anchor(href, l.Target)
	case SpanLabel:
		var d struct {
			Label string `json:"label"`
		}
		if err := json.Unmarshal(s.Data, &d); err != nil || d.Label == "" {
			return element(atom.Span)
		}
		return element(atom.Span, html.Attribute{Key: "class", Val: d.Label})
	}
	return nil
}

// appendText adds text to parent, turning newlines into <br> elements.
func appendText(parent *html.Node, text []uint16) {
	lines := strings.Split(string(utf16.Decode(text)), "\n")
	for i, line := range lines {
		if i > 0 {
			parent.AppendChild(element(atom.Br))
		}
		if line != "" {
			parent.AppendChild(&html.Node{Type: html.TextNode, Data: line})
		}
	}
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func anchor(href, target string) *html.Node {
	a := element(atom.A, html.Attribute{Key: "href", Val: href})
	if target != "" {
		a.Attr = append(a.Attr,
			html.Attribute{Key: "target", Val: target},
			html.Attribute{Key: "rel", Val: "noopener noreferrer"},
		)
	}
	return a
}

// safeURL returns raw when it is a relative reference or uses an allowed
// scheme, and "" otherwise. mailto and tel are only allowed for links.
func safeURL(raw string, link bool) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "":
		if u.Opaque != "" {
			return ""
		}
		return raw
	case "http", "https":
		return raw
	case "mailto", "tel":
		if link {
			return raw
		}
	}
	return ""
}
