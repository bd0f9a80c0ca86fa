// Package richtext normalizes CMS rich text into plain text and sanitized
// HTML fragments.
//
// Rich text is an ordered list of typed blocks (paragraphs, headings, list
// items, images, embeds), each carrying its text and a set of spans marking
// formatting by offset. Every function in this package is total: malformed
// or missing input yields empty output, never an error.
package richtext

import (
	"encoding/json"
	"strings"
)

// Block types understood by AsHTML. Anything else is skipped.
const (
	TypeParagraph    = "paragraph"
	TypePreformatted = "preformatted"
	TypeHeading1     = "heading1"
	TypeHeading2     = "heading2"
	TypeHeading3     = "heading3"
	TypeHeading4     = "heading4"
	TypeHeading5     = "heading5"
	TypeHeading6     = "heading6"
	TypeListItem     = "list-item"
	TypeOListItem    = "o-list-item"
	TypeImage        = "image"
	TypeEmbed        = "embed"
)

// Span types.
const (
	SpanStrong    = "strong"
	SpanEm        = "em"
	SpanHyperlink = "hyperlink"
	SpanLabel     = "label"
)

// Link kinds used in hyperlink spans and image links.
const (
	LinkWeb      = "Web"
	LinkDocument = "Document"
	LinkMedia    = "Media"
)

// Block is one rich-text block.
type Block struct {
	Type       string      `json:"type"`
	Text       string      `json:"text"`
	Spans      []Span      `json:"spans"`
	URL        string      `json:"url"`
	Alt        string      `json:"alt"`
	Dimensions *Dimensions `json:"dimensions"`
	LinkTo     *Link       `json:"linkTo"`
	Oembed     *Embed      `json:"oembed"`
}

// Span marks Text[Start:End] (UTF-16 code units) with a formatting type.
type Span struct {
	Start int             `json:"start"`
	End   int             `json:"end"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

// Link is the target of a hyperlink span or a linked image.
type Link struct {
	LinkType string `json:"link_type"`
	URL      string `json:"url"`
	Target   string `json:"target"`
	ID       string `json:"id"`
	UID      string `json:"uid"`
	Type     string `json:"type"`
}

// Dimensions of an image block.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Embed is the oEmbed payload of an embed block.
type Embed struct {
	Type         string `json:"type"`
	EmbedURL     string `json:"embed_url"`
	Title        string `json:"title"`
	ProviderName string `json:"provider_name"`
}

// RichText is an ordered sequence of blocks.
type RichText []Block

// Parse decodes raw rich text. A JSON string becomes a single paragraph.
// Blocks that fail to decode are dropped; anything other than an array or a
// string yields nil.
func Parse(raw json.RawMessage) RichText {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return nil
		}
		return RichText{{Type: TypeParagraph, Text: s}}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		out := make(RichText, 0, len(items))
		for _, item := range items {
			var b Block
			if err := json.Unmarshal(item, &b); err != nil || b.Type == "" {
				continue
			}
			out = append(out, b)
		}
		return out
	}
	return nil
}

// PlainText joins the text of every block with a single space, dropping
// all formatting.
func (rt RichText) PlainText() string {
	parts := make([]string, 0, len(rt))
	for _, b := range rt {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, " ")
}

// AsPlainText returns the plain text of raw rich text.
func AsPlainText(raw json.RawMessage) string {
	return Parse(raw).PlainText()
}

// AsHTML renders raw rich text as a sanitized HTML fragment.
func AsHTML(raw json.RawMessage, opts ...Option) string {
	return Parse(raw).HTML(opts...)
}

// Field is a CMS text field that may be stored either as a plain string or
// as rich text. Decoding a Field never fails.
type Field struct {
	raw json.RawMessage
}

// NewField wraps raw field data.
func NewField(raw json.RawMessage) Field {
	return Field{raw: raw}
}

func (f *Field) UnmarshalJSON(b []byte) error {
	f.raw = append(f.raw[:0], b...)
	return nil
}

// Raw returns the undecoded field value.
func (f Field) Raw() json.RawMessage { return f.raw }

// Text returns the field as plain text.
func (f Field) Text() string { return AsPlainText(f.raw) }

// HTML returns the field as an HTML fragment.
func (f Field) HTML(opts ...Option) string { return AsHTML(f.raw, opts...) }
