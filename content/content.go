// Package content defines the contract between the blog and its content
// sources: the documents they return, the queries they accept and the
// errors they report.
package content

import (
	"context"
	"encoding/json"
	"time"
)

// PostType is the custom type of blog posts in the CMS.
const PostType = "posts"

// Document is a raw CMS document. Data holds the type-specific fields
// exactly as the source returned them.
type Document struct {
	ID                   string
	UID                  string
	Type                 string
	FirstPublicationDate *time.Time
	LastPublicationDate  *time.Time
	Data                 json.RawMessage
}

// Order is the direction of the publication-date ordering.
type Order int

const (
	Descending Order = iota
	Ascending
)

func (o Order) String() string {
	if o == Ascending {
		return "asc"
	}
	return "desc"
}

// Query selects documents of one type ordered by first publication date.
//
// PublishedAfter and PublishedBefore are strict bounds. Cursor is an opaque
// value previously returned in Page.NextCursor by the same Source; empty
// starts at the first page. Ref selects a preview revision.
type Query struct {
	Type            string
	PublishedAfter  *time.Time
	PublishedBefore *time.Time
	Order           Order
	Cursor          string
	PageSize        int
	Fetch           []string
	Ref             string
}

// Page is one page of query results. NextCursor is empty when there are no
// further pages.
type Page struct {
	Results    []Document
	NextCursor string
	Total      int
}

// Source is a content store that can be queried for documents.
type Source interface {
	Query(ctx context.Context, q Query) (Page, error)
	GetByUID(ctx context.Context, docType, uid, ref string) (Document, error)
	GetByID(ctx context.Context, id, ref string) (Document, error)
}
