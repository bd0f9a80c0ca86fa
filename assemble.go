package spacetravel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/spacetravel/content"
	"github.com/eringen/spacetravel/richtext"
)

// Fields requested from the CMS for listing and neighbour queries.
var (
	listingFields   = []string{"posts.title", "posts.subtitle", "posts.author"}
	neighbourFields = []string{"posts.title"}
)

// Assembler turns raw CMS documents into the plain data the views render.
type Assembler struct {
	source      content.Source
	pageSize    int
	maxPageSize int
	logger      *slog.Logger
}

// NewAssembler returns an Assembler over src. pageSize is used when a caller
// asks for zero items; maxPageSize caps every request.
func NewAssembler(src content.Source, pageSize, maxPageSize int, logger *slog.Logger) *Assembler {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if maxPageSize < pageSize {
		maxPageSize = pageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{source: src, pageSize: pageSize, maxPageSize: maxPageSize, logger: logger}
}

type postData struct {
	Title    richtext.Field `json:"title"`
	Subtitle richtext.Field `json:"subtitle"`
	Author   richtext.Field `json:"author"`
	Banner   struct {
		URL string `json:"url"`
		Alt string `json:"alt"`
	} `json:"banner"`
	Content []struct {
		Heading richtext.Field  `json:"heading"`
		Body    json.RawMessage `json:"body"`
	} `json:"content"`
}

// decodePost reads the post fields of d. Fields of the wrong shape are left
// empty; only unparseable JSON is an error.
func decodePost(d content.Document) (postData, error) {
	var pd postData
	if len(d.Data) == 0 {
		return pd, nil
	}
	err := json.Unmarshal(d.Data, &pd)
	var typeErr *json.UnmarshalTypeError
	if err != nil && !errors.As(err, &typeErr) {
		return postData{}, fmt.Errorf("spacetravel: decode document %s: %w", d.ID, err)
	}
	return pd, nil
}

// FetchListing returns one page of posts, newest first, starting at cursor.
// pageSize <= 0 selects the configured default.
func (a *Assembler) FetchListing(ctx context.Context, cursor string, pageSize int) (ListingPage, error) {
	page, err := a.source.Query(ctx, content.Query{
		Type:     content.PostType,
		Order:    content.Descending,
		Cursor:   cursor,
		PageSize: a.limit(pageSize),
		Fetch:    listingFields,
	})
	if err != nil {
		return ListingPage{}, fmt.Errorf("spacetravel: fetch listing: %w", err)
	}

	out := ListingPage{NextCursor: page.NextCursor}
	seen := make(map[string]struct{}, len(page.Results))
	for _, d := range page.Results {
		if _, dup := seen[d.UID]; dup {
			a.logger.Warn("duplicate post in listing", "uid", d.UID, "id", d.ID)
			continue
		}
		seen[d.UID] = struct{}{}
		pd, err := decodePost(d)
		if err != nil {
			return ListingPage{}, err
		}
		out.Items = append(out.Items, PostSummary{
			ID:          d.UID,
			PublishedAt: d.FirstPublicationDate,
			Title:       pd.Title.Text(),
			Subtitle:    pd.Subtitle.Text(),
			Author:      pd.Author.Text(),
		})
	}
	return out, nil
}

// FetchAll walks the listing from the first page and returns up to limit
// posts. limit <= 0 means every post.
func (a *Assembler) FetchAll(ctx context.Context, limit int) ([]PostSummary, error) {
	var (
		all    []PostSummary
		cursor string
		seen   = map[string]struct{}{}
	)
	for {
		page, err := a.FetchListing(ctx, cursor, a.maxPageSize)
		if err != nil {
			return nil, err
		}
		for _, p := range page.Items {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			all = append(all, p)
			if limit > 0 && len(all) == limit {
				return all, nil
			}
		}
		if page.NextCursor == "" || page.NextCursor == cursor {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

func (a *Assembler) limit(n int) int {
	if n <= 0 {
		return a.pageSize
	}
	if n > a.maxPageSize {
		return a.maxPageSize
	}
	return n
}

// FetchDetail loads the post with the given UID and, when requested, the
// posts published immediately before and after it.
//
// A draft (no publication date) has no bound on its neighbour queries, so
// its successor is the earliest published post and its predecessor the
// latest.
func (a *Assembler) FetchDetail(ctx context.Context, id string, opts DetailOptions) (DetailResult, error) {
	if id == "" {
		return DetailResult{}, fmt.Errorf("spacetravel: fetch post: %w", content.ErrNotFound)
	}
	doc, err := a.source.GetByUID(ctx, content.PostType, id, opts.PreviewRef)
	if err != nil {
		return DetailResult{}, fmt.Errorf("spacetravel: fetch post %q: %w", id, err)
	}
	post, err := buildDetail(doc)
	if err != nil {
		return DetailResult{}, err
	}

	res := DetailResult{
		Post:    post,
		Context: RenderContext{PreviewMode: opts.PreviewRef != ""},
	}
	if !opts.IncludePagination {
		return res, nil
	}
	res.Pagination, err = a.neighbours(ctx, doc, opts.PreviewRef)
	if err != nil {
		return DetailResult{}, fmt.Errorf("spacetravel: neighbours of %q: %w", id, err)
	}
	return res, nil
}

func buildDetail(d content.Document) (PostDetail, error) {
	pd, err := decodePost(d)
	if err != nil {
		return PostDetail{}, err
	}
	title := pd.Title.Text()
	post := PostDetail{
		ID:          d.UID,
		PublishedAt: d.FirstPublicationDate,
		UpdatedAt:   d.LastPublicationDate,
		Title:       title,
		Subtitle:    pd.Subtitle.Text(),
		BannerURL:   pd.Banner.URL,
		BannerAlt:   pd.Banner.Alt,
		Author:      pd.Author.Text(),
		Sections:    make([]Section, 0, len(pd.Content)),
	}
	if post.BannerAlt == "" {
		post.BannerAlt = title
	}
	for _, c := range pd.Content {
		post.Sections = append(post.Sections, Section{
			Heading:  c.Heading.Text(),
			BodyHTML: richtext.AsHTML(c.Body, richtext.WithLinkResolver(resolveLink)),
			BodyText: richtext.AsPlainText(c.Body),
		})
	}
	return post, nil
}

func resolveLink(l richtext.Link) string {
	if l.Type != "" && l.Type != content.PostType {
		return ""
	}
	if l.UID == "" {
		return ""
	}
	return PostHref(l.UID)
}

func (a *Assembler) neighbours(ctx context.Context, doc content.Document, ref string) (*Pagination, error) {
	var prev, next *NeighborRef
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.neighbour(gctx, doc, content.Ascending, ref)
		next = n
		return err
	})
	g.Go(func() error {
		n, err := a.neighbour(gctx, doc, content.Descending, ref)
		prev = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if prev == nil && next == nil {
		return nil, nil
	}
	return &Pagination{Previous: prev, Next: next}, nil
}

// neighbour returns the closest post strictly after (Ascending) or before
// (Descending) doc, or nil.
func (a *Assembler) neighbour(ctx context.Context, doc content.Document, order content.Order, ref string) (*NeighborRef, error) {
	q := content.Query{
		Type:     content.PostType,
		Order:    order,
		PageSize: 1,
		Fetch:    neighbourFields,
		Ref:      ref,
	}
	if order == content.Ascending {
		q.PublishedAfter = doc.FirstPublicationDate
	} else {
		q.PublishedBefore = doc.FirstPublicationDate
	}
	page, err := a.source.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(page.Results) == 0 {
		return nil, nil
	}
	n := page.Results[0]
	if n.UID == doc.UID || n.ID == doc.ID {
		return nil, nil
	}
	pd, err := decodePost(n)
	if err != nil {
		return nil, err
	}
	return &NeighborRef{Title: pd.Title.Text(), Href: PostHref(n.UID)}, nil
}
