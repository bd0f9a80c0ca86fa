package spacetravel

import (
	"strings"
	"time"
)

// wordsPerMinute is the reading speed used by ReadingTime.
const wordsPerMinute = 200

// PostSummary is one entry of the post listing. ID is the CMS UID.
type PostSummary struct {
	ID          string
	PublishedAt *time.Time
	Title       string
	Subtitle    string
	Author      string
}

// PostDetail is a post ready for display. BodyHTML of each section is
// already sanitized.
type PostDetail struct {
	ID          string
	PublishedAt *time.Time
	UpdatedAt   *time.Time
	Title       string
	Subtitle    string
	BannerURL   string
	BannerAlt   string
	Author      string
	Sections    []Section
}

// Section is one heading and its body.
type Section struct {
	Heading  string
	BodyHTML string
	BodyText string
}

// ReadingTime estimates whole minutes to read the post, rounding up.
func (p PostDetail) ReadingTime() int {
	words := 0
	for _, s := range p.Sections {
		words += len(strings.Fields(s.Heading))
		words += len(strings.Fields(s.BodyText))
	}
	if words == 0 {
		return 0
	}
	return (words + wordsPerMinute - 1) / wordsPerMinute
}

// NeighborRef points at an adjacent post.
type NeighborRef struct {
	Title string
	Href  string
}

// Pagination links a post to its neighbours in publication order: Previous
// was published earlier, Next later. Either may be nil.
type Pagination struct {
	Previous *NeighborRef
	Next     *NeighborRef
}

// ListingPage is one page of the post list. An empty NextCursor means there
// are no further pages.
type ListingPage struct {
	Items      []PostSummary
	NextCursor string
}

// RenderContext carries request-scoped flags into the views.
type RenderContext struct {
	PreviewMode bool
}

// DetailResult is everything the post page needs. Pagination is nil when the
// post has no neighbours or pagination was not requested.
type DetailResult struct {
	Post       PostDetail
	Pagination *Pagination
	Context    RenderContext
}

// DetailOptions selects what FetchDetail resolves.
type DetailOptions struct {
	IncludePagination bool
	PreviewRef        string
}

// PostHref is the site path of the post with the given UID.
func PostHref(uid string) string {
	return "/post/" + PathEscape(uid) + "/"
}

// PageState is the state the post page is rendered in.
type PageState int

const (
	// StateReady renders the assembled post.
	StateReady PageState = iota
	// StateLoading renders a placeholder while the page is being generated.
	StateLoading
	// StateNotFound renders the not found page.
	StateNotFound
)

func (s PageState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateNotFound:
		return "not_found"
	default:
		return "ready"
	}
}

// PostPage is the input of the post view. Result is only meaningful when
// State is StateReady.
type PostPage struct {
	State  PageState
	Result DetailResult
}
