// Package prismic is a thin client for the Prismic REST API v2. It implements
// content.Source: every call maps to one logical query, with no caching and
// no retries.
package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eringen/spacetravel/content"
)

const maxBodyBytes = 10 << 20

// Recorder observes every HTTP exchange with the API.
type Recorder interface {
	ObserveRequest(op, result string, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveRequest(string, string, time.Duration) {}

// Config holds the settings of a Client. Endpoint and AccessToken are required.
type Config struct {
	Endpoint    string // e.g. https://spacetraveling.cdn.prismic.io/api/v2
	AccessToken string
	HTTPClient  *http.Client // default: 10s timeout
	Logger      *slog.Logger
	Recorder    Recorder
}

// Client queries one Prismic repository.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	logger   *slog.Logger
	recorder Recorder
}

var _ content.Source = (*Client)(nil)

// New returns a configured Client or a *content.ConfigError.
func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, &content.ConfigError{Field: "PRISMIC_ENDPOINT"}
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, &content.ConfigError{Field: "PRISMIC_ENDPOINT"}
	}
	if cfg.AccessToken == "" {
		return nil, &content.ConfigError{Field: "PRISMIC_ACCESS_TOKEN"}
	}
	c := &Client{
		endpoint: endpoint,
		token:    cfg.AccessToken,
		http:     cfg.HTTPClient,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.recorder == nil {
		c.recorder = noopRecorder{}
	}
	return c, nil
}

type apiRef struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

type apiInfo struct {
	Refs []apiRef `json:"refs"`
}

type apiDocument struct {
	ID                   string          `json:"id"`
	UID                  *string         `json:"uid"`
	Type                 string          `json:"type"`
	FirstPublicationDate *string         `json:"first_publication_date"`
	LastPublicationDate  *string         `json:"last_publication_date"`
	Data                 json.RawMessage `json:"data"`
}

type searchResponse struct {
	Page             int           `json:"page"`
	ResultsPerPage   int           `json:"results_per_page"`
	TotalResultsSize int           `json:"total_results_size"`
	TotalPages       int           `json:"total_pages"`
	NextPage         *string       `json:"next_page"`
	Results          []apiDocument `json:"results"`
}

// MasterRef returns the ref of the currently published content.
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	var info apiInfo
	if err := c.get(ctx, "ref", c.endpoint, url.Values{}, &info); err != nil {
		return "", err
	}
	for _, r := range info.Refs {
		if r.IsMasterRef {
			return r.Ref, nil
		}
	}
	return "", &content.TransportError{Op: "ref", Err: errors.New("repository has no master ref")}
}

// Query runs a search. The cursor is the opaque number of the next page.
func (c *Client) Query(ctx context.Context, q content.Query) (content.Page, error) {
	page := 1
	if q.Cursor != "" {
		n, err := strconv.Atoi(q.Cursor)
		if err != nil || n < 1 {
			return content.Page{}, content.ErrInvalidCursor
		}
		page = n
	}

	preds := []string{at("document.type", q.Type)}
	if q.PublishedAfter != nil {
		preds = append(preds, fmt.Sprintf("[date.after(document.first_publication_date,%d)]", q.PublishedAfter.UnixMilli()))
	}
	if q.PublishedBefore != nil {
		preds = append(preds, fmt.Sprintf("[date.before(document.first_publication_date,%d)]", q.PublishedBefore.UnixMilli()))
	}

	params := url.Values{}
	params.Set("q", "["+strings.Join(preds, "")+"]")
	params.Set("orderings", orderings(q.Order))
	params.Set("page", strconv.Itoa(page))
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if len(q.Fetch) > 0 {
		params.Set("fetch", strings.Join(q.Fetch, ","))
	}

	resp, err := c.search(ctx, q.Ref, params)
	if err != nil {
		return content.Page{}, err
	}

	out := content.Page{Total: resp.TotalResultsSize}
	out.Results = make([]content.Document, 0, len(resp.Results))
	for _, d := range resp.Results {
		out.Results = append(out.Results, toDocument(d))
	}
	if resp.NextPage != nil && *resp.NextPage != "" {
		out.NextCursor = strconv.Itoa(resp.Page + 1)
	}
	return out, nil
}

// GetByUID fetches the document of docType with the given UID.
func (c *Client) GetByUID(ctx context.Context, docType, uid, ref string) (content.Document, error) {
	return c.single(ctx, ref, at("my."+docType+".uid", uid), at("document.type", docType))
}

// GetByID fetches a document by its CMS id.
func (c *Client) GetByID(ctx context.Context, id, ref string) (content.Document, error) {
	return c.single(ctx, ref, at("document.id", id))
}

func (c *Client) single(ctx context.Context, ref string, preds ...string) (content.Document, error) {
	params := url.Values{}
	params.Set("q", "["+strings.Join(preds, "")+"]")
	params.Set("pageSize", "1")
	resp, err := c.search(ctx, ref, params)
	if err != nil {
		return content.Document{}, err
	}
	if len(resp.Results) == 0 {
		return content.Document{}, content.ErrNotFound
	}
	return toDocument(resp.Results[0]), nil
}

func (c *Client) search(ctx context.Context, ref string, params url.Values) (searchResponse, error) {
	if ref == "" {
		master, err := c.MasterRef(ctx)
		if err != nil {
			return searchResponse{}, err
		}
		ref = master
	}
	params.Set("ref", ref)
	var resp searchResponse
	err := c.get(ctx, "search", c.endpoint+"/documents/search", params, &resp)
	return resp, err
}

func (c *Client) get(ctx context.Context, op, endpoint string, params url.Values, out any) (err error) {
	start := time.Now()
	status := 0
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		c.recorder.ObserveRequest(op, result, time.Since(start))
		c.logger.Debug("prismic request", "op", op, "status", status, "duration", time.Since(start), "error", err)
	}()

	params.Set("access_token", c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return &content.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return &content.TransportError{Op: op, Err: err}
	}
	defer res.Body.Close()
	status = res.StatusCode

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return &content.TransportError{Op: op, StatusCode: status, Err: err}
	}
	if status < 200 || status > 299 {
		return &content.TransportError{Op: op, StatusCode: status, Err: errors.New(apiMessage(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &content.TransportError{Op: op, StatusCode: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// apiMessage extracts the error message of an API error body.
func apiMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return "unexpected response"
}

func at(path, value string) string {
	return fmt.Sprintf("[at(%s,%s)]", path, strconv.Quote(value))
}

func orderings(o content.Order) string {
	if o == content.Ascending {
		return "[document.first_publication_date]"
	}
	return "[document.first_publication_date desc]"
}

func toDocument(d apiDocument) content.Document {
	doc := content.Document{
		ID:                   d.ID,
		Type:                 d.Type,
		FirstPublicationDate: parseTime(d.FirstPublicationDate),
		LastPublicationDate:  parseTime(d.LastPublicationDate),
		Data:                 d.Data,
	}
	if d.UID != nil {
		doc.UID = *d.UID
	}
	return doc
}

// Prismic timestamps look like 2021-03-25T19:25:28+0000.
var timeLayouts = []string{"2006-01-02T15:04:05-0700", time.RFC3339Nano}

func parseTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
