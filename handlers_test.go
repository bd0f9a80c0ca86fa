package spacetravel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/spacetravel/content"
	"github.com/eringen/spacetravel/metrics"
)

// gatedSource blocks document lookups until gate is closed.
type gatedSource struct {
	*fakeSource
	gate chan struct{}
}

func (g gatedSource) GetByUID(ctx context.Context, docType, uid, ref string) (content.Document, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return content.Document{}, ctx.Err()
	}
	return g.fakeSource.GetByUID(ctx, docType, uid, ref)
}

func newTestApp(t *testing.T, src content.Source, mutate func(*SiteConfig), opts ...Option) *App {
	t.Helper()
	cfg := SiteConfig{
		URL:          "https://blog.example.com",
		OutputDir:    t.TempDir(),
		FallbackWait: 5 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	a := New(cfg, src, stubViews(), opts...)
	a.Setup()
	t.Cleanup(func() { a.Close() })
	return a
}

func do(a *App, method, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func TestHandlePostGeneratesOnDemand(t *testing.T) {
	a := newTestApp(t, threePosts(), nil)

	rec := do(a, http.MethodGet, "/post/p2/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "post:ready:Title p2:/post/p1/:/post/p3/:preview=false", rec.Body.String())
	assert.FileExists(t, a.Generator.PostPath("p2"))

	again := do(a, http.MethodGet, "/post/p2/")
	assert.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, rec.Body.String(), again.Body.String())
}

func TestHandlePostNotFound(t *testing.T) {
	a := newTestApp(t, threePosts(), nil)

	rec := do(a, http.MethodGet, "/post/missing/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "post:not_found::::preview=false", rec.Body.String())
	assert.NoFileExists(t, a.Generator.PostPath("missing"))

	bad := do(a, http.MethodGet, "/post/a%20b/")
	assert.Equal(t, http.StatusNotFound, bad.Code)
}

func TestHandlePostFallsBackToLoading(t *testing.T) {
	src := gatedSource{fakeSource: threePosts(), gate: make(chan struct{})}
	a := newTestApp(t, src, func(c *SiteConfig) { c.FallbackWait = 20 * time.Millisecond })

	rec := do(a, http.MethodGet, "/post/p3/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "post:loading::::preview=false", rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	close(src.gate)
	path := a.Generator.PostPath("p3")
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "generation continues after the fallback")

	done := do(a, http.MethodGet, "/post/p3/")
	assert.Equal(t, "post:ready:Title p3:/post/p2/::preview=false", done.Body.String())
}

func TestHandlePostTransportError(t *testing.T) {
	src := threePosts()
	src.failQuery = func(content.Query) error {
		return &content.TransportError{Op: "search", StatusCode: 502}
	}
	a := newTestApp(t, src, nil)

	rec := do(a, http.MethodGet, "/post/p2/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "server-error", rec.Body.String())
}

func TestHandlePostServesStaleAndRegenerates(t *testing.T) {
	a := newTestApp(t, threePosts(), nil)

	path := a.Generator.PostPath("p1")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale copy"), 0o644))
	old := time.Now().Add(-2 * a.Config.Revalidate)
	require.NoError(t, os.Chtimes(path, old, old))

	rec := do(a, http.MethodGet, "/post/p1/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stale copy", rec.Body.String())

	require.Eventually(t, func() bool {
		b, err := os.ReadFile(path)
		return err == nil && strings.HasPrefix(string(b), "post:ready:Title p1")
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, running := a.Generator.refreshing.Load(path)
		return !running
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandlePostAddsTrailingSlash(t *testing.T) {
	a := newTestApp(t, threePosts(), nil)

	rec := do(a, http.MethodGet, "/post/p2")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/post/p2/", rec.Header().Get("Location"))
}

func TestHandleHome(t *testing.T) {
	a := newTestApp(t, threePosts(), func(c *SiteConfig) {
		c.PageSize = 2
		c.MaxPageSize = 2
	})

	rec := do(a, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "home:p3,p2:/?page=2", rec.Body.String())
	assert.FileExists(t, a.Generator.HomePath())

	next := do(a, http.MethodGet, "/?page=2")
	require.Equal(t, http.StatusOK, next.Code)
	assert.Equal(t, "home:p1:/", next.Body.String())
	assert.Equal(t, "no-store", next.Header().Get("Cache-Control"))

	invalid := do(a, http.MethodGet, "/?page=bogus")
	assert.Equal(t, http.StatusNotFound, invalid.Code)
	assert.Equal(t, "not-found", invalid.Body.String())
}

func TestHandleFeedSitemapRobots(t *testing.T) {
	a := newTestApp(t, threePosts(), nil)

	feed := do(a, http.MethodGet, "/feed.xml")
	require.Equal(t, http.StatusOK, feed.Code)
	assert.Equal(t, "application/rss+xml; charset=utf-8", feed.Header().Get("Content-Type"))
	assert.Contains(t, feed.Body.String(), "<guid>https://blog.example.com/post/p3/</guid>")

	sitemap := do(a, http.MethodGet, "/sitemap.xml")
	require.Equal(t, http.StatusOK, sitemap.Code)
	assert.Contains(t, sitemap.Body.String(), "<loc>https://blog.example.com</loc>")
	assert.Contains(t, sitemap.Body.String(), "<loc>https://blog.example.com/post/p1/</loc>")

	robots := do(a, http.MethodGet, "/robots.txt")
	require.Equal(t, http.StatusOK, robots.Code)
	assert.Contains(t, robots.Body.String(), "Sitemap: https://blog.example.com/sitemap.xml")
}

func TestHandlePublicAssets(t *testing.T) {
	a := newTestApp(t, threePosts(), nil)

	rec := do(a, http.MethodGet, "/public/style.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
	assert.Equal(t, "public, max-age=31536000, immutable", rec.Header().Get("Cache-Control"))
}

func TestPreviewFlow(t *testing.T) {
	a := newTestApp(t, threePosts(), func(c *SiteConfig) { c.SessionSecret = "test-secret-test-secret" })

	enter := do(a, http.MethodGet, "/api/preview?token=preview-ref&documentId=ID-p2")
	require.Equal(t, http.StatusTemporaryRedirect, enter.Code)
	assert.Equal(t, "/post/p2/", enter.Header().Get("Location"))
	cookies := enter.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec := do(a, http.MethodGet, "/post/p2/", cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "post:ready:Title p2:/post/p1/:/post/p3/:preview=true", rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NoFileExists(t, a.Generator.PostPath("p2"), "preview renders are never written")

	exit := do(a, http.MethodGet, "/api/exit-preview", cookies...)
	assert.Equal(t, http.StatusTemporaryRedirect, exit.Code)
	assert.Equal(t, "/", exit.Header().Get("Location"))
	require.NotEmpty(t, exit.Result().Cookies())
	assert.True(t, exit.Result().Cookies()[0].MaxAge < 0, "session cookie is expired")
}

func TestPreviewUnknownDocumentGoesHome(t *testing.T) {
	a := newTestApp(t, threePosts(), func(c *SiteConfig) { c.SessionSecret = "test-secret-test-secret" })

	rec := do(a, http.MethodGet, "/api/preview?token=preview-ref&documentId=nope")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	missing := do(a, http.MethodGet, "/api/preview")
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestPreviewDisabledWithoutSecret(t *testing.T) {
	a := newTestApp(t, threePosts(), nil)

	rec := do(a, http.MethodGet, "/api/preview?token=preview-ref&documentId=ID-p2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewIsRateLimited(t *testing.T) {
	a := newTestApp(t, threePosts(), func(c *SiteConfig) { c.SessionSecret = "test-secret-test-secret" })

	var last int
	for i := 0; i < 11; i++ {
		last = do(a, http.MethodGet, "/api/preview?token=preview-ref").Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prom.NewRegistry()
	a := newTestApp(t, threePosts(), nil, WithMetrics(reg, metrics.NewRecorder(reg)))

	require.Equal(t, http.StatusOK, do(a, http.MethodGet, "/post/p2/").Code)

	rec := do(a, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `spacetravel_pages_generated_total{kind="post",outcome="ok"} 1`)
	assert.Contains(t, body, "spacetravel_http_requests_total")
}

func TestMetricsEndpointAbsentByDefault(t *testing.T) {
	a := newTestApp(t, threePosts(), nil)
	assert.Equal(t, http.StatusNotFound, do(a, http.MethodGet, "/metrics").Code)
}
