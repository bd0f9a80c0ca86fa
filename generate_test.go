package spacetravel

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/spacetravel/content"
)

// stubViews renders one line describing what each view was given.
func stubViews() ViewFuncs {
	write := func(format string, args ...any) templ.Component {
		return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
			_, err := fmt.Fprintf(w, format, args...)
			return err
		})
	}
	return ViewFuncs{
		Home: func(_ SiteConfig, page ListingPage, nextHref string) templ.Component {
			ids := make([]string, 0, len(page.Items))
			for _, p := range page.Items {
				ids = append(ids, p.ID)
			}
			return write("home:%s:%s", strings.Join(ids, ","), nextHref)
		},
		Post: func(_ SiteConfig, page PostPage) templ.Component {
			var prev, next string
			if pg := page.Result.Pagination; pg != nil {
				prev, next = href(pg.Previous), href(pg.Next)
			}
			return write("post:%s:%s:%s:%s:preview=%t", page.State, page.Result.Post.Title, prev, next, page.Result.Context.PreviewMode)
		},
		NotFound:    func(SiteConfig) templ.Component { return write("not-found") },
		ServerError: func(SiteConfig) templ.Component { return write("server-error") },
	}
}

type pageObservation struct {
	kind, outcome string
}

type fakePageRecorder struct {
	mu  sync.Mutex
	obs []pageObservation
}

func (r *fakePageRecorder) ObservePage(kind, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, pageObservation{kind, outcome})
}

func threePosts() *fakeSource {
	return &fakeSource{docs: []content.Document{titled("p1", day(1)), titled("p2", day(2)), titled("p3", day(3))}}
}

func newTestGenerator(t *testing.T, src content.Source, rec PageRecorder) *Generator {
	t.Helper()
	cfg := SiteConfig{URL: "https://blog.example.com", OutputDir: t.TempDir(), PrebuildCount: 2}
	cfg.setDefaults()
	return NewGenerator(cfg, NewAssembler(src, cfg.PageSize, cfg.MaxPageSize, nil), stubViews(), rec, nil)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestGeneratePostWritesPage(t *testing.T) {
	rec := &fakePageRecorder{}
	g := newTestGenerator(t, threePosts(), rec)

	res, err := g.GeneratePost(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, "Title p2", res.Post.Title)

	path := g.PostPath("p2")
	assert.Equal(t, filepath.Join(g.cfg.OutputDir, "post", "p2", "index.html"), path)
	assert.Equal(t, "post:ready:Title p2:/post/p1/:/post/p3/:preview=false", readFile(t, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")

	assert.Equal(t, []pageObservation{{"post", "ok"}}, rec.obs)
}

func TestGeneratePostNotFound(t *testing.T) {
	rec := &fakePageRecorder{}
	g := newTestGenerator(t, threePosts(), rec)

	stale := g.PostPath("gone")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	_, err := g.GeneratePost(context.Background(), "gone")
	assert.ErrorIs(t, err, content.ErrNotFound)
	assert.NoFileExists(t, stale, "page of a deleted post is removed")
	assert.NoFileExists(t, g.PostPath("missing"))
	assert.Equal(t, []pageObservation{{"post", "not_found"}}, rec.obs)
}

func TestGeneratePostRejectsUnsafeUID(t *testing.T) {
	src := threePosts()
	g := newTestGenerator(t, src, nil)

	for _, uid := range []string{"", "..", "../etc", "a/b", `a\b`, "p 1"} {
		_, err := g.GeneratePost(context.Background(), uid)
		assert.ErrorIs(t, err, content.ErrNotFound, uid)
	}
	assert.Empty(t, src.recorded())
}

func TestGeneratePostConcurrentDuplicates(t *testing.T) {
	g := newTestGenerator(t, threePosts(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.GeneratePost(context.Background(), "p3")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, "post:ready:Title p3:/post/p2/::preview=false", readFile(t, g.PostPath("p3")))
	entries, err := os.ReadDir(filepath.Dir(g.PostPath("p3")))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGenerateHome(t *testing.T) {
	g := newTestGenerator(t, threePosts(), nil)
	g.cfg.PageSize = 2
	g.assembler = NewAssembler(g.assembler.source, 2, 10, nil)

	require.NoError(t, g.GenerateHome(context.Background()))
	assert.Equal(t, "home:p3,p2:/?page=2", readFile(t, g.HomePath()))
}

func TestBuildSite(t *testing.T) {
	g := newTestGenerator(t, threePosts(), nil)

	require.NoError(t, g.BuildSite(context.Background()))

	out := g.cfg.OutputDir
	assert.Equal(t, "home:p3,p2,p1:/", readFile(t, filepath.Join(out, "index.html")))
	assert.FileExists(t, filepath.Join(out, "post", "p3", "index.html"))
	assert.FileExists(t, filepath.Join(out, "post", "p2", "index.html"))
	assert.NoFileExists(t, filepath.Join(out, "post", "p1", "index.html"), "only PrebuildCount posts are prebuilt")

	feed := readFile(t, filepath.Join(out, "feed.xml"))
	assert.Contains(t, feed, "<link>https://blog.example.com/post/p1/</link>")
	assert.Contains(t, feed, "<title>Title p3</title>")

	sitemap := readFile(t, filepath.Join(out, "sitemap.xml"))
	assert.Contains(t, sitemap, "<loc>https://blog.example.com/post/p2/</loc>")
	assert.Contains(t, sitemap, "<lastmod>2021-03-02</lastmod>")

	assert.FileExists(t, filepath.Join(out, "public", "style.css"))
	assert.FileExists(t, filepath.Join(out, "public", "logo.svg"))
}

func TestBuildSiteFailsOnTransportError(t *testing.T) {
	src := threePosts()
	src.failQuery = func(content.Query) error {
		return &content.TransportError{Op: "search", StatusCode: 500}
	}
	g := newTestGenerator(t, src, nil)

	err := g.BuildSite(context.Background())
	require.Error(t, err)
	assert.True(t, content.IsTransport(err))
}

func TestFresh(t *testing.T) {
	g := newTestGenerator(t, threePosts(), nil)
	path := g.HomePath()

	exists, fresh := g.Fresh(path)
	assert.False(t, exists)
	assert.False(t, fresh)

	require.NoError(t, g.GenerateHome(context.Background()))
	exists, fresh = g.Fresh(path)
	assert.True(t, exists)
	assert.True(t, fresh)

	g.now = func() time.Time { return time.Now().Add(g.cfg.Revalidate + time.Minute) }
	exists, fresh = g.Fresh(path)
	assert.True(t, exists)
	assert.False(t, fresh)
}

func TestRefreshRunsOncePerPath(t *testing.T) {
	g := newTestGenerator(t, threePosts(), nil)

	release := make(chan struct{})
	var runs atomic.Int32
	fn := func(context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}
	g.Refresh("a", fn)
	g.Refresh("a", fn)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(release)

	require.Eventually(t, func() bool {
		_, running := g.refreshing.Load("a")
		return !running
	}, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	g.Refresh("a", func(context.Context) error { close(done); return nil })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh after completion did not run")
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestValidUID(t *testing.T) {
	for _, uid := range []string{"como-utilizar-hooks", "post_1", "v1.2", "ABC"} {
		assert.True(t, ValidUID(uid), uid)
	}
	for _, uid := range []string{"", ".", "..", "a/b", "a?b", "ação", strings.Repeat("a", 256)} {
		assert.False(t, ValidUID(uid), uid)
	}
}
