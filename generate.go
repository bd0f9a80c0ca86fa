package spacetravel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/spacetravel/content"
)

// buildConcurrency bounds the post pages BuildSite renders at once.
const buildConcurrency = 4

// PageRecorder observes page generations.
type PageRecorder interface {
	ObservePage(kind, outcome string, d time.Duration)
}

type noopPageRecorder struct{}

func (noopPageRecorder) ObservePage(string, string, time.Duration) {}

// Generator renders pages to OutputDir. Files are replaced atomically, so
// concurrent generations of the same page are safe and readers never see a
// partial file.
type Generator struct {
	cfg       SiteConfig
	assembler *Assembler
	views     ViewFuncs
	recorder  PageRecorder
	logger    *slog.Logger
	now       func() time.Time

	refreshing sync.Map // page path -> struct{}
}

// NewGenerator returns a Generator writing below cfg.OutputDir.
func NewGenerator(cfg SiteConfig, asm *Assembler, views ViewFuncs, rec PageRecorder, logger *slog.Logger) *Generator {
	if rec == nil {
		rec = noopPageRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		cfg:       cfg,
		assembler: asm,
		views:     views,
		recorder:  rec,
		logger:    logger,
		now:       time.Now,
	}
}

// HomePath is the file the home page is written to.
func (g *Generator) HomePath() string {
	return filepath.Join(g.cfg.OutputDir, "index.html")
}

// PostPath is the file the post page of uid is written to.
func (g *Generator) PostPath(uid string) string {
	return filepath.Join(g.cfg.OutputDir, "post", uid, "index.html")
}

// BuildSite renders the home page, the first PrebuildCount posts, the feed,
// the sitemap and the embedded assets.
func (g *Generator) BuildSite(ctx context.Context) error {
	start := g.now()
	if err := g.GenerateHome(ctx); err != nil {
		return err
	}
	posts, err := g.assembler.FetchAll(ctx, 0)
	if err != nil {
		return fmt.Errorf("spacetravel: build: %w", err)
	}

	prebuild := posts
	if len(prebuild) > g.cfg.PrebuildCount {
		prebuild = prebuild[:g.cfg.PrebuildCount]
	}
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(buildConcurrency)
	for _, p := range prebuild {
		p := p
		eg.Go(func() error {
			_, err := g.GeneratePost(ectx, p.ID)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	if err := g.writeFile(filepath.Join(g.cfg.OutputDir, "feed.xml"), func(w io.Writer) error {
		return writeRSS(w, g.cfg, posts)
	}); err != nil {
		return err
	}
	if err := g.writeFile(filepath.Join(g.cfg.OutputDir, "sitemap.xml"), func(w io.Writer) error {
		return writeSitemap(w, g.cfg, posts)
	}); err != nil {
		return err
	}
	if err := g.copyAssets(); err != nil {
		return err
	}
	g.logger.Info("site built",
		"dir", g.cfg.OutputDir,
		"posts", len(posts),
		"prebuilt", len(prebuild),
		"duration", g.now().Sub(start))
	return nil
}

// GenerateHome renders the first listing page to HomePath.
func (g *Generator) GenerateHome(ctx context.Context) (err error) {
	start := g.now()
	defer func() { g.observe("home", err, start) }()

	page, err := g.assembler.FetchListing(ctx, "", 0)
	if err != nil {
		return err
	}
	return g.writeFile(g.HomePath(), func(w io.Writer) error {
		return g.views.Home(g.cfg, page, ListingHref(page.NextCursor)).Render(ctx, w)
	})
}

// GeneratePost assembles the post with pagination and writes it to
// PostPath. When the post does not exist nothing is written and any
// previously generated page is removed.
func (g *Generator) GeneratePost(ctx context.Context, uid string) (res DetailResult, err error) {
	start := g.now()
	defer func() { g.observe("post", err, start) }()

	if !ValidUID(uid) {
		return DetailResult{}, fmt.Errorf("spacetravel: post %q: %w", uid, content.ErrNotFound)
	}
	res, err = g.assembler.FetchDetail(ctx, uid, DetailOptions{IncludePagination: true})
	if errors.Is(err, content.ErrNotFound) {
		if rmErr := os.Remove(g.PostPath(uid)); rmErr == nil {
			g.logger.Info("removed page of deleted post", "uid", uid)
		}
		return DetailResult{}, err
	}
	if err != nil {
		return DetailResult{}, err
	}
	page := PostPage{State: StateReady, Result: res}
	if err := g.writeFile(g.PostPath(uid), func(w io.Writer) error {
		return g.views.Post(g.cfg, page).Render(ctx, w)
	}); err != nil {
		return DetailResult{}, err
	}
	return res, nil
}

// Fresh reports whether the file at path exists and whether it is younger
// than the revalidation window.
func (g *Generator) Fresh(path string) (exists, fresh bool) {
	info, err := os.Stat(path)
	if err != nil {
		return false, false
	}
	return true, g.now().Sub(info.ModTime()) < g.cfg.Revalidate
}

// Refresh regenerates a page in the background with fn unless a refresh
// of the same path is already running.
func (g *Generator) Refresh(path string, fn func(ctx context.Context) error) {
	if _, running := g.refreshing.LoadOrStore(path, struct{}{}); running {
		return
	}
	go func() {
		defer g.refreshing.Delete(path)
		ctx, cancel := context.WithTimeout(context.Background(), 2*g.cfg.CMSTimeout)
		defer cancel()
		if err := fn(ctx); err != nil && !errors.Is(err, content.ErrNotFound) {
			g.logger.Error("background regeneration failed", "path", path, "err", err)
		}
	}()
}

func (g *Generator) observe(kind string, err error, start time.Time) {
	outcome := "ok"
	switch {
	case errors.Is(err, content.ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	g.recorder.ObservePage(kind, outcome, g.now().Sub(start))
}

// writeFile renders into a temporary file next to path and renames it into
// place.
func (g *Generator) writeFile(path string, render func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("spacetravel: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("spacetravel: write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := render(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("spacetravel: render %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("spacetravel: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("spacetravel: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("spacetravel: write %s: %w", path, err)
	}
	return nil
}

func (g *Generator) copyAssets() error {
	assets, err := fs.Sub(EmbeddedAssets, "embedded")
	if err != nil {
		return err
	}
	return fs.WalkDir(assets, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		return g.writeFile(filepath.Join(g.cfg.OutputDir, "public", filepath.FromSlash(name)), func(w io.Writer) error {
			f, err := assets.Open(name)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(w, f)
			return err
		})
	})
}

// ValidUID reports whether uid can name a post page. CMS UIDs are slugs;
// anything else could escape OutputDir.
func ValidUID(uid string) bool {
	if uid == "" || len(uid) > 255 {
		return false
	}
	for _, r := range uid {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return uid != "." && uid != ".."
}
