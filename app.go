// Package spacetravel is a statically generated blog whose posts live in a
// headless CMS. It assembles CMS documents into display-ready posts, writes
// them to disk as HTML and serves them with Echo, regenerating pages on
// demand and in the background.
//
// Templates are supplied through ViewFuncs so the rendering layer can be
// swapped without touching handler or generation logic.
package spacetravel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/eringen/spacetravel/content"
	"github.com/eringen/spacetravel/metrics"
)

// ViewFuncs holds the templ components the handlers and the generator
// render.
type ViewFuncs struct {
	Home        func(cfg SiteConfig, page ListingPage, nextHref string) templ.Component
	Post        func(cfg SiteConfig, page PostPage) templ.Component
	NotFound    func(cfg SiteConfig) templ.Component
	ServerError func(cfg SiteConfig) templ.Component
}

// App wires the content source, assembler, generator, handlers and
// middleware together.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	Source    content.Source
	Assembler *Assembler
	Generator *Generator
	Views     ViewFuncs
	Logger    *slog.Logger

	registry       *prom.Registry
	recorder       *metrics.Recorder
	previewLimiter *Limiter
	customRoutes   []func(*App)
	setupOnce      sync.Once
}

// New creates an App serving content from src.
func New(cfg SiteConfig, src content.Source, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Source: src,
		Views:  views,
		Logger: slog.Default(),
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}

	var rec PageRecorder
	if a.recorder != nil {
		rec = a.recorder
	}
	a.Assembler = NewAssembler(src, cfg.PageSize, cfg.MaxPageSize, a.Logger)
	a.Generator = NewGenerator(cfg, a.Assembler, views, rec, a.Logger)
	return a
}

// WithLogger sets the logger used by the App and everything it creates.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.Logger = l
		}
	}
}

// WithMetrics records page generation and HTTP traffic on rec and serves
// reg at /metrics.
func WithMetrics(reg *prom.Registry, rec *metrics.Recorder) Option {
	return func(a *App) {
		a.registry = reg
		a.recorder = rec
	}
}

// Setup installs middleware and routes. It is called by Start and is safe
// to call more than once.
func (a *App) Setup() {
	a.setupOnce.Do(func() {
		a.previewLimiter = NewLimiter(10, time.Minute)
		a.setupMiddleware()
		a.setupRoutes()
		for _, fn := range a.customRoutes {
			fn(a)
		}
	})
}

// Start serves HTTP on Config.Addr until ctx is cancelled, then shuts the
// server down gracefully.
func (a *App) Start(ctx context.Context) error {
	a.Setup()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("listening", "addr", a.Config.Addr, "source", a.Config.ContentSource)
		errCh <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("spacetravel: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("spacetravel: shutdown: %w", err)
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/*", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.GET("/robots.txt", a.handleRobots)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/post/:uid/", a.handlePost)

	e.GET("/api/preview", a.handlePreview)
	e.GET("/api/exit-preview", a.handleExitPreview)

	if a.registry != nil {
		e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
			Gatherer: a.registry,
		}))
	}
}

// Close releases background resources.
func (a *App) Close() error {
	if a.previewLimiter != nil {
		a.previewLimiter.Stop()
	}
	return nil
}
