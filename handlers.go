package spacetravel

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetravel/content"
)

func (a *App) handleHome(c echo.Context) error {
	cursor := c.QueryParam("page")
	if cursor != "" || PreviewRef(c) != "" {
		page, err := a.Assembler.FetchListing(c.Request().Context(), cursor, 0)
		if err != nil {
			return err
		}
		c.Response().Header().Set("Cache-Control", "no-store")
		return Render(c, a.Views.Home(a.Config, page, ListingHref(page.NextCursor)))
	}

	path := a.Generator.HomePath()
	exists, fresh := a.Generator.Fresh(path)
	if !exists {
		if err := a.Generator.GenerateHome(c.Request().Context()); err != nil {
			return err
		}
	} else if !fresh {
		a.Generator.Refresh(path, a.Generator.GenerateHome)
	}
	return c.File(path)
}

func (a *App) handlePost(c echo.Context) error {
	uid := c.Param("uid")
	if !ValidUID(uid) {
		return a.renderPostState(c, http.StatusNotFound, PostPage{State: StateNotFound})
	}

	if ref := PreviewRef(c); ref != "" {
		res, err := a.Assembler.FetchDetail(c.Request().Context(), uid, DetailOptions{
			IncludePagination: true,
			PreviewRef:        ref,
		})
		if errors.Is(err, content.ErrNotFound) {
			return a.renderPostState(c, http.StatusNotFound, PostPage{State: StateNotFound})
		}
		if err != nil {
			return err
		}
		c.Response().Header().Set("Cache-Control", "no-store")
		return Render(c, a.Views.Post(a.Config, PostPage{State: StateReady, Result: res}))
	}

	path := a.Generator.PostPath(uid)
	regenerate := func(ctx context.Context) error {
		_, err := a.Generator.GeneratePost(ctx, uid)
		return err
	}
	if exists, fresh := a.Generator.Fresh(path); exists {
		if !fresh {
			a.Generator.Refresh(path, regenerate)
		}
		return c.File(path)
	}

	// Not generated yet: build it now, but only make the visitor wait
	// FallbackWait before showing the loading page.
	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 2*a.Config.CMSTimeout)
		defer cancel()
		done <- regenerate(ctx)
	}()

	timer := time.NewTimer(a.Config.FallbackWait)
	defer timer.Stop()
	select {
	case err := <-done:
		if errors.Is(err, content.ErrNotFound) {
			return a.renderPostState(c, http.StatusNotFound, PostPage{State: StateNotFound})
		}
		if err != nil {
			return err
		}
		return c.File(path)
	case <-timer.C:
		return a.renderPostState(c, http.StatusOK, PostPage{State: StateLoading})
	}
}

func (a *App) renderPostState(c echo.Context, code int, page PostPage) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	return RenderStatus(c, code, a.Views.Post(a.Config, page))
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Assembler.FetchAll(c.Request().Context(), 0)
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Assembler.FetchAll(c.Request().Context(), 0)
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) handleRobots(c echo.Context) error {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	b.WriteString("Disallow: /api/\n")
	b.WriteString("Sitemap: " + strings.TrimSuffix(BuildURL(a.Config.URL), "/") + "/sitemap.xml\n")
	return c.String(http.StatusOK, b.String())
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if errors.Is(err, content.ErrNotFound) || errors.Is(err, content.ErrInvalidCursor) {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.Config))
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.Config))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error("server error",
			"method", c.Request().Method,
			"uri", c.Request().RequestURI,
			"transport", content.IsTransport(err),
			"err", err)
		_ = RenderStatus(c, code, a.Views.ServerError(a.Config))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
