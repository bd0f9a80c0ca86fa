package spacetravel

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetravel/content"
)

// handlePreview enters preview mode. The CMS redirects editors here with the
// preview ref in token and the document being edited in documentId.
func (a *App) handlePreview(c echo.Context) error {
	if !a.Config.PreviewEnabled() {
		return echo.ErrNotFound
	}
	if !a.previewLimiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many preview requests")
	}
	ref := c.QueryParam("token")
	if ref == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing preview token")
	}

	target := "/"
	if id := c.QueryParam("documentId"); id != "" {
		doc, err := a.Source.GetByID(c.Request().Context(), id, ref)
		switch {
		case errors.Is(err, content.ErrNotFound):
		case err != nil:
			return err
		case doc.Type == content.PostType && ValidUID(doc.UID):
			target = PostHref(doc.UID)
		}
	}

	if err := setPreviewSession(c, ref); err != nil {
		return err
	}
	a.Logger.Info("preview started", "ip", c.RealIP(), "target", target)
	return c.Redirect(http.StatusTemporaryRedirect, target)
}

func (a *App) handleExitPreview(c echo.Context) error {
	if a.Config.PreviewEnabled() {
		if err := clearPreviewSession(c); err != nil {
			return err
		}
	}
	return c.Redirect(http.StatusTemporaryRedirect, "/")
}
