package spacetraveling

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/faults"
	"github.com/eringen/spacetraveling/metrics"
	"github.com/eringen/spacetraveling/pagination"
	"github.com/eringen/spacetraveling/prismic"
)

const maxSlugLength = 200

func (a *App) handleHome(c echo.Context) error {
	page, err := a.homePage(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, a.Views.Home(a.site, page.Posts, moreHref(page.Meta.NextPage)))
}

// handleLoadMore appends the next listing page. The visitor's tracker is
// looked up through the cookie session; a cursor that does not match it
// (a new tab, an expired session) starts a fresh tracker at that cursor.
func (a *App) handleLoadMore(c echo.Context) error {
	if !a.loadLimiter.Allow(c.RealIP()) {
		metrics.LoadMore.WithLabelValues("rate_limited").Inc()
		return c.String(http.StatusTooManyRequests, "Too many requests")
	}

	tracker, err := a.listingTracker(c)
	if err != nil {
		return err
	}
	if tracker == nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	retry := moreHref(tracker.NextPage())

	posts, err := tracker.LoadMore(c.Request().Context())
	switch {
	case errors.Is(err, pagination.ErrLoadInProgress):
		metrics.LoadMore.WithLabelValues("conflict").Inc()
		return c.String(http.StatusConflict, "A load is already in progress")
	case err != nil:
		metrics.LoadMore.WithLabelValues("error").Inc()
		slog.Warn("Load more failed", "cursor", prismic.StripToken(tracker.NextPage()), "error", err)
		if isHTMX(c) {
			return Render(c, a.Views.LoadMoreError(retry))
		}
		return err
	}
	metrics.LoadMore.WithLabelValues("ok").Inc()

	next := moreHref(tracker.NextPage())
	if isHTMX(c) {
		return Render(c, a.Views.MorePosts(a.site, posts, next))
	}
	return Render(c, a.Views.Home(a.site, tracker.Snapshot().Results, next))
}

// listingTracker resolves the tracker for a load-more request. It returns
// nil when there is nothing to load from.
func (a *App) listingTracker(c echo.Context) (*pagination.Tracker, error) {
	id := listingID(c)
	var current *pagination.Tracker
	if id != "" {
		current, _ = a.listings.Get(id)
	}

	cursor := c.QueryParam("cursor")
	if cursor == "" {
		return current, nil
	}
	if current != nil && prismic.StripToken(current.NextPage()) == cursor {
		return current, nil
	}
	if !a.Client.Owns(cursor) {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid cursor")
	}

	// Seed with the cached first page when the cursor follows it, so a
	// non-htmx fallback can show the whole listing.
	first := pagination.Page{Meta: pagination.Meta{NextPage: cursor}}
	if home, ok := a.Pages.lookup(homeKey); ok {
		if page, ok := home.value.(pagination.Page); ok && prismic.StripToken(page.Meta.NextPage) == cursor {
			first = page
		}
	}
	tracker := pagination.NewTracker(a.Client, first, pagination.WithTimeout(a.Config.FetchTimeout))

	if id == "" {
		id = a.listings.Put(tracker)
	} else {
		a.listings.Replace(id, tracker)
	}
	if err := setListingID(c, id); err != nil {
		slog.Warn("Failed to save listing session", "error", err)
	}
	return tracker, nil
}

func (a *App) handlePost(c echo.Context) error {
	slug := c.Param("slug")
	if slug == "" || len(slug) > maxSlugLength {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site))
	}
	post, err := a.postPage(c.Request().Context(), slug)
	if err != nil {
		if isNotFound(err) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site))
		}
		return err
	}
	return Render(c, a.Views.Post(a.site, post, a.bannerSrc(post.BannerURL)))
}

func (a *App) handleHealth(c echo.Context) error {
	if err := a.Store.Ping(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// webhookPayload is the body Prismic posts to a webhook.
type webhookPayload struct {
	Type   string `json:"type"`
	Secret string `json:"secret"`
}

func (a *App) handleRevalidate(c echo.Context) error {
	if a.Config.RevalidateSecret == "" {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	if !a.hookLimiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many requests")
	}
	var payload webhookPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if subtle.ConstantTimeCompare([]byte(payload.Secret), []byte(a.Config.RevalidateSecret)) != 1 {
		slog.Warn("Rejected revalidation webhook", "ip", c.RealIP())
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid secret")
	}
	if payload.Type == "test-trigger" {
		return c.JSON(http.StatusOK, map[string]any{"revalidated": false, "test": true})
	}

	a.Pages.Expire()
	a.triggerRevalidation()
	return c.JSON(http.StatusAccepted, map[string]any{"revalidated": true})
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound || isNotFound(err) {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site))
		return
	}

	code := http.StatusInternalServerError
	switch {
	case ok:
		code = he.Code
	case faults.KindOf(err) == faults.KindFetchFailed:
		code = http.StatusBadGateway
	}
	if code >= 500 {
		slog.Error("Server error", "method", c.Request().Method, "uri", c.Request().RequestURI, "status", code, "error", err)
		if isPageRoute(c.Request().URL.Path) {
			_ = RenderStatus(c, code, a.Views.ServerError(a.site))
			return
		}
	}
	if !ok {
		err = echo.NewHTTPError(code, http.StatusText(code)).SetInternal(err)
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

// isPageRoute reports whether path serves HTML to visitors.
func isPageRoute(path string) bool {
	return path == "/" || strings.HasPrefix(path, "/post/") || strings.HasPrefix(path, "/posts/")
}
