// Package spacetraveling serves a blog whose posts live in a Prismic
// repository. Pages are generated from CMS data, kept fresh for a
// revalidation window and regenerated in the background after it; the
// listing grows with htmx by following the CMS next_page cursor.
//
// The same App also exports the whole site as static files.
package spacetraveling

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/metrics"
	"github.com/eringen/spacetraveling/prismic"
	"github.com/eringen/spacetraveling/views"
)

const (
	regenerateTimeout = 2 * time.Minute
	listingIdle       = 30 * time.Minute
)

// App is the central application. It wires together the CMS client, the
// page cache, handlers, middleware and templates.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	Client *prismic.Client
	Pages  *PageCache
	Views  ViewFuncs

	site         views.SiteConfig
	httpClient   *http.Client
	images       *ImageOptimizer
	listings     *ListingSessions
	loadLimiter  *RateLimiter
	hookLimiter  *RateLimiter
	scheduler    gocron.Scheduler
	jobs         sync.WaitGroup
	customRoutes []func(*App)
	ready        bool
	serving      bool
}

// New creates an App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:     cfg,
		Echo:       echo.New(),
		Views:      DefaultViews(),
		httpClient: &http.Client{},
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	a.site = viewConfig(a.Config)
	return a
}

// Setup validates the configuration and opens the store, CMS client and
// page cache. It is safe to call more than once.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if err := a.Config.validate(); err != nil {
		return err
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("spacetraveling: init store: %w", err)
	}
	a.Store = store

	a.Client = prismic.NewClient(a.Config.PrismicEndpoint,
		prismic.WithAccessToken(a.Config.PrismicAccessToken),
		prismic.WithHTTPClient(a.httpClient),
		prismic.WithTimeout(a.Config.FetchTimeout),
	)
	a.Pages = NewPageCache(a.Store, a.Config.Revalidate, regenerateTimeout)
	a.images = NewImageOptimizer(a.Config.ImageCacheDir, a.Config.ImageHosts, a.httpClient, a.Config.FetchTimeout)
	a.ready = true
	return nil
}

// Handler sets the app up for serving and returns the Echo instance
// without listening or starting the scheduler.
func (a *App) Handler() (http.Handler, error) {
	if err := a.Setup(); err != nil {
		return nil, err
	}
	if !a.serving {
		a.listings = NewListingSessions(listingIdle)
		a.loadLimiter = NewRateLimiter(30, time.Minute)
		a.hookLimiter = NewRateLimiter(10, time.Minute)
		a.setupMiddleware()
		a.setupRoutes()
		for _, fn := range a.customRoutes {
			fn(a)
		}
		a.serving = true
	}
	return a.Echo, nil
}

// Start sets everything up, starts the revalidation scheduler and serves
// until the server is shut down.
func (a *App) Start() error {
	if _, err := a.Handler(); err != nil {
		return err
	}
	if err := a.startScheduler(); err != nil {
		return err
	}
	slog.Info("Server starting", "addr", a.Config.Addr, "cms", a.Client.Endpoint(), "revalidate", a.Config.Revalidate)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	return errors.Join(err, a.Close())
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/public/*", echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(PublicFS())))))
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/healthz", a.handleHealth)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/_image/", a.handleImage)

	e.GET("/", a.handleHome)
	e.GET("/posts/more/", a.handleLoadMore)
	e.GET("/post/:slug/", a.handlePost)

	e.POST("/api/revalidate", a.handleRevalidate)
	e.POST("/api/revalidate/", a.handleRevalidate)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	var errs []error
	if a.scheduler != nil {
		errs = append(errs, a.scheduler.Shutdown())
	}
	if a.listings != nil {
		a.listings.Close()
	}
	if a.loadLimiter != nil {
		a.loadLimiter.Close()
	}
	if a.hookLimiter != nil {
		a.hookLimiter.Close()
	}
	a.jobs.Wait()
	if a.Pages != nil {
		a.Pages.Wait()
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

// PublicFS returns the embedded stylesheet, logo and favicon.
func PublicFS() fs.FS {
	sub, err := fs.Sub(staticAssets, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
