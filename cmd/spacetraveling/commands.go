package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/eringen/spacetraveling"
)

// CLI is the command tree.
type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" default:"1" help:"Serve the blog (default)"`
	Build   BuildCmd   `cmd:"" help:"Export the whole site as static files"`
	Paths   PathsCmd   `cmd:"" help:"List the post paths the CMS currently has"`
	Version VersionCmd `cmd:"" help:"Print the version"`
}

// Globals are the flags every command shares.
type Globals struct {
	Config    string           `short:"c" help:"YAML configuration file" type:"path" env:"SPACETRAVELING_CONFIG"`
	Verbose   bool             `short:"v" help:"Enable debug logging"`
	LogFormat string           `name:"log-format" help:"Log format" enum:"text,json" default:"text"`
	ShowVer   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Site SiteFlags `embed:""`
}

// SiteFlags override the configuration file. Zero values leave it alone.
type SiteFlags struct {
	Name               string        `name:"site-name" env:"SITE_NAME" help:"Site name"`
	URL                string        `name:"site-url" env:"SITE_URL" help:"Canonical site URL"`
	Description        string        `name:"site-description" env:"SITE_DESCRIPTION" help:"Site description"`
	Author             string        `name:"site-author" env:"SITE_AUTHOR" help:"Author shown in the feed"`
	Addr               string        `name:"addr" env:"ADDR" help:"Listen address"`
	PrismicEndpoint    string        `name:"prismic-endpoint" env:"PRISMIC_API_ENDPOINT" help:"Prismic API endpoint"`
	PrismicAccessToken string        `name:"prismic-access-token" env:"PRISMIC_ACCESS_TOKEN" help:"Prismic access token"`
	PageSize           int           `name:"page-size" env:"PAGE_SIZE" help:"Posts per listing page"`
	Revalidate         time.Duration `name:"revalidate" env:"REVALIDATE" help:"How long generated pages stay fresh"`
	FetchTimeout       time.Duration `name:"fetch-timeout" env:"FETCH_TIMEOUT" help:"Deadline for each CMS call"`
	Timezone           string        `name:"timezone" env:"SITE_TIMEZONE" help:"Zone publication dates are shown in"`
	DatabasePath       string        `name:"database" env:"DATABASE_PATH" help:"SQLite snapshot store"`
	ImageCacheDir      string        `name:"image-cache" env:"IMAGE_CACHE_DIR" help:"Directory for resized banners"`
	SessionSecret      string        `name:"session-secret" env:"SESSION_SECRET" help:"Cookie signing key"`
	RevalidateSecret   string        `name:"revalidate-secret" env:"REVALIDATE_SECRET" help:"Secret the CMS webhook must send"`
	CookieSecure       bool          `name:"cookie-secure" env:"COOKIE_SECURE" help:"Mark cookies Secure (HTTPS)"`
}

// AfterApply runs after flag parsing; setup logging once.
func (g *Globals) AfterApply() error {
	level := slog.LevelInfo
	if g.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if g.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// siteConfig merges the config file with the flags and environment.
func (g *Globals) siteConfig() (spacetraveling.SiteConfig, error) {
	cfg, err := spacetraveling.LoadConfigFile(g.Config)
	if err != nil {
		return cfg, err
	}
	f := g.Site
	return cfg.Overlay(spacetraveling.SiteConfig{
		Name:               f.Name,
		URL:                f.URL,
		Description:        f.Description,
		Author:             f.Author,
		Addr:               f.Addr,
		PrismicEndpoint:    f.PrismicEndpoint,
		PrismicAccessToken: f.PrismicAccessToken,
		PageSize:           f.PageSize,
		Revalidate:         f.Revalidate,
		FetchTimeout:       f.FetchTimeout,
		Timezone:           f.Timezone,
		DatabasePath:       f.DatabasePath,
		ImageCacheDir:      f.ImageCacheDir,
		SessionSecret:      f.SessionSecret,
		RevalidateSecret:   f.RevalidateSecret,
		CookieSecure:       f.CookieSecure,
	}), nil
}

func (g *Globals) newApp() (*spacetraveling.App, error) {
	cfg, err := g.siteConfig()
	if err != nil {
		return nil, err
	}
	app := spacetraveling.New(cfg)
	if err := app.Setup(); err != nil {
		return nil, err
	}
	return app, nil
}

// ServeCmd runs the HTTP server until SIGINT or SIGTERM.
type ServeCmd struct {
	ShutdownTimeout time.Duration `name:"shutdown-timeout" default:"15s" help:"Grace period for in-flight requests"`
}

func (c *ServeCmd) Run(g *Globals) error {
	app, err := g.newApp()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	select {
	case err := <-errChan:
		return errors.Join(err, app.Close())
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping server")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer stopCancel()
	if err := app.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}

// BuildCmd exports the site.
type BuildCmd struct {
	Output string `short:"o" help:"Output directory" default:"./out" type:"path"`
}

func (c *BuildCmd) Run(g *Globals) error {
	app, err := g.newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	slog.Info("Starting export", "output", c.Output)
	stats, err := app.Export(ctx, c.Output)
	if err != nil {
		return err
	}
	slog.Info("Export finished",
		"output", c.Output,
		"listing_pages", stats.ListingPages,
		"posts", stats.Posts,
		"skipped", stats.Skipped,
		"duration", time.Since(start))
	return nil
}

// PathsCmd prints one post path per line.
type PathsCmd struct{}

func (c *PathsCmd) Run(g *Globals) error {
	app, err := g.newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	posts, err := app.Paths(context.Background())
	if err != nil {
		return err
	}
	for _, p := range posts {
		fmt.Println(p.Link())
	}
	return nil
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("spacetraveling %s\n", version)
	return nil
}
