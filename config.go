package spacetraveling

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SiteConfig holds all configuration for a spacetraveling site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "spacetraveling")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags
	Author      string `yaml:"author"`      // Author name for the feed

	Addr         string `yaml:"addr"`          // Listen address (default ":3000")
	DatabasePath string `yaml:"database_path"` // SQLite snapshot store (default "data/pages.db")

	PrismicEndpoint    string   `yaml:"prismic_endpoint"` // Required, e.g. https://repo.cdn.prismic.io/api/v2
	PrismicAccessToken string   `yaml:"prismic_access_token"`
	PageSize           int      `yaml:"page_size"`       // Listing page size (default 5)
	PathsPageSize      int      `yaml:"paths_page_size"` // Page size when enumerating every post (default 100)
	MaxPathPages       int      `yaml:"max_path_pages"`  // Cap on enumerated pages (default 50)
	ImageHosts         []string `yaml:"image_hosts"`     // Hosts the banner optimiser fetches from

	Revalidate   time.Duration `yaml:"revalidate"`    // Page freshness window (default 30m)
	FetchTimeout time.Duration `yaml:"fetch_timeout"` // Per CMS call deadline (default 10s)
	Timezone     string        `yaml:"timezone"`      // Zone dates are shown in (default UTC)

	ImageCacheDir    string `yaml:"image_cache_dir"` // Resized banners (default "data/images")
	SessionSecret    string `yaml:"session_secret"`  // Cookie signing key; random per process when empty
	RevalidateSecret string `yaml:"revalidate_secret"`
	CookieSecure     bool   `yaml:"cookie_secure"` // Set true for HTTPS
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "spacetraveling"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/pages.db"
	}
	if c.PageSize <= 0 {
		c.PageSize = 5
	}
	if c.PathsPageSize <= 0 {
		c.PathsPageSize = 100
	}
	if c.MaxPathPages <= 0 {
		c.MaxPathPages = 50
	}
	if len(c.ImageHosts) == 0 {
		c.ImageHosts = []string{"images.prismic.io"}
	}
	if c.Revalidate <= 0 {
		c.Revalidate = 30 * time.Minute
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.ImageCacheDir == "" {
		c.ImageCacheDir = "data/images"
	}
	if c.SessionSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err == nil {
			c.SessionSecret = hex.EncodeToString(b)
		}
		slog.Warn("No session secret configured, listing sessions will not survive a restart")
	}
}

func (c SiteConfig) validate() error {
	if c.PrismicEndpoint == "" {
		return fmt.Errorf("spacetraveling: PrismicEndpoint is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("spacetraveling: timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// LoadConfigFile reads a YAML config file. A missing file is an error; an
// empty path returns the zero config.
func LoadConfigFile(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Overlay returns c with every non-zero field of o applied on top.
func (c SiteConfig) Overlay(o SiteConfig) SiteConfig {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	num := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	dur := func(dst *time.Duration, v time.Duration) {
		if v != 0 {
			*dst = v
		}
	}
	str(&c.Name, o.Name)
	str(&c.URL, o.URL)
	str(&c.Description, o.Description)
	str(&c.Author, o.Author)
	str(&c.Addr, o.Addr)
	str(&c.DatabasePath, o.DatabasePath)
	str(&c.PrismicEndpoint, o.PrismicEndpoint)
	str(&c.PrismicAccessToken, o.PrismicAccessToken)
	num(&c.PageSize, o.PageSize)
	num(&c.PathsPageSize, o.PathsPageSize)
	num(&c.MaxPathPages, o.MaxPathPages)
	if len(o.ImageHosts) > 0 {
		c.ImageHosts = o.ImageHosts
	}
	dur(&c.Revalidate, o.Revalidate)
	dur(&c.FetchTimeout, o.FetchTimeout)
	str(&c.Timezone, o.Timezone)
	str(&c.ImageCacheDir, o.ImageCacheDir)
	str(&c.SessionSecret, o.SessionSecret)
	str(&c.RevalidateSecret, o.RevalidateSecret)
	c.CookieSecure = c.CookieSecure || o.CookieSecure
	return c
}

// Option configures additional App behavior.
type Option func(*App)

// WithViews replaces the default page components.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}

// WithHTTPClient sets the client used for CMS and image requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *App) {
		a.httpClient = hc
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
