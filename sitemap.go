package spacetraveling

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/content"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// writeSitemap encodes the listing and every post as a sitemap.
func writeSitemap(w io.Writer, cfg SiteConfig, posts []content.Post) error {
	base := cfg.URL
	urls := []sitemapURL{
		{Loc: BuildURL(base)},
	}
	for _, p := range posts {
		u := sitemapURL{Loc: BuildURL(base, "post", p.UID)}
		if p.PublicationDate != nil {
			u.LastMod = p.PublicationDate.UTC().Format("2006-01-02")
		}
		urls = append(urls, u)
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(sitemap)
}

// writeRobots allows everything and points crawlers at the sitemap.
func writeRobots(w io.Writer, cfg SiteConfig) error {
	_, err := fmt.Fprintf(w, "User-agent: *\nAllow: /\n\nSitemap: %s\n", strings.TrimRight(cfg.URL, "/")+"/sitemap.xml")
	return err
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.postPaths(c.Request().Context())
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return writeSitemap(c.Response(), a.Config, posts)
}

func (a *App) handleRobots(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return writeRobots(c.Response(), a.Config)
}
