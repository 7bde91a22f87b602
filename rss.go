package spacetraveling

import (
	"encoding/xml"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/content"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Author      string `xml:"author,omitempty"`
	PubDate     string `xml:"pubDate,omitempty"`
	GUID        string `xml:"guid"`
}

// writeRSS encodes posts as an RSS 2.0 feed.
func writeRSS(w io.Writer, cfg SiteConfig, posts []content.Post) error {
	base := cfg.URL
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		pubDate := ""
		if p.PublicationDate != nil {
			pubDate = p.PublicationDate.UTC().Format(time.RFC1123Z)
		}
		postURL := BuildURL(base, "post", p.UID)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        postURL,
			Description: p.Subtitle,
			Author:      p.Author,
			PubDate:     pubDate,
			GUID:        postURL,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       cfg.Name,
			Link:        BuildURL(base),
			Description: cfg.Description,
			Language:    "pt-BR",
			Items:       items,
		},
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(feed)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.postPaths(c.Request().Context())
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return writeRSS(c.Response(), a.Config, posts)
}
