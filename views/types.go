package views

import "github.com/eringen/spacetraveling/content"

// SiteConfig holds the site-wide values every page needs.
type SiteConfig struct {
	Name        string
	URL         string
	Description string
	Author      string
	Dates       content.Formatter // zone used to display publication dates
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
	JSONLD      string
}
