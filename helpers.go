package spacetraveling

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/views"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// viewConfig is the subset of SiteConfig the templates see.
func viewConfig(cfg SiteConfig) views.SiteConfig {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return views.SiteConfig{
		Name:        cfg.Name,
		URL:         cfg.URL,
		Description: cfg.Description,
		Author:      cfg.Author,
		Dates:       content.Formatter{Location: loc},
	}
}
