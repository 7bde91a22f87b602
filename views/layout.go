// Package views holds the HTML components of the blog. Every component is a
// templ.Component so the server and the static exporter render the same way.
package views

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
)

const htmxSrc = "https://unpkg.com/htmx.org@2.0.4/dist/htmx.min.js"

// esc is shorthand for templ's HTML escaper.
var esc = templ.EscapeString[string]

// component adapts a buffer-writing function into a templ.Component.
func component(fn func(ctx context.Context, buf *bytes.Buffer) error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := fn(ctx, &buf); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// Layout wraps body in the document shell: <head> metadata, the header
// with the logo, and the htmx script.
func Layout(cfg SiteConfig, meta PageMeta, body templ.Component) templ.Component {
	return component(func(ctx context.Context, buf *bytes.Buffer) error {
		title := cfg.Name
		if meta.Title != "" {
			title = meta.Title + " | " + cfg.Name
		}
		description := meta.Description
		if description == "" {
			description = cfg.Description
		}
		ogType := meta.OGType
		if ogType == "" {
			ogType = "website"
		}
		canonical := meta.URL
		if canonical == "" {
			canonical = buildURL(cfg.URL)
		}

		buf.WriteString(`<!DOCTYPE html><html lang="pt-BR"><head><meta charset="utf-8">`)
		buf.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		buf.WriteString(`<title>` + esc(title) + `</title>`)
		if description != "" {
			buf.WriteString(`<meta name="description" content="` + esc(description) + `">`)
			buf.WriteString(`<meta property="og:description" content="` + esc(description) + `">`)
		}
		buf.WriteString(`<link rel="canonical" href="` + esc(canonical) + `">`)
		buf.WriteString(`<meta property="og:title" content="` + esc(title) + `">`)
		buf.WriteString(`<meta property="og:type" content="` + esc(ogType) + `">`)
		buf.WriteString(`<meta property="og:url" content="` + esc(canonical) + `">`)
		buf.WriteString(`<meta property="og:site_name" content="` + esc(cfg.Name) + `">`)
		if meta.Image != "" {
			buf.WriteString(`<meta property="og:image" content="` + esc(meta.Image) + `">`)
		}
		buf.WriteString(`<link rel="alternate" type="application/rss+xml" title="` + esc(cfg.Name) + `" href="/feed.xml">`)
		buf.WriteString(`<link rel="icon" type="image/svg+xml" href="/public/favicon.svg">`)
		buf.WriteString(`<link rel="stylesheet" href="/public/styles.css">`)
		buf.WriteString(`<script src="` + htmxSrc + `" defer></script>`)
		if meta.JSONLD != "" {
			// JSON from json.Marshal escapes <, > and & so it cannot close the tag.
			buf.WriteString(`<script type="application/ld+json">` + meta.JSONLD + `</script>`)
		}
		buf.WriteString(`</head><body>`)
		if err := Header().Render(ctx, buf); err != nil {
			return err
		}
		buf.WriteString(`<main class="container">`)
		if err := body.Render(ctx, buf); err != nil {
			return err
		}
		buf.WriteString(`</main></body></html>`)
		return nil
	})
}

// Header is the top bar with the logo linking home.
func Header() templ.Component {
	return component(func(_ context.Context, buf *bytes.Buffer) error {
		buf.WriteString(`<header class="header"><div class="container header-content">`)
		buf.WriteString(`<a href="/"><img src="/public/logo.svg" alt="logo" width="239" height="26"></a>`)
		buf.WriteString(`</div></header>`)
		return nil
	})
}
