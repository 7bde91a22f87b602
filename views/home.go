package views

import (
	"bytes"
	"context"

	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling/content"
)

// LoadMoreID is the element the load-more button swaps out.
const LoadMoreID = "load-more"

// Home is the listing page: every post loaded so far and, when more pages
// exist, the button that fetches nextHref.
func Home(cfg SiteConfig, posts []content.Post, nextHref string) templ.Component {
	body := component(func(ctx context.Context, buf *bytes.Buffer) error {
		buf.WriteString(`<section class="posts" id="posts">`)
		writePostItems(buf, cfg.Dates, posts)
		if nextHref != "" {
			writeLoadMore(buf, nextHref)
		}
		buf.WriteString(`</section>`)
		return nil
	})
	meta := PageMeta{
		URL:    buildURL(cfg.URL),
		JSONLD: WebsiteJsonLD(cfg),
	}
	return Layout(cfg, meta, body)
}

// MorePosts is the htmx fragment for one load-more step. It replaces the
// button it was requested from, so the items land after the current list.
func MorePosts(cfg SiteConfig, posts []content.Post, nextHref string) templ.Component {
	return component(func(_ context.Context, buf *bytes.Buffer) error {
		writePostItems(buf, cfg.Dates, posts)
		if nextHref != "" {
			writeLoadMore(buf, nextHref)
		}
		return nil
	})
}

// LoadMoreError replaces the button after a failed load. Posts already on
// the page stay; the retry link asks for the same page again.
func LoadMoreError(retryHref string) templ.Component {
	return component(func(_ context.Context, buf *bytes.Buffer) error {
		buf.WriteString(`<div id="` + LoadMoreID + `" class="load-more load-more-error" role="alert">`)
		buf.WriteString(`<p>Não foi possível carregar mais posts.</p>`)
		buf.WriteString(`<button type="button" hx-get="` + esc(retryHref) + `" hx-target="#` + LoadMoreID + `" hx-swap="outerHTML">Tentar novamente</button>`)
		buf.WriteString(`</div>`)
		return nil
	})
}

func writeLoadMore(buf *bytes.Buffer, href string) {
	buf.WriteString(`<div id="` + LoadMoreID + `" class="load-more">`)
	buf.WriteString(`<a href="` + esc(href) + `" hx-get="` + esc(href) + `" hx-target="#` + LoadMoreID + `" hx-swap="outerHTML">Carregar mais posts</a>`)
	buf.WriteString(`</div>`)
}

func writePostItems(buf *bytes.Buffer, dates content.Formatter, posts []content.Post) {
	for _, p := range posts {
		buf.WriteString(`<article class="post">`)
		link := p.Link()
		if link != "" {
			buf.WriteString(`<a href="` + esc(link) + `">`)
		}
		buf.WriteString(`<h2>` + esc(p.Title) + `</h2>`)
		buf.WriteString(`<p>` + esc(p.Subtitle) + `</p>`)
		if link != "" {
			buf.WriteString(`</a>`)
		}
		writePostInfo(buf, dates, p, "")
		buf.WriteString(`</article>`)
	}
}

// writePostInfo writes the date and author line, plus the reading time
// when one is given.
func writePostInfo(buf *bytes.Buffer, dates content.Formatter, p content.Post, readingTime string) {
	buf.WriteString(`<ul class="info">`)
	buf.WriteString(`<li>` + iconCalendar)
	if p.PublicationDate != nil {
		buf.WriteString(`<time datetime="` + p.PublicationDate.UTC().Format("2006-01-02") + `">` + esc(dates.DisplayDate(p.PublicationDate)) + `</time>`)
	} else {
		buf.WriteString(esc(content.DatePlaceholder))
	}
	buf.WriteString(`</li>`)
	buf.WriteString(`<li>` + iconUser + esc(p.Author) + `</li>`)
	if readingTime != "" {
		buf.WriteString(`<li>` + iconClock + esc(readingTime) + `</li>`)
	}
	buf.WriteString(`</ul>`)
}
