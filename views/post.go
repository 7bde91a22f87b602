package views

import (
	"bytes"
	"context"

	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/richtext"
)

// Post renders a full post page. bannerSrc is the already rewritten image
// URL; an empty value drops the banner.
func Post(cfg SiteConfig, post content.PostDetail, bannerSrc string) templ.Component {
	body := component(func(ctx context.Context, buf *bytes.Buffer) error {
		if bannerSrc != "" {
			buf.WriteString(`<img class="banner" src="` + esc(bannerSrc) + `" alt="banner">`)
		}
		buf.WriteString(`<article class="post-detail">`)
		buf.WriteString(`<h1>` + esc(post.Title) + `</h1>`)
		writePostInfo(buf, cfg.Dates, post.Post, post.ReadingTime().String())
		for _, section := range post.Content {
			buf.WriteString(`<section class="post-section">`)
			buf.WriteString(`<h2>` + esc(section.Heading) + `</h2>`)
			buf.WriteString(`<div class="post-body">`)
			if err := richtext.HTML(section.Body).Render(ctx, buf); err != nil {
				return err
			}
			buf.WriteString(`</div></section>`)
		}
		buf.WriteString(`</article>`)
		return nil
	})
	meta := PageMeta{
		Title:       post.Title,
		Description: post.Subtitle,
		URL:         buildURL(cfg.URL, "post", post.UID),
		OGType:      "article",
		Image:       post.BannerURL,
		JSONLD:      BlogPostingJsonLD(cfg, post),
	}
	return Layout(cfg, meta, body)
}

// NotFound is the 404 page.
func NotFound(cfg SiteConfig) templ.Component {
	return Layout(cfg, PageMeta{Title: "Página não encontrada"}, component(func(_ context.Context, buf *bytes.Buffer) error {
		buf.WriteString(`<section class="error-page"><h1>404</h1><p>Página não encontrada.</p><a href="/">Voltar para o início</a></section>`)
		return nil
	}))
}

// ServerError is shown when a page could not be generated, usually because
// the CMS is unreachable.
func ServerError(cfg SiteConfig) templ.Component {
	return Layout(cfg, PageMeta{Title: "Erro"}, component(func(_ context.Context, buf *bytes.Buffer) error {
		buf.WriteString(`<section class="error-page"><h1>Algo deu errado</h1><p>Não foi possível carregar esta página. Tente novamente em instantes.</p><a href="/">Voltar para o início</a></section>`)
		return nil
	}))
}
