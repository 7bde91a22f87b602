package spacetraveling

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/faults"
	"github.com/eringen/spacetraveling/pagination"
	"github.com/eringen/spacetraveling/prismic"
)

var postQuery = []prismic.Predicate{prismic.DocumentType(content.PostType)}

// loadHome fetches the first listing page.
func (a *App) loadHome(ctx context.Context) (pagination.Page, error) {
	resp, err := a.Client.Query(ctx, postQuery, prismic.QueryOptions{
		PageSize: a.Config.PageSize,
		Fetch:    content.PostFields,
	})
	if err != nil {
		return pagination.Page{}, err
	}
	return pagination.PageFromResponse(resp), nil
}

// loadPost fetches and normalizes one post by UID.
func (a *App) loadPost(ctx context.Context, uid string) (content.PostDetail, error) {
	doc, err := a.Client.GetByUID(ctx, content.PostType, uid)
	if err != nil {
		return content.PostDetail{}, err
	}
	return content.NormalizePostDetail(*doc)
}

// loadPaths enumerates every post, following next_page until the last page
// or MaxPathPages. Posts that do not normalize or have no UID are skipped.
func (a *App) loadPaths(ctx context.Context) ([]content.Post, error) {
	var posts []content.Post
	opts := prismic.QueryOptions{PageSize: a.Config.PathsPageSize, Fetch: content.PostFields}
	err := a.Client.Each(ctx, postQuery, opts, a.Config.MaxPathPages, func(resp *prismic.Response) error {
		for _, p := range pagination.PageFromResponse(resp).Posts {
			if p.UID == "" {
				slog.Warn("Skipping post without uid")
				continue
			}
			posts = append(posts, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate posts: %w", err)
	}
	return posts, nil
}

func (a *App) homePage(ctx context.Context) (pagination.Page, error) {
	return cachedPage(ctx, a.Pages, homeKey, a.loadHome)
}

func (a *App) postPage(ctx context.Context, uid string) (content.PostDetail, error) {
	return cachedPage(ctx, a.Pages, postKey(uid), func(ctx context.Context) (content.PostDetail, error) {
		return a.loadPost(ctx, uid)
	})
}

func (a *App) postPaths(ctx context.Context) ([]content.Post, error) {
	return cachedPage(ctx, a.Pages, pathsKey, a.loadPaths)
}

// moreHref is the load-more URL for a cursor, or "" when there is none.
// The access token never leaves the server.
func moreHref(cursor string) string {
	if cursor == "" {
		return ""
	}
	return "/posts/more/?cursor=" + url.QueryEscape(prismic.StripToken(cursor))
}

// bannerSrc routes banners from allowed hosts through the image optimiser.
func (a *App) bannerSrc(raw string) string {
	if raw == "" || !a.images.allowed(raw) {
		return raw
	}
	return "/_image/?url=" + url.QueryEscape(raw) + "&w=" + fmt.Sprint(maxImageWidth)
}

// isNotFound reports whether err means the CMS has no such document.
func isNotFound(err error) bool {
	return faults.KindOf(err) == faults.KindNotFound
}

// Paths enumerates every post with a UID, straight from the CMS.
func (a *App) Paths(ctx context.Context) ([]content.Post, error) {
	if err := a.Setup(); err != nil {
		return nil, err
	}
	return a.loadPaths(ctx)
}
