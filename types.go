package spacetraveling

import (
	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/views"
)

// ViewFuncs holds the templ components the handlers and the exporter call
// when rendering pages. DefaultViews wires the views package; a site can
// swap any of them through WithViews.
type ViewFuncs struct {
	Home          func(cfg views.SiteConfig, posts []content.Post, nextHref string) templ.Component
	MorePosts     func(cfg views.SiteConfig, posts []content.Post, nextHref string) templ.Component
	LoadMoreError func(retryHref string) templ.Component
	Post          func(cfg views.SiteConfig, post content.PostDetail, bannerSrc string) templ.Component
	NotFound      func(cfg views.SiteConfig) templ.Component
	ServerError   func(cfg views.SiteConfig) templ.Component
}

// DefaultViews returns the built-in components.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:          views.Home,
		MorePosts:     views.MorePosts,
		LoadMoreError: views.LoadMoreError,
		Post:          views.Post,
		NotFound:      views.NotFound,
		ServerError:   views.ServerError,
	}
}
