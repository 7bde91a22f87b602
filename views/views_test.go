package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/richtext"
)

var testCfg = SiteConfig{
	Name:  "spacetraveling",
	URL:   "https://blog.example.com",
	Dates: content.DefaultFormatter,
}

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestHomeListsPostsAndButton(t *testing.T) {
	published := time.Date(2021, time.March, 15, 19, 25, 28, 0, time.UTC)
	posts := []content.Post{
		{UID: "como-utilizar-hooks", PublicationDate: &published, Title: "Como utilizar Hooks", Subtitle: "Pensando em sincronização", Author: "Joseph Oliveira"},
		{Title: "Sem <uid>", Subtitle: "s", Author: "Ana"},
	}

	html := render(t, Home(testCfg, posts, "/posts/more/"))

	for _, want := range []string{
		`<a href="/post/como-utilizar-hooks/">`,
		"15 Mar 2021",
		"Joseph Oliveira",
		"Sem &lt;uid&gt;",
		content.DatePlaceholder,
		`hx-get="/posts/more/"`,
		"Carregar mais posts",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("home page missing %q", want)
		}
	}
}

func TestHomeWithoutNextPageHasNoButton(t *testing.T) {
	html := render(t, Home(testCfg, nil, ""))
	if strings.Contains(html, "Carregar mais posts") {
		t.Error("button rendered without a next page")
	}
}

func TestMorePostsIsAFragment(t *testing.T) {
	html := render(t, MorePosts(testCfg, []content.Post{{UID: "a", Title: "A", Author: "x"}}, ""))
	if strings.Contains(html, "<html") {
		t.Error("fragment should not include the document shell")
	}
	if !strings.Contains(html, `href="/post/a/"`) {
		t.Errorf("fragment missing post link: %s", html)
	}
}

func TestLoadMoreErrorKeepsRetry(t *testing.T) {
	html := render(t, LoadMoreError("/posts/more/?cursor=x"))
	if !strings.Contains(html, `id="load-more"`) || !strings.Contains(html, `hx-get="/posts/more/?cursor=x"`) {
		t.Errorf("retry affordance missing: %s", html)
	}
}

func TestPostPage(t *testing.T) {
	post := content.PostDetail{
		Post:      content.Post{UID: "hooks", Title: "Hooks", Subtitle: "sub", Author: "Joseph"},
		BannerURL: "https://images.prismic.io/banner.png",
		Content: []content.Section{{
			Heading: "Proin et varius",
			Body:    richtext.Blocks{{Type: richtext.Paragraph, Text: "Nullam dolor sapien"}},
		}},
	}

	html := render(t, Post(testCfg, post, "/_image/?url=x&w=1200"))

	for _, want := range []string{
		"<h1>Hooks</h1>",
		`src="/_image/?url=x&amp;w=1200"`,
		"<h2>Proin et varius</h2>",
		"<p>Nullam dolor sapien</p>",
		"1 min",
		`"@type":"BlogPosting"`,
		`og:type" content="article"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("post page missing %q", want)
		}
	}
}

func TestIsoMinutes(t *testing.T) {
	tests := []struct {
		in   content.ReadingTime
		want string
	}{
		{content.ReadingTime{Value: 4, Unit: content.UnitMinutes}, "PT4M"},
		{content.ReadingTime{Value: 1.5, Unit: content.UnitHours}, "PT90M"},
	}
	for _, tt := range tests {
		if got := isoMinutes(tt.in); got != tt.want {
			t.Errorf("isoMinutes(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
