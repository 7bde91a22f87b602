// Package richtext renders Prismic structured text (the block/span JSON the
// CMS stores for rich-text fields) as plain text or as an HTML templ component.
package richtext

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/a-h/templ"
)

// Block types.
const (
	Heading1     = "heading1"
	Heading2     = "heading2"
	Heading3     = "heading3"
	Heading4     = "heading4"
	Heading5     = "heading5"
	Heading6     = "heading6"
	Paragraph    = "paragraph"
	Preformatted = "preformatted"
	ListItem     = "list-item"
	OListItem    = "o-list-item"
	Image        = "image"
	Embed        = "embed"
)

// Span types.
const (
	Strong    = "strong"
	Em        = "em"
	Hyperlink = "hyperlink"
	Label     = "label"
)

// Block is one paragraph-level element.
type Block struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	Spans      []Span      `json:"spans,omitempty"`
	URL        string      `json:"url,omitempty"`
	Alt        string      `json:"alt,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	OEmbed     *OEmbed     `json:"oembed,omitempty"`
}

// Dimensions of an image block.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// OEmbed is the subset of embed metadata we render.
type OEmbed struct {
	EmbedURL string `json:"embed_url"`
	Title    string `json:"title,omitempty"`
}

// Span marks up Text[Start:End]. Offsets count UTF-16 code units.
type Span struct {
	Start int       `json:"start"`
	End   int       `json:"end"`
	Type  string    `json:"type"`
	Data  *SpanData `json:"data,omitempty"`
}

// SpanData carries link targets and labels.
type SpanData struct {
	LinkType string `json:"link_type,omitempty"`
	URL      string `json:"url,omitempty"`
	Target   string `json:"target,omitempty"`
	UID      string `json:"uid,omitempty"`
	Type     string `json:"type,omitempty"`
	Label    string `json:"label,omitempty"`
}

// Blocks is a rich-text field value.
type Blocks []Block

// AsText returns the text of every text-bearing block joined by a space.
func AsText(blocks Blocks) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == Image || b.Type == Embed {
			continue
		}
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, " ")
}

// HTML returns a templ.Component that renders blocks as HTML.
func HTML(blocks Blocks) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		RenderHTML(&buf, blocks)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// RenderHTML writes the HTML representation of blocks to buf. Consecutive
// list items are grouped into one <ul> or <ol>.
func RenderHTML(buf *bytes.Buffer, blocks Blocks) {
	list := ""
	flushList := func() {
		if list != "" {
			buf.WriteString("</" + list + ">")
			list = ""
		}
	}
	openList := func(tag string) {
		if list == tag {
			return
		}
		flushList()
		buf.WriteString("<" + tag + ">")
		list = tag
	}

	for _, b := range blocks {
		switch b.Type {
		case ListItem:
			openList("ul")
			writeTextBlock(buf, "li", b)
			continue
		case OListItem:
			openList("ol")
			writeTextBlock(buf, "li", b)
			continue
		}
		flushList()

		switch b.Type {
		case Heading1, Heading2, Heading3, Heading4, Heading5, Heading6:
			writeTextBlock(buf, "h"+b.Type[len(b.Type)-1:], b)
		case Preformatted:
			buf.WriteString("<pre>")
			buf.WriteString(html.EscapeString(b.Text))
			buf.WriteString("</pre>")
		case Image:
			writeImage(buf, b)
		case Embed:
			if b.OEmbed != nil && safeURL(b.OEmbed.EmbedURL) {
				u := html.EscapeString(b.OEmbed.EmbedURL)
				buf.WriteString(`<div class="embed"><a href="` + u + `" target="_blank" rel="noopener noreferrer">`)
				title := b.OEmbed.Title
				if title == "" {
					title = b.OEmbed.EmbedURL
				}
				buf.WriteString(html.EscapeString(title))
				buf.WriteString("</a></div>")
			}
		default:
			writeTextBlock(buf, "p", b)
		}
	}
	flushList()
}

func writeTextBlock(buf *bytes.Buffer, tag string, b Block) {
	buf.WriteString("<" + tag + ">")
	units := utf16.Encode([]rune(b.Text))
	renderSpans(buf, units, normalizeSpans(b.Spans, len(units)), 0, len(units))
	buf.WriteString("</" + tag + ">")
}

func writeImage(buf *bytes.Buffer, b Block) {
	if !safeURL(b.URL) {
		return
	}
	buf.WriteString(`<p class="block-img"><img src="`)
	buf.WriteString(html.EscapeString(b.URL))
	buf.WriteString(`" alt="`)
	buf.WriteString(html.EscapeString(b.Alt))
	buf.WriteString(`"`)
	if b.Dimensions != nil && b.Dimensions.Width > 0 && b.Dimensions.Height > 0 {
		buf.WriteString(` width="` + strconv.Itoa(b.Dimensions.Width) + `" height="` + strconv.Itoa(b.Dimensions.Height) + `"`)
	}
	buf.WriteString(` loading="lazy"></p>`)
}

// normalizeSpans drops out-of-range spans and orders the rest so that an
// enclosing span comes before the spans it contains.
func normalizeSpans(spans []Span, n int) []Span {
	out := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 || s.End > n || s.Start >= s.End {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End > out[j].End
	})
	return out
}

func renderSpans(buf *bytes.Buffer, units []uint16, spans []Span, from, to int) {
	pos := from
	for i := 0; i < len(spans); {
		s := spans[i]
		if s.Start < pos {
			s.Start = pos
		}
		if s.End > to {
			s.End = to
		}
		if s.Start >= s.End {
			i++
			continue
		}
		writeText(buf, units[pos:s.Start])

		j := i + 1
		for j < len(spans) && spans[j].Start < s.End {
			j++
		}
		children := make([]Span, 0, j-i-1)
		for _, c := range spans[i+1 : j] {
			if c.End > s.End {
				c.End = s.End
			}
			children = append(children, c)
		}

		openTag, closeTag := spanTags(s)
		buf.WriteString(openTag)
		renderSpans(buf, units, children, s.Start, s.End)
		buf.WriteString(closeTag)

		pos = s.End
		i = j
	}
	writeText(buf, units[pos:to])
}

func spanTags(s Span) (string, string) {
	switch s.Type {
	case Strong:
		return "<strong>", "</strong>"
	case Em:
		return "<em>", "</em>"
	case Label:
		if s.Data != nil && s.Data.Label != "" {
			return `<span class="` + html.EscapeString(s.Data.Label) + `">`, "</span>"
		}
		return "<span>", "</span>"
	case Hyperlink:
		href := resolveLink(s.Data)
		if href == "" {
			return "", ""
		}
		attrs := `href="` + html.EscapeString(href) + `"`
		if s.Data.Target != "" {
			attrs += ` target="` + html.EscapeString(s.Data.Target) + `" rel="noopener noreferrer"`
		}
		return "<a " + attrs + ">", "</a>"
	}
	return "", ""
}

// resolveLink maps span link data to an href. Document links point at the
// post route; web and media links must use a safe scheme.
func resolveLink(d *SpanData) string {
	if d == nil {
		return ""
	}
	if d.LinkType == "Document" {
		if d.UID == "" {
			return ""
		}
		return "/" + url.PathEscape(d.Type) + "/" + url.PathEscape(d.UID) + "/"
	}
	if !safeURL(d.URL) {
		return ""
	}
	return d.URL
}

func safeURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto", "":
		return true
	}
	return false
}

func writeText(buf *bytes.Buffer, units []uint16) {
	if len(units) == 0 {
		return
	}
	text := html.EscapeString(string(utf16.Decode(units)))
	buf.WriteString(strings.ReplaceAll(text, "\n", "<br />"))
}
