// Package content turns CMS documents into display-ready posts and formats
// the values shown next to them: publication date and reading time.
package content

import (
	"time"

	"github.com/eringen/spacetraveling/richtext"
)

// Post is the listing view of a CMS post.
type Post struct {
	UID             string     `json:"uid,omitempty"` // empty when the document has none
	PublicationDate *time.Time `json:"first_publication_date"`
	Title           string     `json:"title"`
	Subtitle        string     `json:"subtitle"`
	Author          string     `json:"author"`
}

// Link returns the post route, or "" for a post without a UID.
func (p Post) Link() string {
	if p.UID == "" {
		return ""
	}
	return "/post/" + p.UID + "/"
}

// PostDetail is the full post page.
type PostDetail struct {
	Post
	BannerURL string    `json:"banner_url,omitempty"`
	Content   []Section `json:"content"`
}

// Section is a heading followed by rich-text body blocks.
type Section struct {
	Heading string          `json:"heading"`
	Body    richtext.Blocks `json:"body"`
}

// Texts returns every section body as plain text, followed by every
// heading. This is the input EstimateReadingTime expects for a post.
func (d PostDetail) Texts() []string {
	texts := make([]string, 0, 2*len(d.Content))
	for _, s := range d.Content {
		texts = append(texts, richtext.AsText(s.Body))
	}
	for _, s := range d.Content {
		texts = append(texts, s.Heading)
	}
	return texts
}

// ReadingTime estimates how long the post takes to read.
func (d PostDetail) ReadingTime() ReadingTime {
	return EstimateReadingTime(d.Texts())
}
