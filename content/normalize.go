package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eringen/spacetraveling/faults"
	"github.com/eringen/spacetraveling/metrics"
	"github.com/eringen/spacetraveling/prismic"
	"github.com/eringen/spacetraveling/richtext"
)

// PostType is the CMS custom type of blog posts.
const PostType = "post"

// PostFields restricts a query to the fields a listing needs.
var PostFields = []string{"post.title", "post.subtitle", "post.author"}

// NormalizePost projects a CMS document onto a Post. Title, subtitle and
// author must be present; each may be plain text or a rich-text field.
func NormalizePost(doc prismic.Document) (Post, error) {
	const op = "content.NormalizePost"

	data, err := decodeData(op, doc)
	if err != nil {
		return Post{}, err
	}

	p := Post{UID: doc.UIDOr("")}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"title", &p.Title},
		{"subtitle", &p.Subtitle},
		{"author", &p.Author},
	} {
		v, err := textField(op, doc.ID, data, f.name)
		if err != nil {
			return Post{}, err
		}
		*f.dst = v
	}

	if doc.FirstPublicationDate != nil {
		t, err := ParseDate(*doc.FirstPublicationDate)
		if err != nil {
			return Post{}, faults.MalformedRecord(op, "document %s: first_publication_date %q", doc.ID, *doc.FirstPublicationDate)
		}
		p.PublicationDate = &t
	}
	return p, nil
}

// NormalizePostDetail projects a CMS document onto a PostDetail. The banner
// may be missing or empty; content must be an array of sections.
func NormalizePostDetail(doc prismic.Document) (PostDetail, error) {
	const op = "content.NormalizePostDetail"

	post, err := NormalizePost(doc)
	if err != nil {
		return PostDetail{}, err
	}
	data, err := decodeData(op, doc)
	if err != nil {
		return PostDetail{}, err
	}

	d := PostDetail{Post: post}

	if raw, ok := data["banner"]; ok && !isNull(raw) {
		var banner struct {
			URL *string `json:"url"`
		}
		if err := json.Unmarshal(raw, &banner); err != nil {
			return PostDetail{}, faults.MalformedRecord(op, "document %s: banner: %v", doc.ID, err)
		}
		if banner.URL != nil {
			d.BannerURL = *banner.URL
		}
	}

	raw, ok := data["content"]
	if !ok || isNull(raw) {
		return PostDetail{}, faults.MalformedRecord(op, "document %s: missing field %q", doc.ID, "content")
	}
	var sections []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return PostDetail{}, faults.MalformedRecord(op, "document %s: content: %v", doc.ID, err)
	}
	d.Content = make([]Section, 0, len(sections))
	for i, s := range sections {
		var sec Section
		if h, ok := s["heading"]; ok && !isNull(h) {
			if sec.Heading, err = decodeText(h); err != nil {
				return PostDetail{}, faults.MalformedRecord(op, "document %s: content[%d].heading: %v", doc.ID, i, err)
			}
		}
		if b, ok := s["body"]; ok && !isNull(b) {
			if err := json.Unmarshal(b, &sec.Body); err != nil {
				return PostDetail{}, faults.MalformedRecord(op, "document %s: content[%d].body: %v", doc.ID, i, err)
			}
		}
		d.Content = append(d.Content, sec)
	}
	return d, nil
}

// NormalizePosts normalizes docs in order, skipping malformed records. The
// returned error joins one diagnostic per skipped record; the posts that
// did normalize are returned either way.
func NormalizePosts(docs []prismic.Document) ([]Post, error) {
	posts := make([]Post, 0, len(docs))
	var errs []error
	for _, doc := range docs {
		p, err := NormalizePost(doc)
		if err != nil {
			metrics.MalformedRecords.Inc()
			errs = append(errs, err)
			continue
		}
		posts = append(posts, p)
	}
	return posts, errors.Join(errs...)
}

func decodeData(op string, doc prismic.Document) (map[string]json.RawMessage, error) {
	if len(doc.Data) == 0 || isNull(doc.Data) {
		return nil, faults.MalformedRecord(op, "document %s: missing data", doc.ID)
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(doc.Data, &data); err != nil {
		return nil, faults.MalformedRecord(op, "document %s: data: %v", doc.ID, err)
	}
	return data, nil
}

func textField(op, id string, data map[string]json.RawMessage, name string) (string, error) {
	raw, ok := data[name]
	if !ok || isNull(raw) {
		return "", faults.MalformedRecord(op, "document %s: missing field %q", id, name)
	}
	s, err := decodeText(raw)
	if err != nil {
		return "", faults.MalformedRecord(op, "document %s: field %q: %v", id, name, err)
	}
	return s, nil
}

// decodeText accepts a JSON string or a rich-text block array.
func decodeText(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var blocks richtext.Blocks
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return richtext.AsText(blocks), nil
	}
	return "", fmt.Errorf("want text, got %s", truncate(raw, 40))
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func truncate(raw json.RawMessage, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
