package prismic

import (
	"encoding/json"
	"fmt"
	"strings"
)

// API is the repository description served at the API endpoint root.
type API struct {
	Refs []Ref `json:"refs"`
}

// Ref identifies a content release. Queries must name one.
type Ref struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

// MasterRef returns the ref of the published content.
func (a API) MasterRef() (string, bool) {
	for _, r := range a.Refs {
		if r.IsMasterRef {
			return r.Ref, true
		}
	}
	return "", false
}

// Response is the page envelope returned by search queries and by the
// next_page / prev_page URLs it carries.
type Response struct {
	NextPage         *string    `json:"next_page"`
	Page             int        `json:"page"`
	PrevPage         *string    `json:"prev_page"`
	ResultsPerPage   int        `json:"results_per_page"`
	ResultsSize      int        `json:"results_size"`
	TotalPages       int        `json:"total_pages"`
	TotalResultsSize int        `json:"total_results_size"`
	Results          []Document `json:"results"`
}

// Next returns the next page URL, or "" on the last page.
func (r *Response) Next() string {
	if r == nil || r.NextPage == nil {
		return ""
	}
	return *r.NextPage
}

// Prev returns the previous page URL, or "" on the first page.
func (r *Response) Prev() string {
	if r == nil || r.PrevPage == nil {
		return ""
	}
	return *r.PrevPage
}

// Document is a single CMS record. Data is left raw; shaping it is the
// caller's job.
type Document struct {
	ID                   string          `json:"id"`
	UID                  *string         `json:"uid"`
	Type                 string          `json:"type"`
	Href                 string          `json:"href,omitempty"`
	Tags                 []string        `json:"tags,omitempty"`
	Lang                 string          `json:"lang,omitempty"`
	FirstPublicationDate *string         `json:"first_publication_date"`
	LastPublicationDate  *string         `json:"last_publication_date"`
	Data                 json.RawMessage `json:"data"`
}

// UIDOr returns the document UID, or fallback when it has none.
func (d Document) UIDOr(fallback string) string {
	if d.UID == nil || *d.UID == "" {
		return fallback
	}
	return *d.UID
}

// Predicate is one filter of a search query, e.g. [at(document.type,"post")].
type Predicate string

// At matches documents whose field at path equals value.
func At(path, value string) Predicate {
	return Predicate(fmt.Sprintf("[at(%s,%s)]", path, quote(value)))
}

// Any matches documents whose field at path equals one of values.
func Any(path string, values ...string) Predicate {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quote(v)
	}
	return Predicate(fmt.Sprintf("[any(%s,[%s])]", path, strings.Join(quoted, ",")))
}

// DocumentType matches documents of custom type t.
func DocumentType(t string) Predicate {
	return At("document.type", t)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func joinPredicates(preds []Predicate) string {
	var b strings.Builder
	b.WriteByte('[')
	for _, p := range preds {
		b.WriteString(string(p))
	}
	b.WriteByte(']')
	return b.String()
}

// QueryOptions tune a search query. Zero values are left to the API.
type QueryOptions struct {
	PageSize  int
	Page      int
	Fetch     []string // restrict returned fields, e.g. "post.title"
	Orderings string   // e.g. "[document.first_publication_date desc]"
	Lang      string
}
