// Package pagination tracks a listing that grows page by page by following
// the CMS next_page cursor. State changes go through Reduce; Tracker adds
// the single-load-in-flight guard around it.
package pagination

import (
	"log/slog"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/prismic"
)

// Meta is the envelope metadata of the most recently loaded page.
// Empty NextPage / PrevPage mean there is no such page.
type Meta struct {
	NextPage         string `json:"next_page,omitempty"`
	PrevPage         string `json:"prev_page,omitempty"`
	Page             int    `json:"page"`
	ResultsPerPage   int    `json:"results_per_page"`
	ResultsSize      int    `json:"results_size"`
	TotalPages       int    `json:"total_pages"`
	TotalResultsSize int    `json:"total_results_size"`
}

// Page is one normalized page of posts.
type Page struct {
	Meta  Meta           `json:"meta"`
	Posts []content.Post `json:"posts"`
}

// PageFromResponse normalizes an envelope. Records that do not normalize
// are skipped and logged.
func PageFromResponse(resp *prismic.Response) Page {
	if resp == nil {
		return Page{}
	}
	posts, err := content.NormalizePosts(resp.Results)
	if err != nil {
		slog.Warn("Skipped malformed posts", "page", resp.Page, "skipped", len(resp.Results)-len(posts), "error", err)
	}
	return Page{
		Meta: Meta{
			NextPage:         resp.Next(),
			PrevPage:         resp.Prev(),
			Page:             resp.Page,
			ResultsPerPage:   resp.ResultsPerPage,
			ResultsSize:      resp.ResultsSize,
			TotalPages:       resp.TotalPages,
			TotalResultsSize: resp.TotalResultsSize,
		},
		Posts: posts,
	}
}

// State is the accumulated listing. Results only ever grow, in CMS order.
type State struct {
	Meta
	Results []content.Post
	Loading bool
	Err     error // last load failure, cleared by the next success
}

// HasMore reports whether a further page exists.
func (s State) HasMore() bool {
	return s.NextPage != ""
}

// Event is an input to Reduce.
type Event interface {
	event()
}

// Loaded replaces the state with a first page.
type Loaded struct{ Page Page }

// LoadStarted marks a load as in flight.
type LoadStarted struct{}

// Appended adds a fetched page after the current results.
type Appended struct{ Page Page }

// Failed ends an in-flight load without changing results or cursor.
type Failed struct{ Err error }

func (Loaded) event()      {}
func (LoadStarted) event() {}
func (Appended) event()    {}
func (Failed) event()      {}

// Reduce returns the state that follows s after e. It never modifies s.
func Reduce(s State, e Event) State {
	switch e := e.(type) {
	case Loaded:
		return State{
			Meta:    e.Page.Meta,
			Results: append([]content.Post(nil), e.Page.Posts...),
		}
	case LoadStarted:
		s.Loading = true
		return s
	case Appended:
		results := make([]content.Post, 0, len(s.Results)+len(e.Page.Posts))
		results = append(results, s.Results...)
		results = append(results, e.Page.Posts...)
		return State{Meta: e.Page.Meta, Results: results}
	case Failed:
		s.Loading = false
		s.Err = e.Err
		return s
	}
	return s
}
