package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/faults"
	"github.com/eringen/spacetraveling/prismic"
)

// ErrLoadInProgress is returned by LoadMore while another load is in flight.
var ErrLoadInProgress = errors.New("pagination: load already in progress")

const defaultTimeout = 10 * time.Second

// Fetcher dereferences a next_page cursor. *prismic.Client implements it.
type Fetcher interface {
	FetchPage(ctx context.Context, pageURL string) (*prismic.Response, error)
}

// Tracker owns one listing's State and serializes loads on it.
type Tracker struct {
	fetcher Fetcher
	timeout time.Duration

	mu    sync.Mutex
	state State
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTimeout bounds each LoadMore fetch.
func WithTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// NewTracker starts a tracker from an already fetched first page.
func NewTracker(f Fetcher, first Page, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		fetcher: f,
		timeout: defaultTimeout,
		state:   Reduce(State{}, Loaded{Page: first}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LoadMore fetches the page after the current one and appends it. It
// returns the newly appended posts. With no next page it does nothing and
// returns nil, nil. While another load is in flight it returns
// ErrLoadInProgress without fetching. On failure the accumulated results
// and the cursor are kept so the call can be retried.
func (t *Tracker) LoadMore(ctx context.Context) ([]content.Post, error) {
	t.mu.Lock()
	if t.state.Loading {
		t.mu.Unlock()
		return nil, ErrLoadInProgress
	}
	if !t.state.HasMore() {
		t.mu.Unlock()
		return nil, nil
	}
	cursor := t.state.NextPage
	t.state = Reduce(t.state, LoadStarted{})
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.fetch(ctx, cursor)
	if err == nil && resp == nil {
		err = errors.New("fetcher returned no page")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		if !faults.Recoverable(err) {
			err = faults.FetchFailed("pagination.LoadMore", err)
		}
		t.state = Reduce(t.state, Failed{Err: err})
		return nil, err
	}
	page := PageFromResponse(resp)
	t.state = Reduce(t.state, Appended{Page: page})
	return page.Posts, nil
}

// fetch calls the fetcher. A panic in it fails the load before it
// propagates, so the tracker is never left Loading.
func (t *Tracker) fetch(ctx context.Context, cursor string) (*prismic.Response, error) {
	defer func() {
		if r := recover(); r != nil {
			t.mu.Lock()
			t.state = Reduce(t.state, Failed{Err: faults.FetchFailed("pagination.LoadMore", fmt.Errorf("fetch panicked: %v", r))})
			t.mu.Unlock()
			panic(r)
		}
	}()
	return t.fetcher.FetchPage(ctx, cursor)
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state
	s.Results = append([]content.Post(nil), t.state.Results...)
	return s
}

// HasMore reports whether LoadMore would fetch anything.
func (t *Tracker) HasMore() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.HasMore()
}

// NextPage returns the current cursor, or "".
func (t *Tracker) NextPage() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.NextPage
}
