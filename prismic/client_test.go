package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/spacetraveling/faults"
)

const testRef = "YF0vGBIAACMAp1Ww"

// newTestServer serves the API root plus a search handler at /api/v2/documents/search.
func newTestServer(t *testing.T, search http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"refs":[{"id":"master","ref":%q,"label":"Master","isMasterRef":true}]}`, testRef)
	})
	mux.HandleFunc("/api/v2/documents/search", search)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func strPtr(s string) *string { return &s }

func TestQuery_BuildsSearchParameters(t *testing.T) {
	var got map[string]string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{
			"ref":          q.Get("ref"),
			"q":            q.Get("q"),
			"pageSize":     q.Get("pageSize"),
			"fetch":        q.Get("fetch"),
			"access_token": q.Get("access_token"),
		}
		writeJSON(t, w, Response{Page: 1, ResultsPerPage: 5, TotalPages: 1})
	})

	c := NewClient(srv.URL+"/api/v2", WithAccessToken("secret"))
	resp, err := c.Query(context.Background(), []Predicate{DocumentType("post")}, QueryOptions{
		PageSize: 5,
		Fetch:    []string{"post.title", "post.author"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, testRef, got["ref"])
	assert.Equal(t, `[[at(document.type,"post")]]`, got["q"])
	assert.Equal(t, "5", got["pageSize"])
	assert.Equal(t, "post.title,post.author", got["fetch"])
	assert.Equal(t, "secret", got["access_token"])
}

func TestFetchPage_FollowsCursorVerbatim(t *testing.T) {
	var hits atomic.Int32
	var srv *httptest.Server
	srv = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("page") == "2" {
			writeJSON(t, w, Response{Page: 2, Results: []Document{{ID: "b"}}})
			return
		}
		writeJSON(t, w, Response{
			Page:     1,
			NextPage: strPtr(srv.URL + "/api/v2/documents/search?ref=" + testRef + "&page=2"),
			Results:  []Document{{ID: "a"}},
		})
	})

	c := NewClient(srv.URL + "/api/v2")
	first, err := c.Query(context.Background(), []Predicate{DocumentType("post")}, QueryOptions{PageSize: 1})
	require.NoError(t, err)
	require.NotEmpty(t, first.Next())

	second, err := c.FetchPage(context.Background(), first.Next())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Page)
	assert.Equal(t, "b", second.Results[0].ID)
	assert.Empty(t, second.Next())
	assert.Equal(t, int32(2), hits.Load())
}

func TestGetByUID_NotFound(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `[[at(my.post.uid,"missing")]]`, r.URL.Query().Get("q"))
		writeJSON(t, w, Response{Page: 1})
	})

	c := NewClient(srv.URL + "/api/v2")
	_, err := c.GetByUID(context.Background(), "post", "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrNotFound))
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(t, w, Response{Page: 1})
	})

	c := NewClient(srv.URL+"/api/v2", WithRetries(3, time.Millisecond))
	resp, err := c.Query(context.Background(), nil, QueryOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	c := NewClient(srv.URL+"/api/v2", WithRetries(3, time.Millisecond))
	_, err := c.Query(context.Background(), nil, QueryOptions{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrFetchFailed))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_TimeoutIsFetchFailed(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	c := NewClient(srv.URL+"/api/v2", WithTimeout(50*time.Millisecond), WithRetries(0, time.Millisecond))
	_, err := c.Query(context.Background(), nil, QueryOptions{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrFetchFailed))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGet_MalformedBody(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": "not-an-array"}`))
	})

	c := NewClient(srv.URL + "/api/v2")
	_, err := c.Query(context.Background(), nil, QueryOptions{})

	require.Error(t, err)
	assert.Equal(t, faults.KindMalformedRecord, faults.KindOf(err))
}

func TestGet_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := NewClient(srv.URL+"/api/v2", WithRetries(0, time.Millisecond), WithRefTTL(time.Hour))
	// Prime the ref so only search calls go through the breaker.
	_, err := c.MasterRef(context.Background())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.Query(context.Background(), nil, QueryOptions{})
		require.Error(t, err)
	}
	_, err = c.Query(context.Background(), nil, QueryOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, int32(3), calls.Load())
}

func TestEach_VisitsEveryPageInOrder(t *testing.T) {
	var srv *httptest.Server
	srv = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		switch page {
		case "", "1":
			writeJSON(t, w, Response{Page: 1, NextPage: strPtr(srv.URL + "/api/v2/documents/search?page=2"), Results: []Document{{ID: "1"}}})
		case "2":
			writeJSON(t, w, Response{Page: 2, NextPage: strPtr(srv.URL + "/api/v2/documents/search?page=3"), Results: []Document{{ID: "2"}}})
		default:
			writeJSON(t, w, Response{Page: 3, Results: []Document{{ID: "3"}}})
		}
	})

	c := NewClient(srv.URL + "/api/v2")
	var ids []string
	err := c.Each(context.Background(), []Predicate{DocumentType("post")}, QueryOptions{PageSize: 100}, 10, func(r *Response) error {
		for _, d := range r.Results {
			ids = append(ids, d.ID)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids)
}

func TestPredicates(t *testing.T) {
	assert.Equal(t, Predicate(`[at(my.post.uid,"a \"quoted\" slug")]`), At("my.post.uid", `a "quoted" slug`))
	assert.Equal(t, Predicate(`[any(document.tags,["go","web"])]`), Any("document.tags", "go", "web"))
	assert.Equal(t, `[[at(document.type,"post")][at(document.lang,"pt-br")]]`,
		joinPredicates([]Predicate{DocumentType("post"), At("document.lang", "pt-br")}))
}

func TestOwns(t *testing.T) {
	c := NewClient("https://blog.cdn.prismic.io/api/v2")

	assert.True(t, c.Owns("https://blog.cdn.prismic.io/api/v2/documents/search?page=2"))
	assert.False(t, c.Owns("https://evil.example/api/v2/documents/search?page=2"))
	assert.False(t, c.Owns("http://blog.cdn.prismic.io/api/v2/documents/search"))
	assert.False(t, c.Owns("/api/v2/documents/search"))
	assert.False(t, c.Owns("https://blog.cdn.prismic.io/other"))
}

func TestStripToken(t *testing.T) {
	assert.Equal(t,
		"https://blog.cdn.prismic.io/api/v2/documents/search?page=2&ref=abc",
		StripToken("https://blog.cdn.prismic.io/api/v2/documents/search?access_token=secret&page=2&ref=abc"))

	untouched := "https://blog.cdn.prismic.io/api/v2/documents/search?ref=abc&page=2"
	assert.Equal(t, untouched, StripToken(untouched))
}
