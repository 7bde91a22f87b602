package pagination

import (
	"errors"
	"reflect"
	"testing"

	"github.com/eringen/spacetraveling/content"
)

func page(next string, uids ...string) Page {
	p := Page{Meta: Meta{NextPage: next, ResultsSize: len(uids)}}
	for _, u := range uids {
		p.Posts = append(p.Posts, content.Post{UID: u})
	}
	return p
}

func TestReduceAppendedDoesNotAlias(t *testing.T) {
	s0 := Reduce(State{}, Loaded{Page: page("next", "a", "b")})
	s1 := Reduce(s0, LoadStarted{})
	s2 := Reduce(s1, Appended{Page: page("", "c")})

	if len(s0.Results) != 2 || s0.Loading {
		t.Fatalf("s0 changed: %+v", s0)
	}
	if !s1.Loading || len(s1.Results) != 2 {
		t.Fatalf("s1 = %+v, want loading with 2 results", s1)
	}
	want := []string{"a", "b", "c"}
	if got := uids(s2.Results); !reflect.DeepEqual(got, want) {
		t.Errorf("results = %v, want %v", got, want)
	}
	if s2.Loading || s2.HasMore() {
		t.Errorf("s2 should be idle on the last page: %+v", s2)
	}
}

func TestReduceFailedKeepsCursor(t *testing.T) {
	s := Reduce(State{}, Loaded{Page: page("cursor-2", "a")})
	s = Reduce(s, LoadStarted{})
	s = Reduce(s, Failed{Err: errors.New("boom")})

	if s.Loading {
		t.Errorf("Failed should clear Loading")
	}
	if s.NextPage != "cursor-2" || len(s.Results) != 1 {
		t.Errorf("Failed changed cursor or results: %+v", s)
	}
	if s.Err == nil {
		t.Errorf("Failed should record the error")
	}

	s = Reduce(s, Appended{Page: page("", "b")})
	if s.Err != nil {
		t.Errorf("Appended should clear the previous error")
	}
}

func TestReduceLoadedReplaces(t *testing.T) {
	s := Reduce(State{}, Loaded{Page: page("x", "a")})
	s = Reduce(s, Loaded{Page: page("", "z")})
	if got := uids(s.Results); !reflect.DeepEqual(got, []string{"z"}) {
		t.Errorf("results = %v, want [z]", got)
	}
}
