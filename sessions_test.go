package spacetraveling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/spacetraveling/pagination"
)

func TestListingSessions_PutGetReplace(t *testing.T) {
	s := NewListingSessions(time.Hour)
	defer s.Close()

	first := pagination.NewTracker(nil, pagination.Page{})
	id := s.Put(first)
	require.NotEmpty(t, id)

	got, ok := s.Get(id)
	require.True(t, ok)
	assert.Same(t, first, got)

	second := pagination.NewTracker(nil, pagination.Page{})
	s.Replace(id, second)
	got, ok = s.Get(id)
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, s.Len())

	_, ok = s.Get("unknown")
	assert.False(t, ok)
}

func TestListingSessions_SweepDropsIdle(t *testing.T) {
	s := NewListingSessions(time.Hour)
	defer s.Close()

	stale := s.Put(pagination.NewTracker(nil, pagination.Page{}))
	fresh := s.Put(pagination.NewTracker(nil, pagination.Page{}))

	s.mu.Lock()
	s.entries[stale].seen = time.Now().Add(-2 * time.Hour)
	s.mu.Unlock()

	s.sweep(time.Now())

	_, ok := s.Get(stale)
	assert.False(t, ok)
	_, ok = s.Get(fresh)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestListingSessions_CloseTwice(t *testing.T) {
	s := NewListingSessions(time.Hour)
	s.Close()
	s.Close()
}
