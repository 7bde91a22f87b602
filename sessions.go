package spacetraveling

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/metrics"
	"github.com/eringen/spacetraveling/pagination"
)

const (
	sessionName      = "listing"
	sessionListingID = "listing_id"
)

// ListingSessions holds one pagination.Tracker per visitor listing. The
// visitor's cookie session only carries the registry id.
type ListingSessions struct {
	mu      sync.Mutex
	entries map[string]*listingEntry
	idle    time.Duration
	done    chan struct{}
	once    sync.Once
}

type listingEntry struct {
	tracker *pagination.Tracker
	seen    time.Time
}

// NewListingSessions creates a registry whose entries expire after idle
// without use, and starts the sweep loop. Call Close to stop it.
func NewListingSessions(idle time.Duration) *ListingSessions {
	s := &ListingSessions{
		entries: make(map[string]*listingEntry),
		idle:    idle,
		done:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Get returns the tracker registered under id and refreshes its expiry.
func (s *ListingSessions) Get(id string) (*pagination.Tracker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	e.seen = time.Now()
	return e.tracker, true
}

// Put registers a tracker under a new id and returns the id.
func (s *ListingSessions) Put(t *pagination.Tracker) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = &listingEntry{tracker: t, seen: time.Now()}
	metrics.ListingSessions.Set(float64(len(s.entries)))
	s.mu.Unlock()
	return id
}

// Replace swaps the tracker under id, registering it if id is unknown.
func (s *ListingSessions) Replace(id string, t *pagination.Tracker) {
	s.mu.Lock()
	s.entries[id] = &listingEntry{tracker: t, seen: time.Now()}
	metrics.ListingSessions.Set(float64(len(s.entries)))
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *ListingSessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *ListingSessions) sweepLoop() {
	interval := s.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *ListingSessions) sweep(now time.Time) {
	cutoff := now.Add(-s.idle)
	s.mu.Lock()
	for id, e := range s.entries {
		if e.seen.Before(cutoff) {
			delete(s.entries, id)
		}
	}
	metrics.ListingSessions.Set(float64(len(s.entries)))
	s.mu.Unlock()
}

// Close stops the sweep loop.
func (s *ListingSessions) Close() {
	s.once.Do(func() { close(s.done) })
}

// listingID returns the registry id stored in the visitor's cookie session.
func listingID(c echo.Context) string {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return ""
	}
	id, _ := sess.Values[sessionListingID].(string)
	return id
}

func setListingID(c echo.Context, id string) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values[sessionListingID] = id
	return sess.Save(c.Request(), c.Response())
}
