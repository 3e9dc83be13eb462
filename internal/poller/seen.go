package poller

import "time"

// seenSet remembers processed message ids for ttl. Messages older than ttl
// are never processed, so evicting an id cannot cause it to be handled twice.
type seenSet struct {
	ttl     time.Duration
	entries map[string]time.Time
}

func newSeenSet(ttl time.Duration) *seenSet {
	return &seenSet{
		ttl:     ttl,
		entries: make(map[string]time.Time),
	}
}

func (s *seenSet) Has(id string) bool {
	_, ok := s.entries[id]
	return ok
}

func (s *seenSet) Add(id string, now time.Time) {
	if _, ok := s.entries[id]; !ok {
		s.entries[id] = now
	}
}

func (s *seenSet) Evict(now time.Time) int {
	evicted := 0
	for id, at := range s.entries {
		if now.Sub(at) > s.ttl {
			delete(s.entries, id)
			evicted++
		}
	}
	return evicted
}

func (s *seenSet) Len() int {
	return len(s.entries)
}
