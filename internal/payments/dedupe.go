package payments

import "sync"

// EventSet remembers recently processed webhook event ids in process. It
// fronts the processed_webhook_events table and is bounded; evicted ids are
// still caught by the table.
type EventSet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	next  int
}

func NewEventSet(capacity int) *EventSet {
	if capacity <= 0 {
		capacity = 10000
	}
	return &EventSet{
		seen:  make(map[string]struct{}, capacity),
		order: make([]string, capacity),
	}
}

func (s *EventSet) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

func (s *EventSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return
	}
	if old := s.order[s.next]; old != "" {
		delete(s.seen, old)
	}
	s.order[s.next] = id
	s.seen[id] = struct{}{}
	s.next = (s.next + 1) % len(s.order)
}

func (s *EventSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
