package models

import "sync"

// ResultSet is an append-only, concurrency-safe list of items in completion order.
type ResultSet struct {
	mu       sync.Mutex
	items    []ExtractedItem
	failures []Failure
}

func (r *ResultSet) Add(item ExtractedItem) {
	r.mu.Lock()
	r.items = append(r.items, item)
	r.mu.Unlock()
}

func (r *ResultSet) Fail(f Failure) {
	r.mu.Lock()
	r.failures = append(r.failures, f)
	r.mu.Unlock()
}

// Items returns a copy of the recorded items.
func (r *ResultSet) Items() []ExtractedItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ExtractedItem, len(r.items))
	copy(out, r.items)
	return out
}

// Failures returns a copy of the failed links.
func (r *ResultSet) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Failure, len(r.failures))
	copy(out, r.failures)
	return out
}

func (r *ResultSet) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
