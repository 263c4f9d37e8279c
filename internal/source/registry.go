package source

import (
	"log/slog"
	"sync"

	"bookdex/internal/errors"
)

// DefaultFailureThreshold is the consecutive-failure count after which a
// source is marked unavailable.
const DefaultFailureThreshold = 3

// Registry holds the configured source adapters and their health state.
// Health is advisory: an unavailable source is still queried on explicit
// request, the flag only lets callers deprioritize a visibly broken source.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*registryEntry
}

type registryEntry struct {
	adapter Adapter

	mu        sync.Mutex
	failures  int
	threshold int
	available bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register adds an adapter under its descriptor id. Registration order is
// preserved in List and IDs. threshold <= 0 uses DefaultFailureThreshold.
func (r *Registry) Register(adapter Adapter, threshold int) {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}

	id := adapter.Descriptor().ID

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = &registryEntry{
		adapter:   adapter,
		threshold: threshold,
		available: true,
	}
}

// Resolve returns the adapter for the given source id.
func (r *Registry) Resolve(sourceID string) (Adapter, error) {
	r.mu.RLock()
	entry, ok := r.entries[sourceID]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.NewUnknownSourceError(sourceID)
	}
	return entry.adapter, nil
}

// IDs returns the configured source ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// List returns descriptors for every configured source in registration
// order, regardless of current health.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		entry := r.entries[id]
		desc := entry.adapter.Descriptor()

		entry.mu.Lock()
		desc.Available = entry.available
		entry.mu.Unlock()

		descriptors = append(descriptors, desc)
	}
	return descriptors
}

// RecordOutcome updates the rolling health counter for a source. A streak of
// consecutive failures reaching the threshold flips the source unavailable;
// a single success resets it. Unknown ids are ignored.
func (r *Registry) RecordOutcome(sourceID string, success bool) {
	r.mu.RLock()
	entry, ok := r.entries[sourceID]
	r.mu.RUnlock()

	if !ok {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if success {
		entry.failures = 0
		if !entry.available {
			slog.Info("Source recovered", "source", sourceID)
		}
		entry.available = true
		return
	}

	entry.failures++
	if entry.failures >= entry.threshold && entry.available {
		entry.available = false
		slog.Warn("Source marked unavailable", "source", sourceID, "consecutive_failures", entry.failures)
	}
}

// Available reports the current health flag for a source. Unknown ids
// report false.
func (r *Registry) Available(sourceID string) bool {
	r.mu.RLock()
	entry, ok := r.entries[sourceID]
	r.mu.RUnlock()

	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.available
}
