package agentflow

import (
	"sort"
	"sync"
)

// DataBag is the shared key-value store steps pass inputs and outputs
// through. One bag belongs to exactly one workflow run; it is never reused
// across runs. Parallel steps write disjoint key sets by construction
// (outputs are step-scoped), but the underlying map still needs a guard
// against concurrent access; the ordering guarantee between a producer's
// write and a dependent's read comes from the wave barrier, not from this
// lock.
type DataBag struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewDataBag creates a bag seeded with the caller's initial inputs.
func NewDataBag(seed map[string]any) *DataBag {
	values := make(map[string]any, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &DataBag{values: values}
}

// Get returns the value stored under key.
func (b *DataBag) Get(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	val, ok := b.values[key]
	return val, ok
}

// Has reports whether key is present.
func (b *DataBag) Has(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.values[key]
	return ok
}

// Set stores a single value.
func (b *DataBag) Set(key string, val any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.values[key] = val
}

// Merge stores every entry of outputs.
func (b *DataBag) Merge(outputs map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for k, v := range outputs {
		b.values[k] = v
	}
}

// Snapshot returns a shallow copy of the current contents, safe to read
// without further locking.
func (b *DataBag) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := make(map[string]any, len(b.values))
	for k, v := range b.values {
		snap[k] = v
	}
	return snap
}

// Keys returns the present keys, sorted.
func (b *DataBag) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (b *DataBag) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.values)
}
