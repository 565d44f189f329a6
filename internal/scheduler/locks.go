package scheduler

import (
	"sort"
	"sync"
)

// ResourceLockManager provides per-resource mutual exclusion for concurrently running steps.
// Each resource key gets its own mutex, so steps touching different resources run
// side by side while steps sharing a resource are serialized.
type ResourceLockManager struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-resource mutexes
}

// NewResourceLockManager creates a new ResourceLockManager.
func NewResourceLockManager() *ResourceLockManager {
	return &ResourceLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for the given resource, creating it on first access.
func (r *ResourceLockManager) Lock(resource string) {
	r.mu.Lock()
	l, exists := r.locks[resource]
	if !exists {
		l = &sync.Mutex{}
		r.locks[resource] = l
	}
	r.mu.Unlock()

	// Acquire outside the manager lock to avoid contention
	l.Lock()
}

// Unlock releases the mutex for the given resource.
func (r *ResourceLockManager) Unlock(resource string) {
	r.mu.Lock()
	l, exists := r.locks[resource]
	r.mu.Unlock()

	if exists {
		l.Unlock()
	}
}

// LockAll acquires every resource in lexicographic order so two callers with
// overlapping sets cannot deadlock. Duplicate keys are locked once.
func (r *ResourceLockManager) LockAll(resources []string) {
	for _, res := range sortedUnique(resources) {
		r.Lock(res)
	}
}

// UnlockAll releases resources in reverse order of LockAll.
func (r *ResourceLockManager) UnlockAll(resources []string) {
	sorted := sortedUnique(resources)
	for i := len(sorted) - 1; i >= 0; i-- {
		r.Unlock(sorted[i])
	}
}

func sortedUnique(resources []string) []string {
	if len(resources) == 0 {
		return nil
	}
	sorted := make([]string, len(resources))
	copy(sorted, resources)
	sort.Strings(sorted)

	out := make([]string, 0, len(sorted))
	for i, res := range sorted {
		if i > 0 && res == sorted[i-1] {
			continue
		}
		out = append(out, res)
	}
	return out
}
