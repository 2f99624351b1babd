// Package state implements the one piece of shared mutable state the
// server has: a per-path accessor counter plus an optional cached
// response, guarded by a single mutex (spec §4.4, §5). No lock is ever
// held across filesystem or network I/O — every method here does a short
// map mutation and returns.
package state

import (
	"sync"
	"time"

	"github.com/dexgs/user-sites/internal/errs"
	"github.com/dexgs/user-sites/internal/metrics"
)

// Defaults mirror spec.md §4.4's named constants. They can be overridden
// by ambient config (internal/config) but never by the URL or argv.
const (
	DefaultMaxConcurrentAccessors = 5000
	DefaultMaxCacheFileSize       = 50 * 1024 * 1024        // 50 MiB
	DefaultMaxCacheSize           = 1024 * 1024 * 1024       // 1 GiB
	DefaultHysteresisHold         = 1 * time.Second
)

type pathEntry struct {
	accessors int
	cache     []byte // nil means "not cached"
}

// SharedState is the process-wide accessor-count + cache map.
type SharedState struct {
	mu      sync.Mutex
	entries map[string]*pathEntry

	cacheBytesInUse int64

	MaxConcurrentAccessors int
	MaxCacheFileSize       int64
	MaxCacheSize           int64
	HysteresisHold         time.Duration

	Metrics *metrics.Registry // optional; nil is fine, used only for gauges
}

// New constructs a SharedState with spec-defined defaults. Fields may be
// overridden on the returned value before first use (they are read
// without locking, and this type is not safe to reconfigure concurrently
// with requests).
func New() *SharedState {
	return &SharedState{
		entries:                make(map[string]*pathEntry),
		MaxConcurrentAccessors: DefaultMaxConcurrentAccessors,
		MaxCacheFileSize:       DefaultMaxCacheFileSize,
		MaxCacheSize:           DefaultMaxCacheSize,
		HysteresisHold:         DefaultHysteresisHold,
	}
}

// Enter performs admission control and the accessor increment in one
// critical section. It returns the access ordinal — the accessor count
// observed *before* this call's own increment — which the cache policy
// consumes (ordinal == 1 means a second concurrent viewer has arrived).
// If the path is already at or over the concurrency cap, it returns
// errs.Unavailable and does not increment anything.
func (s *SharedState) Enter(path string) (ordinal int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[path]
	current := 0
	if ok {
		current = e.accessors
	}

	// Scenario: with MaxConcurrentAccessors already-active accessors, the
	// next arrival is the one that gets rejected (so exactly
	// MaxConcurrentAccessors requests can be in flight for one path at
	// once, matching spec.md's "5001st of 5001 concurrent requests" case).
	if current >= s.MaxConcurrentAccessors {
		return 0, errs.Unavailable(path, current)
	}

	if !ok {
		e = &pathEntry{}
		s.entries[path] = e
	}

	ordinal = e.accessors
	e.accessors++

	s.updateAccessorGauge()

	return ordinal, nil
}

// Leave applies the deliberate hysteresis hold (spec §4.4: "a deliberate
// soft hysteresis that keeps the cache slot and counter live briefly
// after the last client leaves"), then decrements the accessor count.
// Once the count reaches zero, the entry's cached bytes (if any) are
// released from the cache budget and the entry is removed. The sleep
// blocks only this worker, never the shared-state lock.
func (s *SharedState) Leave(path string) {
	time.Sleep(s.HysteresisHold)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[path]
	if !ok {
		return
	}

	if e.accessors > 0 {
		e.accessors--
	}

	if e.accessors == 0 {
		if e.cache != nil {
			s.cacheBytesInUse -= int64(len(e.cache))
		}
		delete(s.entries, path)
	}

	s.updateAccessorGauge()
	s.updateCacheGauge()
}

// GetCache returns the cached bytes for path, if any.
func (s *SharedState) GetCache(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[path]
	if !ok || e.cache == nil {
		return nil, false
	}

	return e.cache, true
}

// TrySetCache installs data as the cached response for path if the cache
// policy (spec §4.4) allows it:
//  1. ordinal == 1 (a second concurrent viewer has arrived),
//  2. len(data) < MaxCacheFileSize,
//  3. installing it keeps cacheBytesInUse below MaxCacheSize.
// It reports whether the install happened. The policy check and mutation
// happen under the same lock, so at most one concurrent first-time
// install for a path ever raises cacheBytesInUse.
func (s *SharedState) TrySetCache(path string, ordinal int, data []byte) bool {
	if ordinal != 1 {
		return false
	}

	if int64(len(data)) >= s.MaxCacheFileSize {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[path]
	if !ok {
		return false
	}

	if e.cache != nil {
		return false
	}

	if s.cacheBytesInUse+int64(len(data)) >= s.MaxCacheSize {
		return false
	}

	e.cache = data
	s.cacheBytesInUse += int64(len(data))

	s.updateCacheGauge()
	if s.Metrics != nil {
		s.Metrics.CacheInstallsTotal.Inc()
	}

	return true
}

// CacheBytesInUse reports the current global cache budget usage.
func (s *SharedState) CacheBytesInUse() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cacheBytesInUse
}

// AccessorsInFlight reports the sum of every path's live accessor count.
func (s *SharedState) AccessorsInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, e := range s.entries {
		total += e.accessors
	}

	return total
}

// updateAccessorGauge and updateCacheGauge must be called with s.mu held.
func (s *SharedState) updateAccessorGauge() {
	if s.Metrics == nil {
		return
	}

	total := 0
	for _, e := range s.entries {
		total += e.accessors
	}

	s.Metrics.AccessorsInFlight.Set(int64(total))
}

func (s *SharedState) updateCacheGauge() {
	if s.Metrics == nil {
		return
	}

	s.Metrics.CacheBytesInUse.Set(s.cacheBytesInUse)
}
