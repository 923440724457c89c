package cache

import (
	"context"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/fibersurvey/server/internal/lib/survey"
	"github.com/dpup/fibersurvey/server/internal/lib/timeline"
)

// LoadedSurvey is a trajectory together with the indexes derived from it.
// The three values are built together and never mutated afterwards.
type LoadedSurvey struct {
	Trajectory survey.Trajectory
	Track      *survey.Track
	Index      *timeline.Index
}

// NewLoadedSurvey builds the track and temporal index for a trajectory
func NewLoadedSurvey(t survey.Trajectory, precision int) *LoadedSurvey {
	return &LoadedSurvey{
		Trajectory: t,
		Track:      survey.NewTrack(t, precision),
		Index:      timeline.Build(t),
	}
}

// Cache provides thread-safe in-memory caching of loaded surveys with TTL
type Cache struct {
	entries map[string]*CacheEntry
	mutex   sync.RWMutex
	now     func() time.Time
}

// CacheEntry represents a cached survey with metadata
type CacheEntry struct {
	Key       string
	Survey    *LoadedSurvey
	CreatedAt time.Time
	ExpiresAt time.Time
	Source    string
}

// NewCache creates a new in-memory cache
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*CacheEntry),
		now:     time.Now,
	}
}

// Set stores a survey with the given TTL
func (c *Cache) Set(key string, s *LoadedSurvey, ttl time.Duration, source string) {
	now := c.now()
	entry := &CacheEntry{
		Key:       key,
		Survey:    s,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Source:    source,
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = entry
}

// Get retrieves a survey from cache if not stale
func (c *Cache) Get(key string) (*LoadedSurvey, bool) {
	c.mutex.RLock()
	entry, exists := c.entries[key]
	c.mutex.RUnlock()

	if !exists || c.now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Survey, true
}

// GetWithMetadata retrieves the entry even when it is stale
func (c *Cache) GetWithMetadata(key string) (*CacheEntry, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[key]
	return entry, exists
}

// IsStale checks if cache entry is stale (past expiration)
func (c *Cache) IsStale(key string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return true
	}
	return c.now().After(entry.ExpiresAt)
}

// Delete removes an entry from cache
func (c *Cache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, key)
}

// Clear removes all entries from cache
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*CacheEntry)
}

// Keys returns all cache keys in sorted order
func (c *Cache) Keys() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := c.now()
	stats := CacheStats{
		TotalEntries: len(c.entries),
	}

	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			stats.StaleEntries++
		} else {
			stats.FreshEntries++
		}

		if stats.OldestEntry.IsZero() || entry.CreatedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = entry.CreatedAt
		}
		if entry.CreatedAt.After(stats.NewestEntry) {
			stats.NewestEntry = entry.CreatedAt
		}
	}

	return stats
}

// CleanupStale removes all stale entries from cache
func (c *Cache) CleanupStale() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	var removed int

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}

	return removed
}

// StartPeriodicCleanup starts a goroutine that periodically cleans up stale
// entries until ctx is cancelled. The returned channel is closed once the
// goroutine has exited.
func (c *Cache) StartPeriodicCleanup(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() {
			// Recover from any panics in the cache cleanup goroutine
			if r := recover(); r != nil {
				err, _ := errors.ParseStack(debug.Stack())
				skipFrames := 3
				numFrames := 5
				logging.Errorw(ctx, "Cache cleanup: recovered from panic",
					"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.CleanupStale(); removed > 0 {
					logging.Debugw(ctx, "Cache cleanup: removed stale surveys", "removed", removed)
				}
			}
		}
	}()

	return done
}

// CacheStats provides cache usage statistics
type CacheStats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
	OldestEntry  time.Time
	NewestEntry  time.Time
}
