// Package flood limits how many downloads a single client may request per minute.
package flood

import (
	"sync"
	"time"
)

const (
	// windowDuration is the fixed sliding window (always 1 minute)
	windowDuration = 60 * time.Second
	// cleanupInterval is how often expired entries are dropped
	cleanupInterval = 10 * time.Minute
	// idleTimeout is how long before an idle client entry is removed
	idleTimeout = 10 * time.Minute
)

// Floodgate is a per-client sliding window rate limiter. A limit of zero or less
// disables limiting.
type Floodgate struct {
	limitPerMinute int
	entries        map[string]*clientEntry
	mutex          sync.Mutex
	now            func() time.Time
	stopCleanup    chan struct{}
	stopOnce       sync.Once
}

// clientEntry tracks request timestamps for one client
type clientEntry struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// RetryAfter is how long until the oldest request leaves the window; zero when allowed.
	RetryAfter time.Duration
}

// New creates a Floodgate and starts its background cleanup.
func New(limitPerMinute int) *Floodgate {
	fg := &Floodgate{
		limitPerMinute: limitPerMinute,
		entries:        make(map[string]*clientEntry),
		now:            time.Now,
		stopCleanup:    make(chan struct{}),
	}

	go fg.cleanup()

	return fg
}

// Stop stops the background cleanup goroutine. It is safe to call more than once.
func (fg *Floodgate) Stop() {
	fg.stopOnce.Do(func() {
		close(fg.stopCleanup)
	})
}

// Allow records a request from clientID and reports whether it fits in the window.
// Rejected requests are not counted.
func (fg *Floodgate) Allow(clientID string) Decision {
	if fg.limitPerMinute <= 0 {
		return Decision{Allowed: true}
	}

	now := fg.now()

	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	entry, exists := fg.entries[clientID]
	if !exists {
		entry = &clientEntry{
			timestamps: make([]time.Time, 0, fg.limitPerMinute+1),
		}
		fg.entries[clientID] = entry
	}
	entry.lastSeen = now

	windowStart := now.Add(-windowDuration)
	valid := entry.timestamps[:0] // Reuse slice capacity
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	entry.timestamps = valid

	if len(entry.timestamps) >= fg.limitPerMinute {
		return Decision{RetryAfter: entry.timestamps[0].Add(windowDuration).Sub(now)}
	}

	entry.timestamps = append(entry.timestamps, now)
	return Decision{Allowed: true}
}

func (fg *Floodgate) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fg.performCleanup()
		case <-fg.stopCleanup:
			return
		}
	}
}

// performCleanup removes entries that have been idle for too long
func (fg *Floodgate) performCleanup() {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	cutoff := fg.now().Add(-idleTimeout)
	for key, entry := range fg.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(fg.entries, key)
		}
	}
}

// GetStats returns statistics about the floodgate for monitoring/debugging
func (fg *Floodgate) GetStats() Stats {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	return Stats{
		ActiveClients:  len(fg.entries),
		LimitPerMinute: fg.limitPerMinute,
		WindowSeconds:  int(windowDuration.Seconds()),
	}
}

// Stats contains floodgate statistics
type Stats struct {
	ActiveClients  int `json:"active_clients"`
	LimitPerMinute int `json:"limit_per_minute"`
	WindowSeconds  int `json:"window_seconds"`
}
