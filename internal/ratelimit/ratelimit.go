// Package ratelimit provides per-user sliding window rate limiting for the
// API endpoints. State is in-memory and resets on restart.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// cleanupInterval is how often idle entries are swept.
	cleanupInterval = 5 * time.Minute
	// idleTimeout is how long before an idle user entry is removed.
	idleTimeout = 1 * time.Hour
)

// Preset endpoint limits.
var (
	SpotifyPlaylist = Rule{Name: "spotify-playlist", Limit: 10, Window: 10 * time.Minute}
	ImportCreate    = Rule{Name: "import-create", Limit: 20, Window: time.Hour}
	ImportList      = Rule{Name: "import-list", Limit: 100, Window: 15 * time.Minute}
	SelectionSave   = Rule{Name: "selection-save", Limit: 50, Window: 15 * time.Minute}
)

// Rule is one endpoint's rate limit bucket configuration.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Result reports the outcome of a limiter check, carrying everything the HTTP
// layer needs for X-RateLimit-* and Retry-After headers.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter tracks request timestamps per rule and user in a sliding window.
type Limiter struct {
	entries     map[string]*userEntry // key: "rule:userID"
	mutex       sync.Mutex
	stopCleanup chan struct{}
	now         func() time.Time
}

type userEntry struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// New creates a Limiter and starts its background sweep of idle entries.
func New() *Limiter {
	l := &Limiter{
		entries:     make(map[string]*userEntry),
		stopCleanup: make(chan struct{}),
		now:         time.Now,
	}

	go l.cleanup()

	return l
}

// Stop stops the background cleanup goroutine.
func (l *Limiter) Stop() {
	close(l.stopCleanup)
}

// Check records one request against the rule's window for the user and
// reports whether it is allowed. A blocked request is not recorded, so
// hammering a closed limiter does not extend the wait.
func (l *Limiter) Check(rule Rule, userID string) Result {
	key := rule.Name + ":" + userID
	now := l.now()

	l.mutex.Lock()
	defer l.mutex.Unlock()

	entry, exists := l.entries[key]
	if !exists {
		entry = &userEntry{
			timestamps: make([]time.Time, 0, rule.Limit+1),
		}
		l.entries[key] = entry
	}
	entry.lastSeen = now

	// Drop timestamps outside the window, reusing the slice capacity.
	windowStart := now.Add(-rule.Window)
	valid := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	entry.timestamps = valid

	if len(entry.timestamps) >= rule.Limit {
		resetAt := entry.timestamps[0].Add(rule.Window)
		retryAfter := resetAt.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfter,
		}
	}

	entry.timestamps = append(entry.timestamps, now)

	return Result{
		Allowed:   true,
		Remaining: rule.Limit - len(entry.timestamps),
		ResetAt:   now.Add(rule.Window),
	}
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) sweep() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	cutoff := l.now().Add(-idleTimeout)
	for key, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}
