package circadian

import (
	"sync"
	"time"
)

// Requesters of a forced refresh
const (
	requesterMQTT = "mqtt"
	requesterAPI  = "api"
)

// refreshLimiter throttles forced refreshes per requester
type refreshLimiter struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     map[string]time.Time
}

func newRefreshLimiter(cooldown time.Duration) *refreshLimiter {
	return &refreshLimiter{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
	}
}

// Allow records a refresh for requester at now unless one was allowed within
// the cooldown. A zero cooldown allows everything
func (l *refreshLimiter) Allow(requester string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.last[requester]; ok && now.Sub(last) < l.cooldown {
		return false
	}

	l.last[requester] = now
	return true
}

// Wait returns how long requester must wait before the next allowed refresh
func (l *refreshLimiter) Wait(requester string, now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.last[requester]
	if !ok {
		return 0
	}
	if d := l.cooldown - now.Sub(last); d > 0 {
		return d
	}
	return 0
}
