// internal/storage/memory.go
package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

// DefaultTTL is how long a notification stays on the sign.
const DefaultTTL = 2 * time.Hour

// NotificationStore keeps pending notifications sorted newest first.
// Notifications with equal timestamps are ordered by insertion, latest first.
type NotificationStore struct {
	mu            sync.RWMutex
	notifications []data.Notification
	ttl           time.Duration
}

func NewNotificationStore(ttl time.Duration) *NotificationStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &NotificationStore{ttl: ttl}
}

// Add stores a new notification created at now and returns it.
func (s *NotificationStore) Add(text string, now time.Time) data.Notification {
	n := data.NewNotification(text, now)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Prepend, then stable-sort: an equal timestamp keeps the new entry in front.
	next := make([]data.Notification, 0, len(s.notifications)+1)
	next = append(next, n)
	next = append(next, s.notifications...)
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].CreatedAt.After(next[j].CreatedAt)
	})
	s.notifications = next
	return n
}

// Prune drops every notification whose age at now is at least the TTL
// and reports how many were removed. Survivors keep their order.
func (s *NotificationStore) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]data.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if n.Age(now) < s.ttl {
			kept = append(kept, n)
		}
	}
	removed := len(s.notifications) - len(kept)
	s.notifications = kept
	return removed
}

// Snapshot returns a copy of the notifications, newest first.
func (s *NotificationStore) Snapshot() []data.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]data.Notification, len(s.notifications))
	copy(result, s.notifications)
	return result
}

func (s *NotificationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notifications)
}

// TTL returns the configured notification lifetime.
func (s *NotificationStore) TTL() time.Duration {
	return s.ttl
}
