package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusBusy    PresenceStatus = "busy"
	StatusOffline PresenceStatus = "offline"
)

// ValidPresenceStatus reports whether s is a settable status. offline
// is reserved for the disconnect path.
func ValidPresenceStatus(s string) bool {
	switch PresenceStatus(s) {
	case StatusOnline, StatusAway, StatusBusy:
		return true
	}
	return false
}

// PresenceEntry tracks a single live channel for a user. Process-local
// and never persisted; exactly one entry per user at a time.
type PresenceEntry struct {
	UserID     uuid.UUID
	Client     *Client
	Status     PresenceStatus
	LastSeenAt time.Time
}

// PresenceInfo is the read-only view handed to callers outside the
// registry.
type PresenceInfo struct {
	UserID     uuid.UUID      `json:"user_id"`
	Status     PresenceStatus `json:"status"`
	LastSeenAt time.Time      `json:"last_seen_at"`
}

// Registry is the single source of truth for "is this user currently
// reachable". Pure in-memory structure; no method blocks or performs
// I/O.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*PresenceEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]*PresenceEntry)}
}

// Register upserts the entry for userID, initializing status to
// online. A second channel for the same user replaces the first;
// the displaced client is returned so the caller can close it.
// LastSeenAt always advances monotonically.
func (r *Registry) Register(userID uuid.UUID, client *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	var displaced *Client
	now := time.Now()
	if prev, ok := r.entries[userID]; ok {
		displaced = prev.Client
		if now.Before(prev.LastSeenAt) {
			now = prev.LastSeenAt
		}
	}
	r.entries[userID] = &PresenceEntry{
		UserID:     userID,
		Client:     client,
		Status:     StatusOnline,
		LastSeenAt: now,
	}
	return displaced
}

// Unregister removes the entry for userID. Idempotent. When client is
// non-nil the entry is only removed if it still belongs to that
// channel, so a stale disconnect cannot evict a newer session.
// Returns true if an entry was removed.
func (r *Registry) Unregister(userID uuid.UUID, client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userID]
	if !ok {
		return false
	}
	if client != nil && entry.Client != client {
		return false
	}
	delete(r.entries, userID)
	return true
}

// SetStatus mutates status and last-seen for an existing entry; no-op
// when the user is not registered. Returns true if applied.
func (r *Registry) SetStatus(userID uuid.UUID, status PresenceStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userID]
	if !ok {
		return false
	}
	entry.Status = status
	entry.LastSeenAt = time.Now()
	return true
}

// Touch advances last-seen for an existing entry.
func (r *Registry) Touch(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[userID]; ok {
		entry.LastSeenAt = time.Now()
	}
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[userID]
	return ok
}

// Lookup returns the live channel handle for userID, if any.
func (r *Registry) Lookup(userID uuid.UUID) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return entry.Client, true
}

// Status returns the presence view for userID; status offline when no
// entry exists.
func (r *Registry) Status(userID uuid.UUID) PresenceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.entries[userID]; ok {
		return PresenceInfo{UserID: entry.UserID, Status: entry.Status, LastSeenAt: entry.LastSeenAt}
	}
	return PresenceInfo{UserID: userID, Status: StatusOffline}
}

// Snapshot returns a consistent copy of all live entries, for fan-out
// and the presence REST surface. Safe to iterate without holding the
// registry lock.
func (r *Registry) Snapshot() []PresenceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]PresenceInfo, 0, len(r.entries))
	for _, entry := range r.entries {
		infos = append(infos, PresenceInfo{
			UserID:     entry.UserID,
			Status:     entry.Status,
			LastSeenAt: entry.LastSeenAt,
		})
	}
	return infos
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
