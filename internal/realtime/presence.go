package realtime

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"linkara.id/linkaraconnect/internal/model"
)

// ConnectionSource resolves a user's social audience. Satisfied by the
// connection repository; the graph query is I/O-bound and always runs
// outside the registry's critical section.
type ConnectionSource interface {
	FindAcceptedEdges(ctx context.Context, userID uuid.UUID) ([]model.Connection, error)
}

// PresenceBroadcaster fans presence changes out to a user's accepted
// connections. Presence is "best current state": offline peers are
// skipped silently, nothing is queued or retried.
type PresenceBroadcaster struct {
	registry *Registry
	router   *Router
	edges    ConnectionSource
}

func NewPresenceBroadcaster(registry *Registry, router *Router, edges ConnectionSource) *PresenceBroadcaster {
	return &PresenceBroadcaster{registry: registry, router: router, edges: edges}
}

// BroadcastStatus resolves the acting user's audience and publishes a
// presence_update into each online peer's personal inbox. O(degree)
// per presence change; per-peer failures are swallowed so one bad
// channel never aborts the fan-out for the rest.
func (b *PresenceBroadcaster) BroadcastStatus(ctx context.Context, userID uuid.UUID, status PresenceStatus) {
	conns, err := b.edges.FindAcceptedEdges(ctx, userID)
	if err != nil {
		log.Printf("[presence] audience lookup failed for user %s: %v", userID, err)
		return
	}

	update := NewEvent(EventPresenceUpdate, PresenceUpdate{
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})

	for _, conn := range conns {
		peer := conn.PeerOf(userID)
		if _, online := b.registry.Lookup(peer); !online {
			continue
		}
		b.router.Publish(UserTopic(peer), update, nil)
	}
}
