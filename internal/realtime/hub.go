package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"linkara.id/linkaraconnect/pkg/apperror"
)

// Hub owns the registry, router, broadcaster and relay, and drives the
// connect/disconnect lifecycle of every channel. A single hub instance
// is the authoritative fan-out process; there is no cross-process
// registry sharing.
type Hub struct {
	auth        *Authenticator
	registry    *Registry
	router      *Router
	broadcaster *PresenceBroadcaster
	relay       *Relay
}

func NewHub(auth *Authenticator, edges ConnectionSource, notifications NotificationMarker, limiter RateLimiter) *Hub {
	registry := NewRegistry()
	router := NewRouter()
	broadcaster := NewPresenceBroadcaster(registry, router, edges)
	return &Hub{
		auth:        auth,
		registry:    registry,
		router:      router,
		broadcaster: broadcaster,
		relay:       NewRelay(registry, router, broadcaster, notifications, limiter),
	}
}

func (h *Hub) Registry() *Registry { return h.registry }
func (h *Hub) Router() *Router     { return h.router }

// Connect authenticates the credential, registers the channel and
// broadcasts the user online. A failed authentication never produces a
// registry entry. Any prior session for the same user is displaced and
// closed.
func (h *Hub) Connect(ctx context.Context, credential string, conn *websocket.Conn) (*Client, error) {
	identity, err := h.auth.Authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}

	client := NewClient(identity.UserID, conn)

	displaced := h.registry.Register(identity.UserID, client)
	if displaced != nil {
		h.router.LeaveAll(displaced)
		displaced.Close()
	}

	// Personal inbox is joined by identity, never by client request.
	h.router.Join(client, UserTopic(identity.UserID))

	// Fan-out runs outside the registry's critical section.
	go h.broadcaster.BroadcastStatus(ctx, identity.UserID, StatusOnline)

	log.Printf("[hub] user %s connected (session %s)", identity.UserID, client.ID)
	return client, nil
}

// Disconnect unregisters the channel and broadcasts offline. The entry
// is removed before the offline broadcast so a racing presence query
// can never observe a stale online state. Idempotent: a displaced
// session that was already evicted broadcasts nothing.
func (h *Hub) Disconnect(client *Client) {
	removed := h.registry.Unregister(client.UserID, client)
	h.router.LeaveAll(client)

	if removed {
		h.broadcaster.BroadcastStatus(context.Background(), client.UserID, StatusOffline)
		log.Printf("[hub] user %s disconnected (session %s)", client.UserID, client.ID)
	}
}

// HandleMessage decodes one inbound frame and dispatches it. Malformed
// payloads and invalid topics produce an error event on the offending
// channel only; the channel stays open.
func (h *Hub) HandleMessage(client *Client, raw []byte) {
	var event ClientEvent
	if err := json.Unmarshal(raw, &event); err != nil || event.Type == "" {
		h.sendError(client, fmt.Errorf("%w: invalid event envelope", apperror.ErrMalformedEvent))
		return
	}

	h.registry.Touch(client.UserID)

	if err := h.relay.Dispatch(context.Background(), client, event); err != nil {
		h.sendError(client, err)
	}
}

func (h *Hub) sendError(client *Client, err error) {
	code := apperror.ReasonCode(err)
	msg := err.Error()
	if errors.Is(err, apperror.ErrPersistenceFailed) {
		// Do not leak store internals to the socket.
		msg = apperror.ErrPersistenceFailed.Error()
	}
	client.SendEvent(NewEvent(EventError, ErrorPayload{Code: code, Message: msg}))
}

// DeliverToUser pushes an event into a user's personal inbox if they
// are currently reachable. Best-effort: returns false when the user
// has no live entry or the channel buffer is full.
func (h *Hub) DeliverToUser(userID uuid.UUID, event Event) bool {
	if _, online := h.registry.Lookup(userID); !online {
		return false
	}
	return h.router.Publish(UserTopic(userID), event, nil) > 0
}
