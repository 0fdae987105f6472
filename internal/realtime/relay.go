package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"linkara.id/linkaraconnect/pkg/apperror"
)

// NotificationMarker is the slice of the notification store the relay
// needs for mark_notification_read events.
type NotificationMarker interface {
	MarkRead(ctx context.Context, recipientID, id uuid.UUID) error
}

// RateLimiter guards notification-bearing signals against spam.
type RateLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID, action string) (bool, error)
}

// Relay validates and republishes client-originated events into their
// topic scopes. Notification creation stays with the REST write path;
// the relay only carries the ephemeral, immediate half of the dual
// write.
type Relay struct {
	registry      *Registry
	router        *Router
	broadcaster   *PresenceBroadcaster
	notifications NotificationMarker
	limiter       RateLimiter
}

func NewRelay(registry *Registry, router *Router, broadcaster *PresenceBroadcaster, notifications NotificationMarker, limiter RateLimiter) *Relay {
	return &Relay{
		registry:      registry,
		router:        router,
		broadcaster:   broadcaster,
		notifications: notifications,
		limiter:       limiter,
	}
}

// Dispatch handles one inbound event. Returned errors are delivered to
// the offending channel only; the channel stays open.
func (r *Relay) Dispatch(ctx context.Context, client *Client, event ClientEvent) error {
	switch event.Type {
	case EventJoinTopic:
		return r.handleJoin(client, event.Payload)
	case EventLeaveTopic:
		return r.handleLeave(client, event.Payload)
	case EventTypingStart, EventTypingStop:
		return r.handleTyping(client, event.Type, event.Payload)
	case EventStatusUpdate:
		return r.handleStatusUpdate(ctx, client, event.Payload)
	case EventMarkNotificationRead:
		return r.handleMarkRead(ctx, client, event.Payload)
	case EventPostReaction:
		return r.handleReaction(client, event.Payload)
	case EventPostComment:
		return r.handleComment(client, event.Payload)
	case EventConnectionRequestSent:
		return r.handleSignal(ctx, client, EventConnectionRequestSent, event.Payload)
	case EventJobApplicationSent:
		return r.handleSignal(ctx, client, EventJobApplicationSent, event.Payload)
	default:
		return fmt.Errorf("%w: unknown event type %q", apperror.ErrMalformedEvent, event.Type)
	}
}

func (r *Relay) handleJoin(client *Client, raw json.RawMessage) error {
	var p topicPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: %s payload", apperror.ErrMalformedEvent, EventJoinTopic)
	}
	topic, err := NewTopic(p.Kind, p.ID)
	if err != nil {
		return err
	}
	r.router.Join(client, topic)
	return nil
}

func (r *Relay) handleLeave(client *Client, raw json.RawMessage) error {
	var p topicPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: %s payload", apperror.ErrMalformedEvent, EventLeaveTopic)
	}
	topic, err := NewTopic(p.Kind, p.ID)
	if err != nil {
		// Leaving an unknown topic is harmless; stay idempotent.
		return nil
	}
	r.router.Leave(client, topic)
	return nil
}

// handleTyping republishes a typing indicator to the topic, with the
// sender suppressed.
func (r *Relay) handleTyping(client *Client, eventType string, raw json.RawMessage) error {
	var p topicPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: %s payload", apperror.ErrMalformedEvent, eventType)
	}
	topic, err := NewTopic(p.Kind, p.ID)
	if err != nil {
		return err
	}
	r.router.Publish(topic, NewEvent(EventTopicEvent, TopicEventPayload{
		Kind:   p.Kind,
		ID:     p.ID,
		Event:  eventType,
		UserID: client.UserID,
	}), client)
	return nil
}

func (r *Relay) handleStatusUpdate(ctx context.Context, client *Client, raw json.RawMessage) error {
	var p statusPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: %s payload", apperror.ErrMalformedEvent, EventStatusUpdate)
	}
	if !ValidPresenceStatus(p.Status) {
		return fmt.Errorf("%w: unknown status %q", apperror.ErrMalformedEvent, p.Status)
	}
	status := PresenceStatus(p.Status)
	if !r.registry.SetStatus(client.UserID, status) {
		return nil
	}
	r.broadcaster.BroadcastStatus(ctx, client.UserID, status)
	return nil
}

func (r *Relay) handleMarkRead(ctx context.Context, client *Client, raw json.RawMessage) error {
	var p markReadPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ID == uuid.Nil {
		return fmt.Errorf("%w: %s payload", apperror.ErrMalformedEvent, EventMarkNotificationRead)
	}
	if err := r.notifications.MarkRead(ctx, client.UserID, p.ID); err != nil {
		return fmt.Errorf("%w: mark read: %v", apperror.ErrPersistenceFailed, err)
	}
	return nil
}

// handleReaction republishes a reaction signal to the post's topic.
// The durable notification for the reaction is created by the REST
// write path, not here.
func (r *Relay) handleReaction(client *Client, raw json.RawMessage) error {
	var p reactionPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.PostID == "" || p.Reaction == "" {
		return fmt.Errorf("%w: %s payload", apperror.ErrMalformedEvent, EventPostReaction)
	}
	topic := Topic{Kind: TopicKindPost, ID: p.PostID}
	r.router.Publish(topic, NewEvent(EventTopicEvent, TopicEventPayload{
		Kind:    string(TopicKindPost),
		ID:      p.PostID,
		Event:   EventPostReaction,
		UserID:  client.UserID,
		Payload: p,
	}), client)
	return nil
}

func (r *Relay) handleComment(client *Client, raw json.RawMessage) error {
	var p commentPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.PostID == "" {
		return fmt.Errorf("%w: %s payload", apperror.ErrMalformedEvent, EventPostComment)
	}
	topic := Topic{Kind: TopicKindPost, ID: p.PostID}
	r.router.Publish(topic, NewEvent(EventTopicEvent, TopicEventPayload{
		Kind:    string(TopicKindPost),
		ID:      p.PostID,
		Event:   EventPostComment,
		UserID:  client.UserID,
		Payload: p,
	}), client)
	return nil
}

// handleSignal pushes an informational broadcast into the target
// user's inbox. It precedes, and is independent of, the durable
// notification the REST layer creates for the same action.
func (r *Relay) handleSignal(ctx context.Context, client *Client, eventType string, raw json.RawMessage) error {
	var p signalPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RecipientID == uuid.Nil {
		return fmt.Errorf("%w: %s payload", apperror.ErrMalformedEvent, eventType)
	}

	if r.limiter != nil {
		allowed, err := r.limiter.Allow(ctx, client.UserID, eventType)
		if err != nil {
			log.Printf("[relay] rate limit check failed for user %s: %v", client.UserID, err)
		} else if !allowed {
			return apperror.ErrRateLimitExceeded
		}
	}

	if _, online := r.registry.Lookup(p.RecipientID); !online {
		// Best-effort immediacy only; the durable record covers the
		// offline case.
		return nil
	}

	r.router.Publish(UserTopic(p.RecipientID), NewEvent(EventTopicEvent, TopicEventPayload{
		Kind:    string(TopicKindUser),
		ID:      p.RecipientID.String(),
		Event:   eventType,
		UserID:  client.UserID,
		Payload: p,
	}), nil)
	return nil
}
