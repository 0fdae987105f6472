package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Inbound event types (client → server).
const (
	EventJoinTopic             = "join_topic"
	EventLeaveTopic            = "leave_topic"
	EventTypingStart           = "typing_start"
	EventTypingStop            = "typing_stop"
	EventStatusUpdate          = "status_update"
	EventMarkNotificationRead  = "mark_notification_read"
	EventPostReaction          = "post_reaction"
	EventPostComment           = "post_comment"
	EventConnectionRequestSent = "connection_request_sent"
	EventJobApplicationSent    = "job_application_sent"
)

// Outbound event types (server → client).
const (
	EventPresenceUpdate = "presence_update"
	EventNotification   = "notification"
	EventTopicEvent     = "topic_event"
	EventError          = "error"
)

// Event is the outbound envelope written to a channel.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

func NewEvent(eventType string, payload interface{}) Event {
	return Event{Type: eventType, Timestamp: time.Now().UTC(), Payload: payload}
}

// ClientEvent is the inbound envelope read from a channel. Payload is
// decoded lazily against the shape the event type requires.
type ClientEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PresenceUpdate is fanned out to a user's accepted connections on any
// presence change.
type PresenceUpdate struct {
	UserID    uuid.UUID      `json:"user_id"`
	Status    PresenceStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
}

// TopicEventPayload wraps events republished into an entity topic.
type TopicEventPayload struct {
	Kind    string      `json:"kind"`
	ID      string      `json:"id"`
	Event   string      `json:"event"`
	UserID  uuid.UUID   `json:"user_id"`
	Payload interface{} `json:"payload,omitempty"`
}

// ErrorPayload carries a stable machine-readable reason code back to
// the offending channel only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Inbound payload shapes.

type topicPayload struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type statusPayload struct {
	Status string `json:"status"`
}

type markReadPayload struct {
	ID uuid.UUID `json:"id"`
}

type reactionPayload struct {
	PostID   string `json:"post_id"`
	Reaction string `json:"reaction"`
}

type commentPayload struct {
	PostID  string `json:"post_id"`
	Preview string `json:"preview,omitempty"`
}

type signalPayload struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	JobID       string    `json:"job_id,omitempty"`
}
