package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTypeConnectionRequest  NotificationType = "connection_request"
	NotificationTypeConnectionAccepted NotificationType = "connection_accepted"
	NotificationTypePostLike           NotificationType = "post_like"
	NotificationTypePostComment        NotificationType = "post_comment"
	NotificationTypeJobApplication     NotificationType = "job_application"
	NotificationTypeJobRecommendation  NotificationType = "job_recommendation"
	NotificationTypeEventReminder      NotificationType = "event_reminder"
	NotificationTypeMessage            NotificationType = "message"
	NotificationTypeSystem             NotificationType = "system"
)

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

type NotificationChannel string

const (
	ChannelInApp NotificationChannel = "in_app"
	ChannelEmail NotificationChannel = "email"
	ChannelPush  NotificationChannel = "push"
	ChannelSMS   NotificationChannel = "sms"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryBounced   DeliveryStatus = "bounced"
)

// NotificationAction is a user-facing action attached to an actionable
// notification (e.g. accept / decline on a connection request).
type NotificationAction struct {
	Label      string `json:"label"`
	ActionKind string `json:"action_kind"`
	TargetURL  string `json:"target_url,omitempty"`
}

// ActionList is stored as a jsonb column.
type ActionList []NotificationAction

func (a ActionList) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *ActionList) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported type for ActionList: %T", src)
	}
}

// Contains reports whether the list declares the given action kind.
func (a ActionList) Contains(kind string) bool {
	for _, action := range a {
		if action.ActionKind == kind {
			return true
		}
	}
	return false
}

type Notification struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID  `gorm:"type:uuid;not null;index" json:"recipient_id"`
	SenderID    *uuid.UUID `gorm:"type:uuid" json:"sender_id,omitempty"`

	Type    NotificationType `gorm:"size:50;not null" json:"type"`
	Title   string           `gorm:"size:200;not null" json:"title"`
	Message string           `gorm:"type:text;not null" json:"message"`

	// At most one related entity reference is set.
	RelatedPostID       *uuid.UUID `gorm:"type:uuid" json:"related_post_id,omitempty"`
	RelatedJobID        *uuid.UUID `gorm:"type:uuid" json:"related_job_id,omitempty"`
	RelatedConnectionID *uuid.UUID `gorm:"type:uuid" json:"related_connection_id,omitempty"`

	IsRead    bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	IsDeleted bool       `gorm:"default:false" json:"is_deleted"`

	Priority       NotificationPriority `gorm:"size:20;default:medium" json:"priority"`
	ActionRequired bool                 `gorm:"default:false" json:"action_required"`
	Actions        ActionList           `gorm:"type:jsonb" json:"actions"`
	ActionTaken    *string              `gorm:"size:50" json:"action_taken,omitempty"`

	Channel        NotificationChannel `gorm:"size:20;default:in_app" json:"channel"`
	DeliveryStatus DeliveryStatus      `gorm:"size:20;default:pending" json:"delivery_status"`

	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	GroupKey  string    `gorm:"size:120;index" json:"group_key"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// DeriveGroupKey computes the display-grouping key for a notification.
// Priority order: related post > related job > (sender, type) pair >
// a system-wide key for the type. Derived once at creation and never
// recomputed.
func (n *Notification) DeriveGroupKey() string {
	switch {
	case n.RelatedPostID != nil:
		return fmt.Sprintf("post:%s", n.RelatedPostID)
	case n.RelatedJobID != nil:
		return fmt.Sprintf("job:%s", n.RelatedJobID)
	case n.SenderID != nil:
		return fmt.Sprintf("%s:%s", n.SenderID, n.Type)
	default:
		return fmt.Sprintf("system:%s", n.Type)
	}
}

// expiryDefaults maps notification types to their time-to-live when no
// explicit expiry was supplied at creation.
var expiryDefaults = map[NotificationType]time.Duration{
	NotificationTypeConnectionRequest: 30 * 24 * time.Hour,
	NotificationTypeJobRecommendation: 7 * 24 * time.Hour,
	NotificationTypeEventReminder:     24 * time.Hour,
}

const defaultExpiry = 7 * 24 * time.Hour

// DefaultExpiry returns the expiry deadline for the given type,
// measured from now.
func DefaultExpiry(t NotificationType, now time.Time) time.Time {
	if ttl, ok := expiryDefaults[t]; ok {
		return now.Add(ttl)
	}
	return now.Add(defaultExpiry)
}

// Validate checks the creation-time invariants of a notification.
func (n *Notification) Validate() error {
	if n.RecipientID == uuid.Nil {
		return errors.New("recipient is required")
	}
	if n.Type == "" {
		return errors.New("type is required")
	}
	if n.Title == "" {
		return errors.New("title is required")
	}
	if n.Message == "" {
		return errors.New("message is required")
	}
	if n.ActionRequired && len(n.Actions) == 0 {
		return errors.New("action_required notifications must declare at least one action")
	}
	return nil
}
