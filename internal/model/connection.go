package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConnectionStatus string

const (
	ConnectionStatusPending  ConnectionStatus = "pending"
	ConnectionStatusAccepted ConnectionStatus = "accepted"
	ConnectionStatusDeclined ConnectionStatus = "declined"
	ConnectionStatusBlocked  ConnectionStatus = "blocked"
)

// Connection is an edge in the social graph. At most one edge exists
// per unordered user pair; acceptance is undirected, so either side's
// id can be used to resolve the other party.
type Connection struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_connection_pair" json:"requester_id"`
	RecipientID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_connection_pair" json:"recipient_id"`
	Status      ConnectionStatus `gorm:"size:20;not null;default:pending" json:"status"`
	Message     *string          `gorm:"size:300" json:"message,omitempty"`
	RespondedAt *time.Time       `json:"responded_at,omitempty"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`

	Requester *User `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Recipient *User `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
}

func (c *Connection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// PeerOf returns the other party of the edge relative to userID.
func (c *Connection) PeerOf(userID uuid.UUID) uuid.UUID {
	if c.RequesterID == userID {
		return c.RecipientID
	}
	return c.RequesterID
}
