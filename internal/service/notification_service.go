package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
	"linkara.id/linkaraconnect/internal/model"
	"linkara.id/linkaraconnect/internal/realtime"
	"linkara.id/linkaraconnect/internal/repository"
	"linkara.id/linkaraconnect/pkg/apperror"
)

// LivePusher is the hub surface the lifecycle manager needs: push an
// event into a recipient's inbox if they are currently reachable.
type LivePusher interface {
	DeliverToUser(userID uuid.UUID, event realtime.Event) bool
}

type NotificationService interface {
	Create(ctx context.Context, notification *model.Notification) error
	GetNotifications(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]model.Notification, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, recipientID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID, types []model.NotificationType) error
	ResolveAction(ctx context.Context, recipientID, id uuid.UUID, actionKind string) (*model.Notification, error)
	Delete(ctx context.Context, recipientID, id uuid.UUID) error
	// PushLive delivers an already-persisted record through the live
	// path without re-persisting it. Used by the admin broadcast
	// endpoints.
	PushLive(notification *model.Notification) bool
	// Reap runs the two independent sweep predicates: past-expiry
	// records unconditionally, and read records older than the
	// retention window.
	Reap(ctx context.Context) error
}

type notificationService struct {
	repo        repository.NotificationRepository
	connections repository.ConnectionRepository
	pusher      LivePusher
	sanitizer   *bluemonday.Policy
	retention   time.Duration
}

func NewNotificationService(repo repository.NotificationRepository, connections repository.ConnectionRepository, pusher LivePusher, retention time.Duration) NotificationService {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &notificationService{
		repo:        repo,
		connections: connections,
		pusher:      pusher,
		sanitizer:   bluemonday.StrictPolicy(),
		retention:   retention,
	}
}

// Create validates, derives group key and expiry, persists, then
// attempts best-effort live delivery. The durable write must succeed
// before any delivery attempt; delivery failure is non-fatal.
func (s *notificationService) Create(ctx context.Context, notification *model.Notification) error {
	notification.Title = s.sanitizer.Sanitize(notification.Title)
	notification.Message = s.sanitizer.Sanitize(notification.Message)

	if err := notification.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrInvalidInput, err)
	}

	now := time.Now()
	if notification.GroupKey == "" {
		notification.GroupKey = notification.DeriveGroupKey()
	}
	if notification.ExpiresAt.IsZero() {
		notification.ExpiresAt = model.DefaultExpiry(notification.Type, now)
	}
	if notification.Priority == "" {
		notification.Priority = model.PriorityMedium
	}
	if notification.Channel == "" {
		notification.Channel = model.ChannelInApp
	}
	notification.DeliveryStatus = model.DeliveryPending

	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrPersistenceFailed, err)
	}

	// Durable write happens-before the delivery attempt, never the
	// reverse.
	s.PushLive(notification)
	return nil
}

func (s *notificationService) PushLive(notification *model.Notification) bool {
	if s.pusher == nil {
		return false
	}
	delivered := s.pusher.DeliverToUser(notification.RecipientID, realtime.NewEvent(realtime.EventNotification, notification))
	if delivered {
		notification.DeliveryStatus = model.DeliverySent
	} else {
		log.Printf("[notification] live delivery skipped for %s (recipient %s not reachable)",
			notification.ID, notification.RecipientID)
	}
	return delivered
}

func (s *notificationService) GetNotifications(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.GetByRecipient(ctx, recipientID, limit, offset)
}

func (s *notificationService) GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrNotFound
	}
	return notification, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, recipientID)
}

func (s *notificationService) MarkRead(ctx context.Context, recipientID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, recipientID, id)
}

func (s *notificationService) MarkAllRead(ctx context.Context, recipientID uuid.UUID, types []model.NotificationType) error {
	return s.repo.MarkAllRead(ctx, recipientID, types)
}

// ResolveAction dispatches an actionable notification to the entity it
// references, then records the action and marks the record read. The
// entity mutation is conditional on its own state, so a repeated call
// succeeds idempotently without double-mutating.
func (s *notificationService) ResolveAction(ctx context.Context, recipientID, id uuid.UUID, actionKind string) (*model.Notification, error) {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrNotFound
	}
	if notification.RecipientID != recipientID {
		return nil, apperror.ErrForbidden
	}
	if !notification.ActionRequired {
		return nil, fmt.Errorf("%w: notification does not require an action", apperror.ErrBadRequest)
	}
	if !notification.Actions.Contains(actionKind) {
		return nil, fmt.Errorf("%w: action %q not declared", apperror.ErrBadRequest, actionKind)
	}

	if err := s.applyAction(ctx, notification, actionKind); err != nil {
		return nil, err
	}

	if err := s.repo.RecordAction(ctx, notification.ID, actionKind); err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrPersistenceFailed, err)
	}

	now := time.Now()
	notification.ActionTaken = &actionKind
	notification.IsRead = true
	notification.ReadAt = &now
	return notification, nil
}

func (s *notificationService) applyAction(ctx context.Context, notification *model.Notification, actionKind string) error {
	switch notification.Type {
	case model.NotificationTypeConnectionRequest:
		if notification.RelatedConnectionID == nil {
			return nil
		}
		edge, err := s.connections.FindByID(ctx, *notification.RelatedConnectionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Edge removed since the notification was created;
				// the action still resolves against the notification.
				return nil
			}
			return fmt.Errorf("%w: %v", apperror.ErrPersistenceFailed, err)
		}
		// Only a still-pending edge transitions; already-resolved
		// edges are left untouched and the call succeeds.
		if edge.Status != model.ConnectionStatusPending {
			return nil
		}
		var next model.ConnectionStatus
		switch actionKind {
		case "accept":
			next = model.ConnectionStatusAccepted
		case "decline":
			next = model.ConnectionStatusDeclined
		default:
			return nil
		}
		if err := s.connections.UpdateStatus(ctx, edge.ID, next); err != nil {
			return fmt.Errorf("%w: %v", apperror.ErrPersistenceFailed, err)
		}
		return nil
	default:
		// Other actionable types (e.g. view targets) carry no entity
		// mutation; resolving them is a notification-local operation.
		return nil
	}
}

func (s *notificationService) Delete(ctx context.Context, recipientID, id uuid.UUID) error {
	return s.repo.Delete(ctx, recipientID, id)
}

func (s *notificationService) Reap(ctx context.Context) error {
	now := time.Now()

	expired, err := s.repo.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("reap expired: %w", err)
	}

	stale, err := s.repo.DeleteReadBefore(ctx, now.Add(-s.retention))
	if err != nil {
		return fmt.Errorf("reap read: %w", err)
	}

	if expired > 0 || stale > 0 {
		log.Printf("[notification] reaped %d expired and %d stale read notifications", expired, stale)
	}
	return nil
}
