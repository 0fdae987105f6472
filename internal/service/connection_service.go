package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"linkara.id/linkaraconnect/internal/model"
	"linkara.id/linkaraconnect/internal/repository"
	"linkara.id/linkaraconnect/pkg/apperror"
)

type ConnectionService interface {
	SendRequest(ctx context.Context, requesterID, recipientID uuid.UUID, message *string) (*model.Connection, error)
	Respond(ctx context.Context, userID, connectionID uuid.UUID, accept bool) (*model.Connection, error)
	Remove(ctx context.Context, userID, connectionID uuid.UUID) error
	Block(ctx context.Context, userID, targetID uuid.UUID) error
	ListConnections(ctx context.Context, userID uuid.UUID) ([]model.Connection, error)
	ListPending(ctx context.Context, userID uuid.UUID) ([]model.Connection, error)
}

type connectionService struct {
	repo          repository.ConnectionRepository
	users         repository.UserRepository
	notifications NotificationService
}

func NewConnectionService(repo repository.ConnectionRepository, users repository.UserRepository, notifications NotificationService) ConnectionService {
	return &connectionService{repo: repo, users: users, notifications: notifications}
}

// SendRequest creates or revives the single edge for the pair, then
// creates the durable connection_request notification. The ephemeral
// socket signal for the same action travels separately through the
// relay; the two writes are intentionally independent.
func (s *connectionService) SendRequest(ctx context.Context, requesterID, recipientID uuid.UUID, message *string) (*model.Connection, error) {
	if requesterID == recipientID {
		return nil, fmt.Errorf("%w: cannot connect to yourself", apperror.ErrBadRequest)
	}

	recipient, err := s.users.FindByID(ctx, recipientID)
	if err != nil {
		return nil, apperror.ErrNotFound
	}
	requester, err := s.users.FindByID(ctx, requesterID)
	if err != nil {
		return nil, apperror.ErrNotFound
	}

	conn, err := s.repo.FindBetween(ctx, requesterID, recipientID)
	switch {
	case err == nil:
		switch conn.Status {
		case model.ConnectionStatusAccepted:
			return nil, fmt.Errorf("%w: already connected", apperror.ErrBadRequest)
		case model.ConnectionStatusPending:
			return nil, fmt.Errorf("%w: request already pending", apperror.ErrBadRequest)
		case model.ConnectionStatusBlocked:
			return nil, apperror.ErrForbidden
		case model.ConnectionStatusDeclined:
			// A declined pair may be re-requested; the single edge is
			// revived rather than duplicated.
			if err := s.repo.UpdateStatus(ctx, conn.ID, model.ConnectionStatusPending); err != nil {
				return nil, fmt.Errorf("%w: %v", apperror.ErrPersistenceFailed, err)
			}
			conn.Status = model.ConnectionStatusPending
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		conn = &model.Connection{
			RequesterID: requesterID,
			RecipientID: recipientID,
			Status:      model.ConnectionStatusPending,
			Message:     message,
		}
		if err := s.repo.Create(ctx, conn); err != nil {
			return nil, fmt.Errorf("%w: %v", apperror.ErrPersistenceFailed, err)
		}
	default:
		return nil, fmt.Errorf("%w: %v", apperror.ErrPersistenceFailed, err)
	}

	notification := &model.Notification{
		RecipientID:         recipient.ID,
		SenderID:            &requester.ID,
		Type:                model.NotificationTypeConnectionRequest,
		Title:               "New connection request",
		Message:             fmt.Sprintf("%s wants to connect with you", requester.Username),
		RelatedConnectionID: &conn.ID,
		Priority:            model.PriorityHigh,
		ActionRequired:      true,
		Actions: model.ActionList{
			{Label: "Accept", ActionKind: "accept"},
			{Label: "Decline", ActionKind: "decline"},
		},
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		return nil, err
	}

	return conn, nil
}

// Respond resolves a pending request addressed to userID.
func (s *connectionService) Respond(ctx context.Context, userID, connectionID uuid.UUID, accept bool) (*model.Connection, error) {
	conn, err := s.repo.FindByID(ctx, connectionID)
	if err != nil {
		return nil, apperror.ErrNotFound
	}
	if conn.RecipientID != userID {
		return nil, apperror.ErrForbidden
	}
	if conn.Status != model.ConnectionStatusPending {
		return nil, fmt.Errorf("%w: request already resolved", apperror.ErrBadRequest)
	}

	status := model.ConnectionStatusDeclined
	if accept {
		status = model.ConnectionStatusAccepted
	}
	if err := s.repo.UpdateStatus(ctx, conn.ID, status); err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrPersistenceFailed, err)
	}
	conn.Status = status
	now := time.Now()
	conn.RespondedAt = &now

	if accept {
		recipient, err := s.users.FindByID(ctx, userID)
		if err == nil {
			_ = s.notifications.Create(ctx, &model.Notification{
				RecipientID:         conn.RequesterID,
				SenderID:            &userID,
				Type:                model.NotificationTypeConnectionAccepted,
				Title:               "Connection accepted",
				Message:             fmt.Sprintf("%s accepted your connection request", recipient.Username),
				RelatedConnectionID: &conn.ID,
			})
		}
	}

	return conn, nil
}

func (s *connectionService) Remove(ctx context.Context, userID, connectionID uuid.UUID) error {
	conn, err := s.repo.FindByID(ctx, connectionID)
	if err != nil {
		return apperror.ErrNotFound
	}
	if conn.RequesterID != userID && conn.RecipientID != userID {
		return apperror.ErrForbidden
	}
	return s.repo.Delete(ctx, conn.ID)
}

func (s *connectionService) Block(ctx context.Context, userID, targetID uuid.UUID) error {
	conn, err := s.repo.FindBetween(ctx, userID, targetID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		conn = &model.Connection{
			RequesterID: userID,
			RecipientID: targetID,
			Status:      model.ConnectionStatusBlocked,
		}
		return s.repo.Create(ctx, conn)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrPersistenceFailed, err)
	}
	return s.repo.UpdateStatus(ctx, conn.ID, model.ConnectionStatusBlocked)
}

func (s *connectionService) ListConnections(ctx context.Context, userID uuid.UUID) ([]model.Connection, error) {
	return s.repo.FindAcceptedEdges(ctx, userID)
}

func (s *connectionService) ListPending(ctx context.Context, userID uuid.UUID) ([]model.Connection, error) {
	return s.repo.FindPendingFor(ctx, userID)
}
