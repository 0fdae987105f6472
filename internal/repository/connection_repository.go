package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"linkara.id/linkaraconnect/internal/model"
)

type ConnectionRepository interface {
	Create(ctx context.Context, conn *model.Connection) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Connection, error)
	// FindBetween resolves the single edge for an unordered user pair.
	FindBetween(ctx context.Context, a, b uuid.UUID) (*model.Connection, error)
	// FindAcceptedEdges returns every accepted edge touching userID,
	// regardless of which side the user is on.
	FindAcceptedEdges(ctx context.Context, userID uuid.UUID) ([]model.Connection, error)
	FindPendingFor(ctx context.Context, recipientID uuid.UUID) ([]model.Connection, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ConnectionStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type connectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Create(ctx context.Context, conn *model.Connection) error {
	return r.db.WithContext(ctx).Create(conn).Error
}

func (r *connectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Connection, error) {
	var conn model.Connection
	if err := r.db.WithContext(ctx).First(&conn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) FindBetween(ctx context.Context, a, b uuid.UUID) (*model.Connection, error) {
	var conn model.Connection
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?)", a, b, b, a).
		First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) FindAcceptedEdges(ctx context.Context, userID uuid.UUID) ([]model.Connection, error) {
	var conns []model.Connection
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? OR recipient_id = ?) AND status = ?", userID, userID, model.ConnectionStatusAccepted).
		Find(&conns).Error
	return conns, err
}

func (r *connectionRepository) FindPendingFor(ctx context.Context, recipientID uuid.UUID) ([]model.Connection, error) {
	var conns []model.Connection
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND status = ?", recipientID, model.ConnectionStatusPending).
		Order("created_at desc").
		Preload("Requester", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "username", "headline", "avatar_url")
		}).
		Find(&conns).Error
	return conns, err
}

func (r *connectionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ConnectionStatus) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.Connection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "responded_at": &now}).Error
}

func (r *connectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Connection{}, "id = ?", id).Error
}
