package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"linkara.id/linkaraconnect/internal/model"
	"linkara.id/linkaraconnect/internal/realtime"
)

// In-memory stand-ins for the gorm repositories.

type memNotificationRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*model.Notification
	failing bool
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{records: make(map[uuid.UUID]*model.Notification)}
}

func (r *memNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return gorm.ErrInvalidTransaction
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	clone := *n
	r.records[n.ID] = &clone
	return nil
}

func (r *memNotificationRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.records[id]
	if !ok || n.IsDeleted {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *n
	return &clone, nil
}

func (r *memNotificationRepo) GetByRecipient(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.records {
		if n.RecipientID == recipientID && !n.IsDeleted {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *memNotificationRepo) FindUnread(ctx context.Context, recipientID uuid.UUID) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []model.Notification
	for _, n := range r.records {
		if n.RecipientID == recipientID && !n.IsRead && !n.IsDeleted && n.ExpiresAt.After(now) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *memNotificationRepo) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	unread, err := r.FindUnread(ctx, recipientID)
	return int64(len(unread)), err
}

func (r *memNotificationRepo) MarkRead(ctx context.Context, recipientID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.records[id]
	if !ok || n.RecipientID != recipientID || n.IsRead {
		return nil
	}
	now := time.Now()
	n.IsRead = true
	n.ReadAt = &now
	return nil
}

func (r *memNotificationRepo) MarkAllRead(ctx context.Context, recipientID uuid.UUID, types []model.NotificationType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, n := range r.records {
		if n.RecipientID != recipientID || n.IsRead {
			continue
		}
		if len(types) > 0 && !containsType(types, n.Type) {
			continue
		}
		n.IsRead = true
		readAt := now
		n.ReadAt = &readAt
	}
	return nil
}

func containsType(types []model.NotificationType, t model.NotificationType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func (r *memNotificationRepo) RecordAction(ctx context.Context, id uuid.UUID, actionKind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	n.ActionTaken = &actionKind
	n.IsRead = true
	n.ReadAt = &now
	return nil
}

func (r *memNotificationRepo) Delete(ctx context.Context, recipientID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.records[id]; ok && n.RecipientID == recipientID {
		n.IsDeleted = true
	}
	return nil
}

func (r *memNotificationRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, n := range r.records {
		if !n.ExpiresAt.After(now) {
			delete(r.records, id)
			count++
		}
	}
	return count, nil
}

func (r *memNotificationRepo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, n := range r.records {
		if n.IsRead && n.ReadAt != nil && n.ReadAt.Before(cutoff) {
			delete(r.records, id)
			count++
		}
	}
	return count, nil
}

type memConnectionRepo struct {
	mu    sync.Mutex
	edges map[uuid.UUID]*model.Connection
}

func newMemConnectionRepo() *memConnectionRepo {
	return &memConnectionRepo{edges: make(map[uuid.UUID]*model.Connection)}
}

func (r *memConnectionRepo) Create(ctx context.Context, conn *model.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	clone := *conn
	r.edges[conn.ID] = &clone
	return nil
}

func (r *memConnectionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.edges[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *conn
	return &clone, nil
}

func (r *memConnectionRepo) FindBetween(ctx context.Context, a, b uuid.UUID) (*model.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.edges {
		if (conn.RequesterID == a && conn.RecipientID == b) || (conn.RequesterID == b && conn.RecipientID == a) {
			clone := *conn
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memConnectionRepo) FindAcceptedEdges(ctx context.Context, userID uuid.UUID) ([]model.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Connection
	for _, conn := range r.edges {
		if conn.Status == model.ConnectionStatusAccepted && (conn.RequesterID == userID || conn.RecipientID == userID) {
			out = append(out, *conn)
		}
	}
	return out, nil
}

func (r *memConnectionRepo) FindPendingFor(ctx context.Context, recipientID uuid.UUID) ([]model.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Connection
	for _, conn := range r.edges {
		if conn.Status == model.ConnectionStatusPending && conn.RecipientID == recipientID {
			out = append(out, *conn)
		}
	}
	return out, nil
}

func (r *memConnectionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ConnectionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.edges[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	conn.Status = status
	conn.RespondedAt = &now
	return nil
}

func (r *memConnectionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.edges, id)
	return nil
}

type memUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newMemUserRepo(users ...*model.User) *memUserRepo {
	repo := &memUserRepo{users: make(map[uuid.UUID]*model.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *memUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if user, ok := r.users[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(r.users)), nil
}

// recordingPusher captures live-delivery attempts.
type recordingPusher struct {
	online    map[uuid.UUID]bool
	delivered []realtime.Event
}

func newRecordingPusher(onlineUsers ...uuid.UUID) *recordingPusher {
	online := make(map[uuid.UUID]bool)
	for _, id := range onlineUsers {
		online[id] = true
	}
	return &recordingPusher{online: online}
}

func (p *recordingPusher) DeliverToUser(userID uuid.UUID, event realtime.Event) bool {
	if !p.online[userID] {
		return false
	}
	p.delivered = append(p.delivered, event)
	return true
}
