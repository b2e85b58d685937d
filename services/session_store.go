package services

import (
	"context"
	"errors"

	"game-match-system/models"

	"gorm.io/gorm"
)

// SessionStore is the persistence boundary for live match sessions. The
// coordinator is the only writer; a missing row is reported as (nil, nil) so
// callers can branch on absence without unwrapping driver errors.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	GetByConnectionID(ctx context.Context, connID string) (*models.Session, error)
	GetByUserID(ctx context.Context, userID string) (*models.Session, error)
	Updates(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

// SessionService implements SessionStore on Postgres.
type SessionService struct {
	DB *gorm.DB
}

func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{DB: db}
}

func (s *SessionService) Create(ctx context.Context, session *models.Session) error {
	return s.DB.WithContext(ctx).Create(session).Error
}

func (s *SessionService) GetByID(ctx context.Context, id string) (*models.Session, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *SessionService) GetByConnectionID(ctx context.Context, connID string) (*models.Session, error) {
	if connID == "" {
		return nil, nil
	}
	return s.first(ctx, "connection_id = ?", connID)
}

func (s *SessionService) GetByUserID(ctx context.Context, userID string) (*models.Session, error) {
	if userID == "" {
		return nil, nil
	}
	return s.first(ctx, "user_id = ?", userID)
}

func (s *SessionService) first(ctx context.Context, query string, arg string) (*models.Session, error) {
	var session models.Session
	if err := s.DB.WithContext(ctx).First(&session, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (s *SessionService) Updates(ctx context.Context, id string, fields map[string]interface{}) error {
	return s.DB.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (s *SessionService) Delete(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Delete(&models.Session{}, "id = ?", id).Error
}
