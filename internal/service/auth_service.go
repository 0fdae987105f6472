package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"linkara.id/linkaraconnect/internal/model"
	"linkara.id/linkaraconnect/internal/repository"
	"linkara.id/linkaraconnect/pkg/apperror"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, *model.User, error)
}

type authService struct {
	users    repository.UserRepository
	secret   string
	tokenTTL time.Duration
}

func NewAuthService(users repository.UserRepository, secret string, tokenTTL time.Duration) AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &authService{users: users, secret: secret, tokenTTL: tokenTTL}
}

// Login verifies credentials and issues the HMAC token shared with the
// websocket authenticator.
func (s *authService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, apperror.ErrUnauthorized
	}
	if !user.IsActive {
		return "", nil, apperror.ErrForbidden
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperror.ErrUnauthorized
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
	if err != nil {
		return "", nil, apperror.ErrInternal
	}

	return token, user, nil
}
