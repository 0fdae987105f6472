package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"linkara.id/linkaraconnect/internal/model"
	"linkara.id/linkaraconnect/pkg/apperror"
)

// UserSource is the slice of the user store the authenticator needs.
type UserSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// Identity is the verified result of channel authentication.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

// Authenticator validates the bearer credential presented at
// channel-open time, using the same HMAC secret as the REST login
// flow. It never issues or refreshes credentials.
type Authenticator struct {
	secret  []byte
	users   UserSource
	timeout time.Duration
}

func NewAuthenticator(secret string, users UserSource, timeout time.Duration) *Authenticator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Authenticator{secret: []byte(secret), users: users, timeout: timeout}
}

// Authenticate verifies the credential and resolves it to an active
// user. Any failure (missing, malformed, expired, unknown or inactive
// user, lookup timeout) yields ErrAuthenticationFailed; the channel
// must never register.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, fmt.Errorf("%w: missing credential", apperror.ErrAuthenticationFailed)
	}

	token, err := jwt.ParseWithClaims(credential, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: invalid or expired token", apperror.ErrAuthenticationFailed)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: invalid token claims", apperror.ErrAuthenticationFailed)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: invalid subject", apperror.ErrAuthenticationFailed)
	}

	// The user lookup may hit a remote store; bound it so a slow
	// verification can never hold the accepting path indefinitely.
	lookupCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	user, err := a.users.FindByID(lookupCtx, userID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: user lookup failed", apperror.ErrAuthenticationFailed)
	}
	if !user.IsActive {
		return Identity{}, fmt.Errorf("%w: user inactive", apperror.ErrAuthenticationFailed)
	}

	return Identity{UserID: user.ID, Username: user.Username}, nil
}
