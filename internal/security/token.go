package security

import (
	"errors"
	"time"

	"lab-inventory-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrWrongTokenType = errors.New("wrong token type for this endpoint")
)

type TokenType string

const TokenTypeAccess TokenType = "access"

// UserClaims defines the claims carried by an access token.
type UserClaims struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email,omitempty"`
	Role   domain.Role `json:"role"`
	Type   TokenType   `json:"type"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the caller identity used by the services.
func (c *UserClaims) Actor() domain.Actor {
	return domain.Actor{UserID: c.UserID, Role: c.Role}
}

type TokenManager interface {
	GenerateAccessToken(user *domain.User) (string, error)
	ValidateToken(tokenString string) (*UserClaims, error)
}

type tokenManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, expiry time.Duration) TokenManager {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &tokenManager{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

func (m *tokenManager) GenerateAccessToken(user *domain.User) (string, error) {
	now := m.now()
	claims := UserClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Type:   TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "lab-inventory",
			Audience:  jwt.ClaimStrings{"api-access"},
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *tokenManager) ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != TokenTypeAccess {
		return nil, ErrWrongTokenType
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
