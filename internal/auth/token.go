package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/umar/agency-chat/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the chat participant a session acts as.
type Identity struct {
	UserID   string            `json:"user_id"`
	UserType models.SenderType `json:"user_type"`
	Name     string            `json:"name"`
}

func (i Identity) Sender() models.Sender {
	return models.Sender{ID: i.UserID, Type: i.UserType, Name: i.Name}
}

// Key identifies the session across both sides; an agency and a freelancer
// may share the same raw user id.
func (i Identity) Key() string {
	return string(i.UserType) + ":" + i.UserID
}

type Claims struct {
	UserID   string `json:"user_id"`
	UserType string `json:"user_type"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{UserID: c.UserID, UserType: models.SenderType(c.UserType), Name: c.Name}
}

func GenerateToken(id Identity, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   id.UserID,
		UserType: string(id.UserType),
		Name:     id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Key(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" || !models.SenderType(claims.UserType).Valid() {
		return nil, fmt.Errorf("%w: missing identity", ErrInvalidToken)
	}
	return claims, nil
}
