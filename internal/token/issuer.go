package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are carried by every room token.
type Claims struct {
	Room               string `json:"room"`
	Username           string `json:"username"`
	Role               string `json:"role"`
	Type               string `json:"type,omitempty"`
	MediaConfiguration string `json:"mediaConfiguration,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and validates room tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for the given request.
func (i *Issuer) Issue(data RoomData) (string, error) {
	if data.Room == "" {
		return "", fmt.Errorf("%w: room is required", ErrInvalidToken)
	}

	now := i.now()
	claims := Claims{
		Room:               data.Room,
		Username:           data.Username,
		Role:               data.Role,
		Type:               data.Type,
		MediaConfiguration: data.MediaConfiguration,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   data.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates raw and returns its claims.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Room == "" {
		return nil, fmt.Errorf("%w: missing room", ErrInvalidToken)
	}
	return claims, nil
}
