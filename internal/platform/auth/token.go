package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrWeakSigningKey = errors.New("signing key must be at least 16 bytes")

// Operator is the identity a token is issued for.
type Operator struct {
	ID    int64
	Name  string
	Email string
	Role  string
}

// Issuer signs HS256 tokens for operators.
type Issuer struct {
	name string
	key  []byte
	ttl  time.Duration
	now  func() time.Time
}

func NewIssuer(name string, key []byte, ttl time.Duration) (*Issuer, error) {
	if len(key) < 16 {
		return nil, ErrWeakSigningKey
	}
	return &Issuer{name: name, key: key, ttl: ttl, now: time.Now}, nil
}

// Config returns the middleware settings that accept this issuer's tokens.
func (i *Issuer) Config() JWTConfig {
	return JWTConfig{Issuer: i.name, SigningKey: i.key}
}

func (i *Issuer) Issue(op Operator) (string, *Claims, error) {
	now := i.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.name,
			Subject:   strconv.FormatInt(op.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Name:  op.Name,
		Email: op.Email,
		Role:  op.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}
