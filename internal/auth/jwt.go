package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/omegashop/storefront/internal/models"
)

// ErrInvalidToken is returned for any token that fails parsing or validation.
var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and validates the HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate creates a signed token for the user.
func (m *TokenManager) Generate(u *models.User) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"sub":      u.ID, // "sub" (Subject) is the standard claim for User ID
		"username": u.Username,
		"role":     string(u.Role),
		"exp":      now.Add(m.ttl).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	return signed, errors.Wrap(err, "sign token")
}

// Validate parses the token and returns the principal it was issued for.
func (m *TokenManager) Validate(tokenString string) (models.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return models.Principal{}, errors.Wrap(ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Principal{}, ErrInvalidToken
	}

	// JSON numbers decode as float64.
	sub, ok := claims["sub"].(float64)
	if !ok {
		return models.Principal{}, errors.Wrap(ErrInvalidToken, "subject claim")
	}
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	if !models.Role(role).Valid() {
		return models.Principal{}, errors.Wrap(ErrInvalidToken, "role claim")
	}

	return models.Principal{UserID: int64(sub), Username: username, Role: models.Role(role)}, nil
}
