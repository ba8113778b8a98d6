package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// MinSecretLength is the shortest HMAC secret accepted for signing tokens.
const MinSecretLength = 32

// DefaultTTL is the lifetime of an access token.
const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrSecretTooShort = fmt.Errorf("JWT secret must be at least %d characters", MinSecretLength)
	ErrInvalidToken   = errors.New("invalid or expired token")
)

// Claims is the token payload shared with the storefront client.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// TokenManager issues and validates HS256 tokens.
type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewTokenManager fails when the secret is missing or too short; there is no fallback key.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenManager{secretKey: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Generate signs a token carrying the claims and an expiry of now+ttl.
func (m *TokenManager) Generate(c Claims) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"userId":   c.UserID,
		"username": c.Username,
		"email":    c.Email,
		"role":     c.Role,
		"iat":      now.Unix(),
		"exp":      now.Add(m.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// ParseAndValidateToken parses a JWT token string and returns its claims.
func (m *TokenManager) ParseAndValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, _ := mc["userId"].(string)
	if userID == "" {
		return nil, ErrInvalidToken
	}
	username, _ := mc["username"].(string)
	email, _ := mc["email"].(string)
	role, _ := mc["role"].(string)

	return &Claims{UserID: userID, Username: username, Email: email, Role: role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
