package users

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

// secretEnv names the environment variable holding the HMAC signing secret.
const secretEnv = "REPORTA_AUTH_SECRET"

var (
	secretOnce sync.Once
	secretVal  []byte
	secretErr  error
)

func signingSecret() ([]byte, error) {
	secretOnce.Do(func() {
		s := os.Getenv(secretEnv)
		if s == "" {
			secretErr = fmt.Errorf("users: %s is not set", secretEnv)
			return
		}
		secretVal = []byte(s)
	})
	return secretVal, secretErr
}

// ResetSecretForTests clears the cached signing secret so tests can swap it
// with t.Setenv.
func ResetSecretForTests() {
	secretOnce = sync.Once{}
	secretVal = nil
	secretErr = nil
}

// Claims is the JWT payload issued on login.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"tipo"`
	jwt.RegisteredClaims
}

// GenerateToken issues a signed HS256 token for the given user.
func GenerateToken(u User) (string, error) {
	secret, err := signingSecret()
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseAndValidate verifies a token and returns its claims.
func ParseAndValidate(token string) (*Claims, error) {
	secret, err := signingSecret()
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("users: unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !parsed.Valid {
		return nil, ErrUnauthorized
	}
	return claims, nil
}
