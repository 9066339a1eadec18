// Package auth issues and verifies the bearer tokens that identify players and admins.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"escape-room-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Authenticator signs HS256 tokens. A token is an admin token when it carries
// the admin claim or its subject equals AdminSubject.
type Authenticator struct {
	secret       []byte
	adminSubject string
	ttl          time.Duration
	now          func() time.Time
}

const placeholderSecret = "change-me"

func NewAuthenticator(secret, adminSubject string, ttl time.Duration) (*Authenticator, error) {
	switch strings.TrimSpace(secret) {
	case "":
		return nil, errors.New("auth: signing secret is empty")
	case placeholderSecret:
		return nil, fmt.Errorf("auth: signing secret is still the %q placeholder", placeholderSecret)
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Authenticator{secret: []byte(secret), adminSubject: adminSubject, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for subject. An empty subject gets a fresh anonymous id.
func (a *Authenticator) Issue(subject string, admin bool) (token string, caller domain.Caller, expiresAt time.Time, err error) {
	if subject == "" {
		subject = uuid.NewString()
	}
	now := a.now()
	expiresAt = now.Add(a.ttl)

	t := jwt.New(jwt.SigningMethodHS256)
	claims := t.Claims.(jwt.MapClaims)
	claims["sub"] = subject
	claims["iat"] = now.Unix()
	claims["exp"] = expiresAt.Unix()
	if admin {
		claims["admin"] = true
	}

	token, err = t.SignedString(a.secret)
	if err != nil {
		return "", domain.Caller{}, time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, a.caller(subject, admin), expiresAt, nil
}

// Authenticate verifies raw and returns the caller it identifies.
func (a *Authenticator) Authenticate(raw string) (domain.Caller, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return domain.Caller{}, domain.ErrUnauthenticated
	}
	token, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Caller{}, domain.ErrUnauthenticated
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return domain.Caller{}, fmt.Errorf("%w: subject missing", domain.ErrUnauthenticated)
	}
	admin, _ := claims["admin"].(bool)
	return a.caller(subject, admin), nil
}

func (a *Authenticator) caller(subject string, admin bool) domain.Caller {
	return domain.Caller{
		Subject: subject,
		Admin:   admin || (a.adminSubject != "" && subject == a.adminSubject),
	}
}
