// Package application contains use-case orchestration services.
package application

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ericfisherdev/originguard/internal/domain/model"
	"github.com/ericfisherdev/originguard/internal/domain/port/driven"
)

// tokenClaims is the wire form of a credential: {role, username, iat, exp}.
type tokenClaims struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService verifies the single administrator identity and issues and
// verifies self-contained HS256 bearer tokens.
type AuthService struct {
	username  string
	password  string
	secret    []byte
	expiresIn string
	lifetime  time.Duration
	now       func() time.Time
}

// NewAuthService creates an AuthService. password may be plaintext or a
// bcrypt hash. expiresIn uses the <N>(h|m|s) format; an empty value means 1h.
func NewAuthService(username, password string, secret []byte, expiresIn string) (*AuthService, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("auth service: signing secret is required")
	}
	if expiresIn == "" {
		expiresIn = model.DefaultLifetime
	}
	lifetime, err := model.ParseLifetime(expiresIn)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	return &AuthService{
		username:  username,
		password:  password,
		secret:    secret,
		expiresIn: expiresIn,
		lifetime:  lifetime,
		now:       time.Now,
	}, nil
}

// Login checks the administrator credentials and issues a token. Returns
// ErrBadRequest if either field is empty and ErrUnauthorized on mismatch.
func (s *AuthService) Login(username, password string) (model.Token, error) {
	if username == "" || password == "" {
		return model.Token{}, fmt.Errorf("username and password required: %w", driven.ErrBadRequest)
	}

	// Evaluate both comparisons so timing does not reveal which field was wrong.
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := s.checkPassword(password)
	if !userOK || !passOK {
		return model.Token{}, fmt.Errorf("invalid credentials: %w", driven.ErrUnauthorized)
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.lifetime)
	claims := tokenClaims{
		Role:     model.AdminRole,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return model.Token{}, fmt.Errorf("sign token: %w", err)
	}

	return model.Token{Value: signed, ExpiresIn: s.expiresIn, ExpiresAt: expiresAt}, nil
}

// Verify checks a token's signature, algorithm and expiry. Every failure is
// reported as ErrUnauthorized without detail.
func (s *AuthService) Verify(token string) (model.Claims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return model.Claims{}, driven.ErrUnauthorized
	}

	out := model.Claims{Username: claims.Username, Role: claims.Role}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	out.ExpiresAt = claims.ExpiresAt.Time
	return out, nil
}

// ExpiresIn returns the configured lifetime string advertised to clients.
func (s *AuthService) ExpiresIn() string {
	return s.expiresIn
}

func (s *AuthService) checkPassword(candidate string) bool {
	if isBcryptHash(s.password) {
		return bcrypt.CompareHashAndPassword([]byte(s.password), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.password)) == 1
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
