// Package auth protects the console API with a single admin credential.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/reelsync/reelsync/internal/config"
)

const bcryptCost = 12

var (
	ErrInvalidToken         = errors.New("invalid token")
	ErrExpiredToken         = errors.New("token has expired")
	ErrPasswordHashMismatch = errors.New("password does not match")
)

// Service issues and validates console session tokens.
type Service struct {
	cfg *config.AuthConfig
}

// NewService creates an auth service from config.
func NewService(cfg *config.AuthConfig) *Service {
	return &Service{cfg: cfg}
}

// Enabled reports whether API authentication is turned on.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// Login verifies the admin password and returns a session token.
func (s *Service) Login(password string) (string, time.Time, error) {
	if err := VerifyPassword(password, s.cfg.PasswordHash); err != nil {
		return "", time.Time{}, err
	}
	return s.generateToken()
}

func (s *Service) generateToken() (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.TokenTTL)

	claims := jwt.RegisteredClaims{
		Issuer:    s.cfg.JWTIssuer,
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		NotBefore: jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// ValidateToken checks a session token's signature and expiry.
func (s *Service) ValidateToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithIssuer(s.cfg.JWTIssuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}

	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}

// HashPassword hashes a password using bcrypt. Used by the init
// command to produce the config value.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks if a password matches a hash.
func VerifyPassword(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordHashMismatch
	}
	return err
}
