package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/audit"
)

const issuer = "clinic-booking"

var errInvalidCredentials = apperr.Unauthenticated("invalid credentials")

type AuditLogger interface {
	Log(ctx context.Context, e audit.Entry)
}

type Service struct {
	users  UserRepository
	audit  AuditLogger
	secret []byte
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(users UserRepository, auditor AuditLogger, secret string, ttl time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		users:  users,
		audit:  auditor,
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger.With().Str("component", "auth").Logger(),
		now:    time.Now,
	}
}

// Login checks the password of an active user and issues a signed token.
// Unknown users, inactive users and bad passwords all get the same error.
func (s *Service) Login(ctx context.Context, email, password string, req *audit.RequestInfo) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}

	token, expiresAt, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Entry{
		UserID:     user.ID.String(),
		UserRole:   user.Role,
		Action:     audit.ActionLogin,
		Resource:   audit.ResourceUser,
		ResourceID: user.ID.String(),
		Request:    req,
	})

	s.logger.Info().Str("user_id", user.ID.String()).Str("role", user.Role).Msg("user logged in")

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: *user}, nil
}

func (s *Service) issue(u *User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		ID:    u.ID.String(),
		Email: u.Email,
		Role:  u.Role,
		Name:  u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a bearer token.
func (s *Service) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, apperr.Unauthenticated("authentication required")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Unauthenticated("token expired")
		}
		return nil, apperr.Unauthenticated("invalid token")
	}
	if !parsed.Valid {
		return nil, apperr.Unauthenticated("invalid token")
	}

	return claims, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
