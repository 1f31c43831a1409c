// Package auth is the identity boundary: account registration,
// credential verification and token handling. The session core only
// ever sees the verified types.Identity it produces.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// UserStore is the slice of the durable store the identity provider
// needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *types.User) error
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
}

// Claims carried inside access tokens.
type Claims struct {
	UserID string     `json:"userId"`
	Role   types.Role `json:"role"`
	Name   string     `json:"name"`
	jwt.RegisteredClaims
}

// Service implements interfaces.IdentityProvider with bcrypt password
// hashes and HS256 tokens.
type Service struct {
	users    UserStore
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// NewService creates an identity provider signing tokens with secret.
func NewService(users UserStore, secret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		users:    users,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// Register creates an account. Unknown roles default to STUDENT;
// duplicate emails fail with types.ErrConflict.
func (s *Service) Register(ctx context.Context, email, password, name string, role types.Role) (*types.User, error) {
	if !types.IsValidEmail(email) {
		return nil, fmt.Errorf("invalid email: %w", types.ErrValidation)
	}
	if password == "" || name == "" {
		return nil, fmt.Errorf("password and name are required: %w", types.ErrValidation)
	}
	if !types.IsValidRole(role) {
		role = types.RoleStudent
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &types.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	log.Printf("User registered: id=%s role=%s", user.ID, user.Role)
	return user, nil
}

// Login verifies credentials and returns a signed access token. Wrong
// email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return "", fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
	}

	return s.issueToken(user)
}

func (s *Service) issueToken(user *types.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a token and returns the identity it carries.
func (s *Service) Verify(tokenString string) (types.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !token.Valid {
		return types.Identity{}, fmt.Errorf("invalid token: %w", types.ErrUnauthenticated)
	}

	return types.Identity{
		UserID: claims.UserID,
		Role:   claims.Role,
		Name:   claims.Name,
	}, nil
}
