// Package identity is a small reference identity provider: it registers and
// logs in users and turns bearer tokens back into principals. The Q&A core
// only sees it through app.IdentityProvider.
package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"fipabet-seal-service/internal/domain"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is a stored account.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	IsAdmin      bool
	CreatedAt    time.Time
}

// UserRepository stores accounts.
type UserRepository interface {
	// Create must fail with domain.ErrConflict when the username is taken.
	Create(ctx context.Context, u User) error
	FindByUsername(ctx context.Context, username string) (User, bool, error)
	FindByIDs(ctx context.Context, ids []string) ([]User, error)
}

// Config controls token signing and admin registration.
type Config struct {
	Secret      []byte
	TokenTTL    time.Duration
	AdminInvite string
}

// Session is returned by Register and Login.
type Session struct {
	Token string           `json:"token"`
	User  domain.Principal `json:"user"`
}

type claims struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
	jwt.RegisteredClaims
}

type Service struct {
	users UserRepository
	cfg   Config
	now   func() time.Time
	newID func() string
}

func NewService(users UserRepository, cfg Config) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	return &Service{
		users: users,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Register creates an account. A non-empty invite must match the configured
// admin invite and grants the admin role.
func (s *Service) Register(ctx context.Context, username, password, adminInvite string) (Session, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return Session{}, err
	}

	isAdmin := false
	if adminInvite != "" {
		if s.cfg.AdminInvite == "" || subtle.ConstantTimeCompare([]byte(adminInvite), []byte(s.cfg.AdminInvite)) != 1 {
			return Session{}, fmt.Errorf("%w: invalid admin invite", domain.ErrForbidden)
		}
		isAdmin = true
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:           s.newID(),
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return Session{}, fmt.Errorf("%w: username already taken", domain.ErrConflict)
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	return s.session(u)
}

// Login checks credentials and issues a fresh token.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, fmt.Errorf("%w: username and password required", domain.ErrValidation)
	}
	u, ok, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if !ok {
		return Session{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return Session{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
	}
	return s.session(u)
}

// Authenticate validates a token and returns the principal it was issued for.
func (s *Service) Authenticate(_ context.Context, token string) (domain.Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(*jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.UID == "" {
		return domain.Principal{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	return domain.Principal{ID: c.UID, Username: c.Username, IsAdmin: c.Admin}, nil
}

// Usernames resolves user ids to usernames. Unknown ids are omitted.
func (s *Service) Usernames(ctx context.Context, ids []string) (map[string]string, error) {
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(users))
	for _, u := range users {
		out[u.ID] = u.Username
	}
	return out, nil
}

func (s *Service) session(u User) (Session, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UID:      u.ID,
		Username: u.Username,
		Admin:    u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	})
	signed, err := token.SignedString(s.cfg.Secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{
		Token: signed,
		User:  domain.Principal{ID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin},
	}, nil
}

func validateCredentials(username, password string) error {
	if n := utf8.RuneCountInString(username); n < 3 || n > 32 {
		return fmt.Errorf("%w: username must be 3 to 32 characters", domain.ErrValidation)
	}
	if len(password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", domain.ErrValidation)
	}
	return nil
}
