package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/benbjohnson/clock"

	"github.com/vovakirdan/wirechat-room/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrUserBanned is returned when a banned account tries to log in or connect.
	ErrUserBanned = errors.New("user is banned")
	// ErrInvalidToken is returned when a token fails validation or names a missing user.
	ErrInvalidToken = errors.New("invalid token")
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
)

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
	clock     clock.Clock
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
		clock:     clock.New(),
	}
}

// Register creates a new user with hashed password and returns a JWT token.
// email is optional.
func (s *Service) Register(ctx context.Context, username, password, email string) (string, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return "", err
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return "", ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("lookup user: %w", err)
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		return "", err
	}

	var emailPtr *string
	if email = strings.TrimSpace(email); email != "" {
		emailPtr = &email
	}

	user, err := s.store.CreateUser(ctx, username, hashedPassword, emailPtr, false)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return "", ErrUserExists
		}
		return "", fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username, user.IsAdmin)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// Login validates credentials, records the login time and returns a JWT token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if err := checkPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return "", err
		}
		return "", fmt.Errorf("check password: %w", err)
	}
	if user.Banned() {
		return "", ErrUserBanned
	}

	if err := s.store.TouchLastLogin(ctx, user.ID, s.clock.Now().UTC()); err != nil {
		return "", fmt.Errorf("update last login: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username, user.IsAdmin)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// Authenticate validates tokenString and re-loads its user so that bans and
// admin changes made after the token was issued take effect.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*store.User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.Banned() {
		return nil, ErrUserBanned
	}
	return user, nil
}

// EnsureAdmin creates an admin account when the store has none.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	n, err := s.store.CountAdmins(ctx)
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return false, fmt.Errorf("admin account: %w", err)
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		return false, err
	}
	if _, err := s.store.CreateUser(ctx, username, hashedPassword, nil, true); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

func validateCredentials(username, password string) error {
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return ErrInvalidUsername
	}
	return validatePassword(password)
}
