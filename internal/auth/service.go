package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/chattu-app/chattu-server/internal/mailer"
	"github.com/chattu-app/chattu-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with an existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when the username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when the password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrUserBlocked is returned when a blocked user attempts to log in.
	ErrUserBlocked = errors.New("user is blocked")
)

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
	mail      mailer.Mailer
	log       *zerolog.Logger
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig, mail mailer.Mailer, logger *zerolog.Logger) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
		mail:      mail,
		log:       logger,
	}
}

// Register creates a new user with a hashed password and returns a JWT token.
// When an email address is given a welcome email is sent out of band; a
// delivery failure never fails the registration.
func (s *Service) Register(ctx context.Context, name, username, email, password, bio string) (string, *store.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return "", nil, ErrInvalidUsername
	}
	if len(password) < 6 {
		return "", nil, ErrInvalidPassword
	}
	if name = strings.TrimSpace(name); name == "" {
		name = username
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, &store.User{
		Name:         name,
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hashedPassword,
		Bio:          bio,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", nil, ErrUserExists
		}
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	if user.Email != "" {
		go func() {
			if err := s.mail.Send(user.Email, "Welcome to Chattu",
				fmt.Sprintf("Hi %s, your account is ready.", user.Name)); err != nil {
				s.log.Warn().Err(err).Str("username", user.Username).Msg("welcome email failed")
			}
		}()
	}

	return token, user, nil
}

// Login validates credentials and returns a JWT token. Blocked users are
// refused even with valid credentials.
func (s *Service) Login(ctx context.Context, username, password string) (string, *store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if user.IsBlocked {
		return "", nil, ErrUserBlocked
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
