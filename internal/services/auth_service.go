package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials hides whether the username or the password was wrong
var ErrInvalidCredentials = errors.New("invalid username or password")

// AuthService authenticates operators against the synced user mirror
type AuthService struct {
	users  repositories.UserRepository
	logger *logrus.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users repositories.UserRepository, logger *logrus.Logger) *AuthService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AuthService{users: users, logger: logger}
}

// OfflineLogin checks a bcrypt password hash. The returned user carries no hash.
func (s *AuthService) OfflineLogin(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.logger.WithField("username", username).Warn("Offline login for unknown user")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WithField("username", username).Warn("Offline login with wrong password")
		return nil, ErrInvalidCredentials
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("Offline login succeeded")

	public := user.Public()
	return &public, nil
}
