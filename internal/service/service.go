package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/user-service/internal/models"
	"github.com/Dan9191/user-service/internal/repository"
	"github.com/Dan9191/user-service/internal/utils/password"
	"github.com/Dan9191/user-service/internal/validation"
)

// UserRepository is the persistence the service needs
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// PasswordHasher hashes plaintext passwords
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

// Service handles business logic
type Service struct {
	repo     UserRepository
	hasher   PasswordHasher
	validate *validation.Validator
	log      *logrus.Logger
}

// NewService initializes a new service
func NewService(repo UserRepository, hasher PasswordHasher, log *logrus.Logger) *Service {
	return &Service{
		repo:     repo,
		hasher:   hasher,
		validate: validation.New(),
		log:      log,
	}
}

// CreateUser validates the request, hashes the password and stores the user
func (s *Service) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if errors.Is(err, password.ErrPasswordTooLong) {
		return nil, validation.Errors{{Field: "password", Message: "must be at most 72 bytes"}}
	}
	if err != nil {
		s.log.WithError(err).Error("Failed to hash password")
		return nil, err
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.log.WithFields(logrus.Fields{"username": req.Username, "reason": err}).Info("User registration rejected")
			return nil, err
		}
		s.log.WithError(err).WithField("username", req.Username).Error("Failed to create user")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("User registered")
	return user, nil
}

// GetUser retrieves a user by id
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		s.logUnexpected(err, "Failed to get user", logrus.Fields{"user_id": id})
		return nil, err
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repo.FindUserByUsername(ctx, username)
	if err != nil {
		s.logUnexpected(err, "Failed to get user by username", logrus.Fields{"username": username})
		return nil, err
	}
	return user, nil
}

// ListUsers returns all users in creation order
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		s.log.WithError(err).Error("Failed to list users")
		return nil, err
	}
	return users, nil
}

// DeleteUser removes a user by id
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		s.logUnexpected(err, "Failed to delete user", logrus.Fields{"user_id": id})
		return err
	}
	s.log.WithField("user_id", id).Info("User deleted")
	return nil
}

// logUnexpected skips ErrNotFound, which is an ordinary outcome.
func (s *Service) logUnexpected(err error, msg string, fields logrus.Fields) {
	if errors.Is(err, repository.ErrNotFound) {
		return
	}
	s.log.WithError(err).WithFields(fields).Error(msg)
}
