// Package service contains the application's business logic, sitting between
// HTTP/WebSocket handlers and the repositories.
package service

import (
	"context"

	"huddle/internal/models"
	"huddle/internal/repository"
	"huddle/internal/validation"
)

// UserService handles profile and device-token operations.
type UserService struct {
	userRepo repository.UserRepository
}

// UpdateProfileInput carries the mutable profile fields. Empty fields are
// left unchanged.
type UpdateProfileInput struct {
	UserID   uint
	Username string
	Bio      string
	Avatar   string
}

// NewUserService returns a new UserService.
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	const maxBioLen = 500

	if in.Username != "" && in.Username != user.Username {
		if err := validation.ValidateUsername(in.Username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Username = in.Username
	}
	if in.Bio != "" {
		if len(in.Bio) > maxBioLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = in.Bio
	}
	if in.Avatar != "" {
		user.AvatarURL = in.Avatar
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// RegisterPushToken stores the device push token for the user, replacing any
// previous token.
func (s *UserService) RegisterPushToken(ctx context.Context, userID uint, token string) error {
	if token == "" {
		return models.NewValidationError("Push token is required")
	}
	return s.userRepo.UpdatePushToken(ctx, userID, token)
}
