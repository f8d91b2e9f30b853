package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"

	"github.com/farmtrade/marketplace-api/internal/dto"
	"github.com/farmtrade/marketplace-api/internal/repository"
)

// ErrPhotoStorageDisabled is returned when no object store is configured.
var ErrPhotoStorageDisabled = errors.New("photo storage not configured")

// PhotoStore is the object storage used for profile photos.
type PhotoStore interface {
	Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error)
}

type UserService struct {
	userRepo repository.UserRepository
	photos   PhotoStore
}

func NewUserService(userRepo repository.UserRepository, photos PhotoStore) *UserService {
	return &UserService{userRepo: userRepo, photos: photos}
}

func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, req dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", id, ErrUserNotFound)
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.MobileNumber != nil {
		user.MobileNumber = *req.MobileNumber
	}
	if req.Address != nil {
		user.Address = *req.Address
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// UploadPhoto stores the photo under a random object name and records the
// resulting URL on the user.
func (s *UserService) UploadPhoto(ctx context.Context, id uuid.UUID, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if s.photos == nil {
		return "", ErrPhotoStorageDisabled
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("user %s: %w", id, ErrUserNotFound)
	}

	objectName := uuid.NewString() + path.Ext(filename)
	url, err := s.photos.Upload(ctx, objectName, r, size, contentType)
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}

	user.ProfilePhoto = url
	if err := s.userRepo.Update(ctx, user); err != nil {
		return "", fmt.Errorf("save photo url: %w", err)
	}
	return url, nil
}
