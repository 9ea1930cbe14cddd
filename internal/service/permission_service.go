package service

import (
	"errors"

	"go-retail-pos/internal/repository"

	"github.com/google/uuid"
)

// PermissionChecker answers whether a user currently holds a privilege.
// Answers come from the database on every call, so revocations apply to the
// next request.
type PermissionChecker interface {
	HasPermission(userID uuid.UUID, code string) (bool, error)
}

type permissionService struct {
	userRepo repository.UserRepository
}

func NewPermissionService(userRepo repository.UserRepository) PermissionChecker {
	return &permissionService{userRepo: userRepo}
}

func (s *permissionService) HasPermission(userID uuid.UUID, code string) (bool, error) {
	user, err := s.userRepo.FindByID(userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !user.IsActive {
		return false, nil
	}
	return user.HasPrivilege(code), nil
}
