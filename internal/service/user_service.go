package service

import (
	"errors"
	"fmt"

	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"
	"go-retail-pos/pkg/validator"

	"github.com/google/uuid"
)

var (
	ErrEmailExists          = errors.New("email already exists")
	ErrRoleNotFound         = errors.New("role not found")
	ErrCannotDeleteSelf     = errors.New("you cannot delete your own account")
	ErrPrivilegeNotFound    = errors.New("privilege not found")
	ErrPrivilegeNotAssigned = errors.New("privilege not assigned to user")
)

type UserService interface {
	CreateUser(req *CreateUserRequest, creatorID string) (*model.User, error)
	UpdateUser(userID uuid.UUID, req *UpdateUserRequest, updaterID string) (*model.User, error)
	DeleteUser(userID, actorID uuid.UUID) error
	GetAllUsers(roleCode string) ([]model.UserResponse, error)
	GetUserByID(id uuid.UUID) (*model.UserResponse, error)
	GetUserPrivileges(id uuid.UUID) ([]string, error)
	UpdateUserPrivileges(userID uuid.UUID, privilegeCodes []string, updaterID string) (*model.User, error)
	GrantPrivilege(userID uuid.UUID, code string) error
	RevokePrivilege(userID uuid.UUID, code string) error
	GetRoles() ([]model.Role, error)
	GetPrivileges() ([]model.Privilege, error)
}

type CreateUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	FullName    string `json:"full_name" validate:"required"`
	PhoneNumber string `json:"phone_number"`
	RoleID      *uint  `json:"role_id"` // defaults to STAFF
}

type UpdateUserRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    *string `json:"password,omitempty" validate:"omitempty,min=6"`
	FullName    string  `json:"full_name" validate:"required"`
	PhoneNumber string  `json:"phone_number"`
	RoleID      *uint   `json:"role_id"`
	IsActive    *bool   `json:"is_active"`
}

type PrivilegeChangeRequest struct {
	UserID    uuid.UUID `json:"user_id" validate:"uuid_required"`
	Privilege string    `json:"privilege" validate:"required"`
}

type userService struct {
	userRepo      repository.UserRepository
	privilegeRepo repository.PrivilegeRepository
	roleRepo      repository.RoleRepository
}

func NewUserService(userRepo repository.UserRepository, privilegeRepo repository.PrivilegeRepository, roleRepo repository.RoleRepository) UserService {
	return &userService{
		userRepo:      userRepo,
		privilegeRepo: privilegeRepo,
		roleRepo:      roleRepo,
	}
}

func (s *userService) CreateUser(req *CreateUserRequest, creatorID string) (*model.User, error) {
	if err := validator.FirstError(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if _, err := s.userRepo.FindByEmail(req.Email); err == nil {
		return nil, ErrEmailExists
	}

	role, err := s.resolveRole(req.RoleID)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:       req.Email,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		RoleID:      &role.ID,
		IsActive:    true,
		Privileges:  role.Privileges,
	}
	user.CreatedBy = creatorID
	user.UpdatedBy = creatorID

	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}

func (s *userService) UpdateUser(userID uuid.UUID, req *UpdateUserRequest, updaterID string) (*model.User, error) {
	if err := validator.FirstError(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if req.Email != user.Email {
		if _, err := s.userRepo.FindByEmail(req.Email); err == nil {
			return nil, ErrEmailExists
		}
	}

	// Changing role resets the user's privileges to the new role's defaults.
	roleChanged := req.RoleID != nil && (user.RoleID == nil || *user.RoleID != *req.RoleID)
	var role *model.Role
	if roleChanged {
		if role, err = s.resolveRole(req.RoleID); err != nil {
			return nil, err
		}
		user.RoleID = &role.ID
	}

	user.Email = req.Email
	user.FullName = req.FullName
	user.PhoneNumber = req.PhoneNumber
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	user.UpdatedBy = updaterID

	if req.Password != nil && *req.Password != "" {
		if err := user.SetPassword(*req.Password); err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	if roleChanged {
		if err := s.userRepo.UpdatePrivileges(userID, role.Privileges); err != nil {
			return nil, err
		}
	}

	return s.userRepo.FindByID(userID)
}

func (s *userService) DeleteUser(userID, actorID uuid.UUID) error {
	if userID == actorID {
		return ErrCannotDeleteSelf
	}
	if err := s.userRepo.Delete(userID, actorID.String()); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *userService) GetAllUsers(roleCode string) ([]model.UserResponse, error) {
	users, err := s.userRepo.FindAll(roleCode)
	if err != nil {
		return nil, err
	}

	responses := make([]model.UserResponse, len(users))
	for i, user := range users {
		responses[i] = user.ToResponse()
	}
	return responses, nil
}

func (s *userService) GetUserByID(id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	response := user.ToResponse()
	return &response, nil
}

func (s *userService) GetUserPrivileges(id uuid.UUID) ([]string, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user.GetPrivilegeCodes(), nil
}

func (s *userService) UpdateUserPrivileges(userID uuid.UUID, privilegeCodes []string, updaterID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	codes := distinct(privilegeCodes)
	privileges, err := s.privilegeRepo.FindByCodes(codes)
	if err != nil {
		return nil, err
	}
	if len(privileges) != len(codes) {
		return nil, ErrPrivilegeNotFound
	}

	if err := s.userRepo.UpdatePrivileges(userID, privileges); err != nil {
		return nil, err
	}

	user.UpdatedBy = updaterID
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return s.userRepo.FindByID(userID)
}

func (s *userService) GrantPrivilege(userID uuid.UUID, code string) error {
	privilege, err := s.privilegeRepo.FindByCode(code)
	if err != nil {
		return ErrPrivilegeNotFound
	}
	if err := s.userRepo.AddPrivilege(userID, privilege); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *userService) RevokePrivilege(userID uuid.UUID, code string) error {
	privilege, err := s.privilegeRepo.FindByCode(code)
	if err != nil {
		return ErrPrivilegeNotFound
	}
	if err := s.userRepo.RemovePrivilege(userID, privilege); err != nil {
		if errors.Is(err, repository.ErrPrivilegeNotAssigned) {
			return ErrPrivilegeNotAssigned
		}
		return err
	}
	return nil
}

func (s *userService) GetRoles() ([]model.Role, error) {
	return s.roleRepo.FindAll()
}

func (s *userService) GetPrivileges() ([]model.Privilege, error) {
	return s.privilegeRepo.FindAll()
}

func (s *userService) resolveRole(roleID *uint) (*model.Role, error) {
	var (
		role *model.Role
		err  error
	)
	if roleID == nil {
		role, err = s.roleRepo.FindByCode(model.RoleStaff)
	} else {
		role, err = s.roleRepo.FindByID(*roleID)
	}
	if err != nil {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
