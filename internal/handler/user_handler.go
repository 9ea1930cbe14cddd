package handler

import (
	"strings"

	"go-retail-pos/internal/middleware"
	"go-retail-pos/internal/service"
	"go-retail-pos/pkg/validator"

	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// CreateUser handles staff account creation
// POST /api/v1/users
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req service.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	user, err := h.userService.CreateUser(&req, getUserID(c))
	if err != nil {
		return writeError(c, err, "Failed to create user")
	}

	return c.Status(201).JSON(fiber.Map{
		"message": "User created successfully",
		"data":    user.ToResponse(),
	})
}

// GetUsers returns all users, optionally filtered by ?role=
// GET /api/v1/users
func (h *UserHandler) GetUsers(c *fiber.Ctx) error {
	users, err := h.userService.GetAllUsers(strings.ToUpper(c.Query("role")))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch users"})
	}
	return c.JSON(users)
}

// GET /api/v1/users/:id
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		return writeError(c, err, "Failed to fetch user")
	}
	return c.JSON(user)
}

// PUT /api/v1/users/:id
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var req service.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	user, err := h.userService.UpdateUser(userID, &req, getUserID(c))
	if err != nil {
		return writeError(c, err, "Failed to update user")
	}

	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"data":    user.ToResponse(),
	})
}

// DELETE /api/v1/users/:id
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid user ID"})
	}
	actorID, _ := middleware.UserID(c)

	if err := h.userService.DeleteUser(userID, actorID); err != nil {
		return writeError(c, err, "Failed to delete user")
	}

	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}

// GET /api/v1/users/:id/privileges
func (h *UserHandler) GetUserPrivileges(c *fiber.Ctx) error {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	codes, err := h.userService.GetUserPrivileges(userID)
	if err != nil {
		return writeError(c, err, "Failed to fetch privileges")
	}
	return c.JSON(fiber.Map{"user_id": userID, "privileges": codes})
}

// UpdateUserPrivileges replaces the user's privilege set
// PUT /api/v1/users/:id/privileges
func (h *UserHandler) UpdateUserPrivileges(c *fiber.Ctx) error {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var req struct {
		Privileges []string `json:"privileges"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	user, err := h.userService.UpdateUserPrivileges(userID, req.Privileges, getUserID(c))
	if err != nil {
		return writeError(c, err, "Failed to update privileges")
	}

	return c.JSON(fiber.Map{
		"message": "Privileges updated successfully",
		"data":    user.ToResponse(),
	})
}

// GrantPrivilege assigns one privilege
// POST /api/v1/users/privileges
func (h *UserHandler) GrantPrivilege(c *fiber.Ctx) error {
	var req service.PrivilegeChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if err := validator.FirstError(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.userService.GrantPrivilege(req.UserID, req.Privilege); err != nil {
		return writeError(c, err, "Failed to assign privilege")
	}
	return c.Status(201).JSON(fiber.Map{"message": "Privilege assigned"})
}

// RevokePrivilege removes one privilege
// DELETE /api/v1/users/privileges
func (h *UserHandler) RevokePrivilege(c *fiber.Ctx) error {
	var req service.PrivilegeChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if err := validator.FirstError(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.userService.RevokePrivilege(req.UserID, req.Privilege); err != nil {
		return writeError(c, err, "Failed to revoke privilege")
	}
	return c.JSON(fiber.Map{"message": "Privilege revoked"})
}
