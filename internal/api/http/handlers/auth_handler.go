package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/safevault/internal/api/dto"
	"github.com/spec-kit/safevault/internal/auth"
	"github.com/spec-kit/safevault/internal/service"
	apperrors "github.com/spec-kit/safevault/pkg/util"
)

// AuthHandler exposes registration, login and availability endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	tokens *auth.TokenManager
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{auth: authService, tokens: tokens}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	user, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return err
	}

	token, exp, err := h.tokens.Issue(user, req.RememberMe)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserResponse(user),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.UsernameOrEmail == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "usernameOrEmail and password required")
	}

	user, err := h.auth.Login(c.UserContext(), req.UsernameOrEmail, req.Password)
	if err != nil {
		return err
	}
	if user == nil {
		// unknown account and wrong password share this response
		return apperrors.NewInvalidCredentials()
	}

	token, exp, err := h.tokens.Issue(user, req.RememberMe)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserResponse(user),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// UsernameAvailable handles GET /auth/username-available?username=...
func (h *AuthHandler) UsernameAvailable(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return fiber.NewError(http.StatusBadRequest, "username required")
	}

	available, err := h.auth.IsUsernameAvailable(c.UserContext(), username)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"available": available}})
}

// EmailAvailable handles GET /auth/email-available?email=...
func (h *AuthHandler) EmailAvailable(c *fiber.Ctx) error {
	email := c.Query("email")
	if email == "" {
		return fiber.NewError(http.StatusBadRequest, "email required")
	}

	available, err := h.auth.IsEmailAvailable(c.UserContext(), email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"available": available}})
}
