package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	authutil "github.com/placementpulse/api/utils/auth"
	"github.com/placementpulse/api/utils/response"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles user login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return response.BadRequest(c, "Email and password are required")
	}

	ip := c.IP()

	user, err := h.users.FindUser(c.UserContext(), 0, req.Email)
	if err != nil {
		// Record failed attempt even if user not found
		h.bruteForceProtection.RecordFailedAttempt(c, ip)
		return response.Unauthorized(c, "Invalid email or password")
	}

	if err := authutil.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		h.bruteForceProtection.RecordFailedAttempt(c, ip)
		return response.Unauthorized(c, "Invalid email or password")
	}

	// Clear failed attempts on successful login
	h.bruteForceProtection.RecordSuccessfulAttempt(c, ip)

	res, err := h.issueToken(user)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate access token")
	}

	return response.SuccessWithMessage(c, "Login successful", res)
}
