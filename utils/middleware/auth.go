package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/placementpulse/api/database"
	"github.com/placementpulse/api/model"
	"github.com/placementpulse/api/utils/auth"
	"github.com/placementpulse/api/utils/response"
)

// UserLoader loads the account behind a token
type UserLoader interface {
	FindUser(ctx context.Context, id uint, email string) (*model.User, error)
}

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	users      UserLoader
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *auth.JWTManager, users UserLoader) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		users:      users,
	}
}

// authenticate resolves the bearer token to its claims and account
func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (*auth.Claims, *model.User, *fiber.Error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return nil, nil, fiber.NewError(fiber.StatusUnauthorized, "Missing authorization token")
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization format")
	}

	claims, err := m.jwtManager.ValidateToken(parts[1])
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, nil, fiber.NewError(fiber.StatusUnauthorized, "Token has expired")
		}
		return nil, nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	user, err := m.users.FindUser(c.UserContext(), claims.UserID, "")
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, fiber.NewError(fiber.StatusUnauthorized, "User not found")
		}
		return nil, nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
	}

	if user.TokenVersion != claims.TokenVersion {
		return nil, nil, fiber.NewError(fiber.StatusUnauthorized, "Token has been invalidated")
	}

	return claims, user, nil
}

func setPrincipal(c *fiber.Ctx, claims *auth.Claims, user *model.User) {
	c.Locals("user_id", claims.UserID)
	c.Locals("user", user)
}

// Required is middleware that requires a valid JWT token
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, user, ferr := m.authenticate(c)
		if ferr != nil {
			if ferr.Code == fiber.StatusInternalServerError {
				return response.InternalServerError(c, ferr.Message)
			}
			return response.Unauthorized(c, ferr.Message)
		}

		setPrincipal(c, claims, user)
		return c.Next()
	}
}

// Optional is middleware that allows requests with or without a token.
// An invalid token is treated as no token.
func (m *AuthMiddleware) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, user, ferr := m.authenticate(c)
		if ferr == nil {
			setPrincipal(c, claims, user)
		}
		return c.Next()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) (uint, bool) {
	userID := c.Locals("user_id")
	if userID == nil {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetUser extracts full user object from context
func GetUser(c *fiber.Ctx) (*model.User, bool) {
	user := c.Locals("user")
	if user == nil {
		return nil, false
	}
	u, ok := user.(*model.User)
	return u, ok
}
