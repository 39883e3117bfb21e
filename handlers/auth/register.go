package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/placementpulse/api/database"
	"github.com/placementpulse/api/model"
	authutil "github.com/placementpulse/api/utils/auth"
	"github.com/placementpulse/api/utils/middleware"
	"github.com/placementpulse/api/utils/response"
	"github.com/placementpulse/api/utils/validation"
)

// AccountStore persists learner accounts
type AccountStore interface {
	FindUser(ctx context.Context, id uint, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	users                AccountStore
	jwtManager           *authutil.JWTManager
	bruteForceProtection *middleware.BruteForceProtection
	validator            *validation.Validator
}

// NewAuthHandler creates a new auth handler. bruteForceProtection may be nil.
func NewAuthHandler(users AccountStore, jwtManager *authutil.JWTManager, bruteForceProtection *middleware.BruteForceProtection) *AuthHandler {
	return &AuthHandler{
		users:                users,
		jwtManager:           jwtManager,
		bruteForceProtection: bruteForceProtection,
		validator:            validation.NewValidator(),
	}
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=2"`
}

// AuthResponse is returned after register and login
type AuthResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresIn   int          `json:"expires_in"` // in seconds
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID             uint      `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	EnrolledCourse bool      `json:"enrolled_course"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:             user.ID,
		Email:          user.Email,
		Name:           user.Name,
		Role:           user.Role,
		EnrolledCourse: user.EnrolledCourse,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
}

// Register handles user registration
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Name = validation.SanitizeString(req.Name)

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	if ok, problems := validation.ValidatePassword(req.Password); !ok {
		return response.BadRequest(c, strings.Join(problems, "; "))
	}

	// Accounts provisioned at checkout have no password and cannot be claimed here
	if _, err := h.users.FindUser(c.UserContext(), 0, req.Email); err == nil {
		return response.Conflict(c, "User with this email already exists")
	} else if !errors.Is(err, database.ErrNotFound) {
		return response.InternalServerError(c, "Failed to create user")
	}

	hashedPassword, err := authutil.HashPassword(req.Password)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	user := model.User{
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Name:         req.Name,
		Role:         "student",
	}

	if err := h.users.CreateUser(c.UserContext(), &user); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return response.Conflict(c, "User with this email already exists")
		}
		return response.InternalServerError(c, "Failed to create user")
	}

	res, err := h.issueToken(&user)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate access token")
	}

	return response.Created(c, res)
}

func (h *AuthHandler) issueToken(user *model.User) (*AuthResponse, error) {
	accessToken, expiresAt, err := h.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:        toUserResponse(user),
		AccessToken: accessToken,
		ExpiresIn:   int(time.Until(expiresAt).Seconds()),
	}, nil
}
