package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/aldoetobex/interior-mp-backend/pkg/apperror"
	"github.com/aldoetobex/interior-mp-backend/pkg/models"
	"github.com/aldoetobex/interior-mp-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

// Request body for /signup
type SignupRequest struct {
	Email     string `json:"email" validate:"required,email,max=120"`
	Password  string `json:"password" validate:"required,max=72"`
	Tel       string `json:"tel" validate:"omitempty,tel"`
	UserType  string `json:"userType" validate:"required,signuprole"`
	FirstName string `json:"firstName" validate:"max=80"`
	LastName  string `json:"lastName" validate:"max=80"`
}

// Request body for /login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required"`
}

// Standard auth response
type AuthResponse struct {
	Token string              `json:"token"`
	Role  string              `json:"role"`
	User  UserProfileResponse `json:"user"`
}

// Profile response for /me
type UserProfileResponse struct {
	ID        uint        `json:"id"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Tel       string      `json:"tel"`
	CreatedAt time.Time   `json:"createdAt"`
}

func profileOf(u models.User) UserProfileResponse {
	return UserProfileResponse{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Tel:       u.Tel,
		CreatedAt: u.CreatedAt,
	}
}

/* ============================== Handler ================================= */

type Handler struct {
	db     *gorm.DB
	tokens *Tokens
}

func NewHandler(db *gorm.DB, tokens *Tokens) *Handler { return &Handler{db: db, tokens: tokens} }

/* =============================== Signup ================================= */

// @Summary      Sign up
// @Description  Register a new client or designer
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  SignupRequest  true  "Signup payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      409      {object}  models.ErrorResponse  "email already exists"
// @Router       /signup [post]
func (h *Handler) Signup(c *fiber.Ctx) error {
	var in SignupRequest
	if err := c.BodyParser(&in); err != nil {
		return apperror.Validation("Invalid request body")
	}

	// Normalize email
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var n int64
	if err := h.db.WithContext(c.UserContext()).Model(&models.User{}).Where("email = ?", in.Email).Count(&n).Error; err != nil {
		return apperror.CreationFailed("Signup failed", err)
	}
	if n > 0 {
		return apperror.Conflict("Email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperror.CreationFailed("Signup failed", err)
	}

	u := models.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         models.Role(in.UserType),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Tel:          strings.TrimSpace(in.Tel),
	}
	if err := h.db.WithContext(c.UserContext()).Create(&u).Error; err != nil {
		// lost a race against a concurrent signup with the same email
		return apperror.Conflict("Email already exists")
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		return apperror.Internal("Could not issue token", err)
	}
	return c.JSON(AuthResponse{Token: token, Role: string(u.Role), User: profileOf(u)})
}

/* ================================ Login ================================= */

// @Summary      Login
// @Description  Authenticate and receive a JWT
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  LoginRequest  true  "Login payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /login [post]
func (h *Handler) Login(c *fiber.Ctx) error {
	var in LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return apperror.Validation("Invalid request body")
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	if err := h.db.WithContext(c.UserContext()).Where("email = ?", in.Email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Unauthenticated("Invalid email or password")
		}
		return apperror.Internal("Login failed", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return apperror.Unauthenticated("Invalid email or password")
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		return apperror.Internal("Could not issue token", err)
	}
	return c.JSON(AuthResponse{Token: token, Role: string(u.Role), User: profileOf(u)})
}

/* ================================= Me =================================== */

// @Summary      Get current user profile
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  UserProfileResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /me [get]
func (h *Handler) Me(c *fiber.Ctx) error {
	id, err := CurrentIdentity(c)
	if err != nil {
		return err
	}

	var u models.User
	if err := h.db.WithContext(c.UserContext()).First(&u, id.UserID).Error; err != nil {
		return apperror.Unauthenticated("")
	}
	return c.JSON(profileOf(u))
}
