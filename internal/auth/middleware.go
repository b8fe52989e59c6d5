package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/aldoetobex/interior-mp-backend/pkg/apperror"
	"github.com/aldoetobex/interior-mp-backend/pkg/models"
)

/* ============================== JWT Claims ============================== */

// Claims represents the JWT payload we issue and expect.
type Claims struct {
	Sub  string `json:"sub"`  // subject email
	Role string `json:"role"` // "client" | "designer" | "admin"
	UID  uint   `json:"uid"`
	jwt.RegisteredClaims
}

/* ============================== JWT Helpers ============================= */

// Tokens signs and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the user that expires after the configured TTL.
func (t *Tokens) Issue(u models.User) (string, error) {
	now := t.now()
	claims := &Claims{
		Sub:  u.Email,
		Role: string(u.Role),
		UID:  u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies signature, algorithm and expiry.
func (t *Tokens) Parse(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, apperror.Unauthenticated("Invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Sub == "" {
		return nil, apperror.Unauthenticated("Invalid token claims")
	}
	return claims, nil
}

/* ============================== Middleware ============================== */

const identityKey = "identity"

// RequireAuth validates the bearer token and resolves the acting user from the
// database. A token whose role no longer matches the stored user is rejected.
func RequireAuth(db *gorm.DB, tokens *Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(h, "Bearer ") {
			return apperror.Unauthenticated("Missing bearer token")
		}
		claims, err := tokens.Parse(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
		if err != nil {
			return err
		}

		var u models.User
		if err := db.WithContext(c.UserContext()).Where("email = ?", claims.Sub).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.Unauthenticated("Unknown user")
			}
			return apperror.Internal("Could not resolve user", err)
		}
		if string(u.Role) != claims.Role {
			return apperror.Unauthenticated("Token role is stale")
		}

		SetIdentity(c, Identity{UserID: u.ID, Email: u.Email, Role: u.Role})
		return c.Next()
	}
}

// SetIdentity stores the acting user in the request context.
func SetIdentity(c *fiber.Ctx, id Identity) {
	c.Locals(identityKey, id)
}

// CurrentIdentity reads the acting user placed by RequireAuth.
func CurrentIdentity(c *fiber.Ctx) (Identity, error) {
	if id, ok := c.Locals(identityKey).(Identity); ok {
		return id, nil
	}
	return Identity{}, apperror.Unauthenticated("")
}

// MustIdentity reads the acting user or panics (programming error: route without RequireAuth).
func MustIdentity(c *fiber.Ctx) Identity {
	id, err := CurrentIdentity(c)
	if err != nil {
		panic(errors.New("identity not in context"))
	}
	return id
}

// RequireRole ensures the authenticated user has one of the given roles.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := CurrentIdentity(c)
		if err != nil {
			return err
		}
		for _, r := range roles {
			if id.Role == r {
				return c.Next()
			}
		}
		return apperror.Forbidden("")
	}
}

/* =========================== Error Formatting =========================== */

// httpCodeToString converts an HTTP status code to a short, stable string.
func httpCodeToString(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE_ENTITY"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind apperror.Kind) int {
	switch kind {
	case apperror.KindUnauthenticated:
		return fiber.StatusUnauthorized
	case apperror.KindForbidden:
		return fiber.StatusForbidden
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	case apperror.KindValidationFailed:
		return fiber.StatusBadRequest
	case apperror.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler is the global Fiber error handler; every failure leaves as
// {"error", "details", "code"}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return c.Status(StatusOf(ae.Kind)).JSON(models.ErrorResponse{
			Error:   ae.Message,
			Details: ae.Details,
			Code:    string(ae.Kind),
		})
	}

	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"
	details := ""

	// Fiber errors carry status codes
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
		if strings.TrimSpace(msg) == "" {
			msg = fiber.NewError(code).Message
		}
	} else if err != nil {
		details = err.Error()
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Error:   msg,
		Details: details,
		Code:    httpCodeToString(code),
	})
}
