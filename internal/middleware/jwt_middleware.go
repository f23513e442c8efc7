package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
)

// AdminLocalsKey holds the subject of the admin token on the request context.
const AdminLocalsKey = "admin"

var (
	errMissingAuthorization = errors.New("authorization header is required")
	errNotBearer            = errors.New("authorization header format must be 'Bearer <token>'")
)

// TokenValidator validates admin tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (jwt.MapClaims, error)
}

// AuthRequired only lets requests carrying a valid admin JWT through and
// records the admin's name under AdminLocalsKey.
func AuthRequired(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
				"error":   err.Error(),
			})
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			log.Printf("Admin token rejected on %s %s: %v", c.Method(), c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   err.Error(),
			})
		}

		subject, _ := claims["sub"].(string)
		c.Locals(AdminLocalsKey, subject)
		return c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingAuthorization
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || strings.TrimSpace(token) == "" {
		return "", errNotBearer
	}
	return strings.TrimSpace(token), nil
}
