package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const ownerLocal = "owner"

// Claims identify the plan owner through the subject claim.
type Claims struct {
	jwt.RegisteredClaims
}

// AuthRequired middleware checks for a valid HMAC-signed bearer token.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return Error(c, fiber.StatusUnauthorized, "missing authorization header")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return Error(c, fiber.StatusUnauthorized, "invalid authorization format")
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return []byte(secret), nil
		})
		if err != nil {
			return Error(c, fiber.StatusUnauthorized, "invalid or expired token")
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid || claims.Subject == "" {
			return Error(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		c.Locals(ownerLocal, claims.Subject)
		return c.Next()
	}
}

// IssueToken signs a bearer token for owner.
func IssueToken(secret, owner string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   owner,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// GetOwner extracts the authenticated owner from the context
func GetOwner(c *fiber.Ctx) string {
	if owner, ok := c.Locals(ownerLocal).(string); ok {
		return owner
	}
	return ""
}
