// middleware/auth.go
package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "userId"

// bearerToken reads the token from the Authorization header, the token
// cookie, or the token query parameter, in that order. Browsers cannot set
// headers on a websocket upgrade, hence the last two.
func bearerToken(c *fiber.Ctx) string {
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	if cookie := c.Cookies("token"); cookie != "" {
		return cookie
	}
	return c.Query("token")
}

// ParseToken validates an HS256 token and returns its user_id claim.
func ParseToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(401, "Invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fiber.NewError(401, "Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fiber.NewError(401, "Invalid token claims")
	}

	exp, ok := claims["exp"].(float64)
	if !ok || time.Unix(int64(exp), 0).Before(time.Now()) {
		return "", fiber.NewError(401, "Token expired")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fiber.NewError(401, "Invalid user ID format")
	}
	return userID, nil
}

// SignToken issues a token for userID. Used by tests and tooling; accounts
// are issued by the identity service in production.
func SignToken(userID, secret string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}

// AuthMiddleware rejects requests without a valid token and stores the
// caller's id for GetUserID.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			return c.Status(401).JSON(fiber.Map{"error": "Missing authorization token"})
		}

		userID, err := ParseToken(tokenString, secret)
		if err != nil {
			message := "Invalid or expired token"
			if fe, ok := err.(*fiber.Error); ok {
				message = fe.Message
			}
			return c.Status(401).JSON(fiber.Map{"error": message})
		}

		c.Locals(userIDKey, userID)
		return c.Next()
	}
}

func GetUserID(c *fiber.Ctx) (string, error) {
	userID, ok := c.Locals(userIDKey).(string)
	if !ok || userID == "" {
		return "", fiber.NewError(401, "User not authenticated")
	}
	return userID, nil
}
