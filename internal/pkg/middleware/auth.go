package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/pulseboard/pulseboard/internal/pkg/env"
)

// CronAuth guards the unattended batch sync trigger. When CRON_SECRET is
// configured, the caller must present it as a bearer token; the compare is
// constant-time. An empty secret leaves the endpoint open (dev setups).
func CronAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret := strings.TrimSpace(env.GetEnv("CRON_SECRET", ""))
		if secret == "" {
			return c.Next()
		}

		token := extractBearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing bearer token"})
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid cron secret"})
		}

		return c.Next()
	}
}

// AdminAuth guards operator endpoints. The bearer token is verified against
// the bcrypt hash in ADMIN_TOKEN_HASH, so the plaintext credential never
// lives in configuration. No hash means admin surfaces are disabled.
func AdminAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		hash := strings.TrimSpace(env.GetEnv("ADMIN_TOKEN_HASH", ""))
		if hash == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Admin access is not configured"})
		}

		token := extractBearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing bearer token"})
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid admin token"})
		}

		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
