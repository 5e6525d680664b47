package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/roamfox/roamfox/internal/pkg/env"
)

// AdminAPIKeyMiddleware authenticates admin back-office requests carrying
// the configured admin API key. Keys are compared as SHA-256 digests in
// constant time.
func AdminAPIKeyMiddleware() fiber.Handler {
	configured := env.GetEnv("ADMIN_API_KEY", "")
	configuredHash := sha256.Sum256([]byte(configured))

	return func(c *fiber.Ctx) error {
		if configured == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Admin API key not configured"})
		}

		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		presentedHash := sha256.Sum256([]byte(apiKey))
		if subtle.ConstantTimeCompare(configuredHash[:], presentedHash[:]) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
		}

		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
