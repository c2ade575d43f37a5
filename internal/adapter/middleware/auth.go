package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/security"
)

const (
	merchantIDKey = "merchant_id"
	userIDKey     = "user_id"

	UserIDHeader = "X-User-ID"
)

// KeyLookup resolves a hashed API key to the merchant that owns it.
type KeyLookup interface {
	MerchantIDForKey(ctx context.Context, keyHash string) (uuid.UUID, error)
}

// Protected authenticates merchants by a Bearer API key.
func Protected(keys KeyLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization) // "Bearer lp_live_..."
		if authHeader == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Missing API Key"})
		}

		scheme, apiKey, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" || apiKey == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid Header Format"})
		}

		// We never compare plain text keys.
		merchantID, err := keys.MerchantIDForKey(c.UserContext(), security.HashKey(apiKey))
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				slog.Error("API key lookup failed", "error", err)
			}
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid API Key"})
		}

		c.Locals(merchantIDKey, merchantID)
		return c.Next()
	}
}

// MerchantID is the authenticated merchant, or uuid.Nil outside Protected.
func MerchantID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(merchantIDKey).(uuid.UUID)
	return id
}

// UserIdentity reads the customer id set by the upstream identity layer.
func UserIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(UserIDHeader)
		if raw == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Missing " + UserIDHeader})
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid " + UserIDHeader})
		}
		c.Locals(userIDKey, id)
		return c.Next()
	}
}

func UserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(userIDKey).(uuid.UUID)
	return id
}

// AdminOnly guards operator routes with a static bearer token. An empty token
// disables them.
func AdminOnly(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "Admin API disabled"})
		}
		provided := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid admin token"})
		}
		return c.Next()
	}
}
