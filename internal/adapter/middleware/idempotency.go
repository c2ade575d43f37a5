package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	idempotencyKey    = "idempotency_key"
	maxKeyLength      = 128
)

// Idempotency exposes the Idempotency-Key header to handlers, which use it as
// the ledger reference when the body carries none. Replays are answered by
// the engine from the ledger, so nothing is cached here.
func Idempotency() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(IdempotencyHeader)
		if key == "" {
			return c.Next()
		}
		if len(key) > maxKeyLength {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Idempotency-Key is too long", "code": "invalid_input"})
		}
		c.Locals(idempotencyKey, key)
		return c.Next()
	}
}

func IdempotencyKey(c *fiber.Ctx) string {
	key, _ := c.Locals(idempotencyKey).(string)
	return key
}

// MarkReplay flags responses that were answered from an earlier request.
func MarkReplay(c *fiber.Ctx, replayed bool) {
	if replayed {
		c.Set("X-Idempotency-Hit", "true")
	}
}
