package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/env"
)

// CallbackGuardMiddleware protects the public gateway callback endpoint.
// When GATEWAY_CALLBACK_SECRET is configured, the callback URL registered
// with the gateway carries it as a path token and unmatched requests are
// rejected. Without a configured secret the endpoint is open; the handler
// stays safe anyway because unknown references are acknowledged and
// discarded.
func CallbackGuardMiddleware() fiber.Handler {
	secret := strings.TrimSpace(env.GetEnv("GATEWAY_CALLBACK_SECRET", ""))
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		token := strings.TrimSpace(c.Params("token"))
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			log.Warnf("[Callback] rejected delivery with bad token from %s", c.IP())
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return c.Next()
	}
}
