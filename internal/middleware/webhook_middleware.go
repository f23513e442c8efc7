package middleware

import (
	"crypto/subtle"
	"log"

	"github.com/gofiber/fiber/v2"
)

// WebhookSecretHeader carries the shared secret of the payment provider.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookSecretRequired rejects webhook calls that do not present secret.
// An empty secret rejects every call.
func WebhookSecretRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get(WebhookSecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			log.Printf("Rejected webhook call from %s", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid webhook secret",
			})
		}
		return c.Next()
	}
}
