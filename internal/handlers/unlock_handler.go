package handlers

import (
	"log"

	"birdpage/internal/middleware"
	"birdpage/internal/models"
	"birdpage/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// PaymentSucceededEvent is the only payment webhook event that unlocks a page.
const PaymentSucceededEvent = "payment.succeeded"

// UnlockHandler handles contact capture, paywall unlocks and admin tooling.
type UnlockHandler struct {
	contacts      *services.ContactService
	unlocks       *services.UnlockService
	profiles      *services.ProfileService
	auth          *services.AuthService
	webhookSecret string
	validate      *validator.Validate
}

// NewUnlockHandler creates a new UnlockHandler.
func NewUnlockHandler(
	contacts *services.ContactService,
	unlocks *services.UnlockService,
	profiles *services.ProfileService,
	auth *services.AuthService,
	webhookSecret string,
) *UnlockHandler {
	return &UnlockHandler{
		contacts:      contacts,
		unlocks:       unlocks,
		profiles:      profiles,
		auth:          auth,
		webhookSecret: webhookSecret,
		validate:      validator.New(),
	}
}

// RegisterRoutes registers the unlock routes with the Fiber app.
func (h *UnlockHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/contacts", h.HandleCreateContact)
	router.Post("/users/:username/unlock/email", h.HandleEmailUnlock)
	router.Post("/webhooks/payment", middleware.WebhookSecretRequired(h.webhookSecret), h.HandlePaymentWebhook)

	adminRoutes := router.Group("/admin", middleware.AuthRequired(h.auth))
	adminRoutes.Post("/users/:username/unlock", h.HandleFreeUnlock)
	adminRoutes.Post("/users/:username/refresh", h.HandleRefresh)
}

// EmailRequest carries a visitor's email address.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleCreateContact registers a visitor with the email vendor.
func (h *UnlockHandler) HandleCreateContact(c *fiber.Ctx) error {
	var req EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	if err := h.contacts.CreateContact(c.UserContext(), req.Email); err != nil {
		log.Printf("Error creating contact: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Could not create contact",
			"error":   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Contact created",
	})
}

// HandleEmailUnlock unlocks a page in exchange for the visitor's email.
func (h *UnlockHandler) HandleEmailUnlock(c *fiber.Ctx) error {
	username := c.Params("username")
	var req EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	user, err := h.contacts.UnlockGeneration(c.UserContext(), username, req.Email)
	if err != nil {
		log.Printf("Error unlocking %s by email: %v", username, err)
		return errorResponse(c, "Could not unlock profile", err)
	}
	return c.JSON(unlockedResponse(user))
}

// PaymentWebhookRequest is the payload posted by the payment provider.
type PaymentWebhookRequest struct {
	Event    string `json:"event" validate:"required"`
	Metadata struct {
		Username string `json:"username"`
	} `json:"metadata"`
}

// HandlePaymentWebhook unlocks a page once its payment succeeded. Other events
// are acknowledged and ignored.
func (h *UnlockHandler) HandlePaymentWebhook(c *fiber.Ctx) error {
	var req PaymentWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	if req.Event != PaymentSucceededEvent {
		log.Printf("Ignoring payment webhook event %q", req.Event)
		return c.JSON(fiber.Map{"message": "Event ignored"})
	}
	if req.Metadata.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   "metadata.username is required",
		})
	}

	user, err := h.unlocks.Unlock(c.UserContext(), req.Metadata.Username, models.UnlockPayment)
	if err != nil {
		log.Printf("Error unlocking %s after payment: %v", req.Metadata.Username, err)
		return errorResponse(c, "Could not unlock profile", err)
	}
	return c.JSON(unlockedResponse(user))
}

// HandleFreeUnlock lets an admin unlock a page without payment.
func (h *UnlockHandler) HandleFreeUnlock(c *fiber.Ctx) error {
	username := c.Params("username")
	user, err := h.unlocks.Unlock(c.UserContext(), username, models.UnlockFree)
	if err != nil {
		log.Printf("Error granting free unlock of %s: %v", username, err)
		return errorResponse(c, "Could not unlock profile", err)
	}
	log.Printf("Admin %v granted free unlock of %s", c.Locals(middleware.AdminLocalsKey), user.Username)
	return c.JSON(unlockedResponse(user))
}

// HandleRefresh lets an admin re-scrape a stored profile.
func (h *UnlockHandler) HandleRefresh(c *fiber.Ctx) error {
	username := c.Params("username")
	user, err := h.profiles.Refresh(c.UserContext(), username)
	if err != nil {
		log.Printf("Error refreshing %s: %v", username, err)
		return errorResponse(c, "Could not refresh profile", err)
	}
	return c.JSON(user)
}

func unlockedResponse(user *models.User) fiber.Map {
	return fiber.Map{
		"message":     "Profile unlocked",
		"username":    user.Username,
		"unlocked":    user.Unlocked,
		"unlock_type": user.UnlockType,
	}
}
