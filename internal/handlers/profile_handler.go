package handlers

import (
	"context"
	"encoding/json"
	"log"

	"birdpage/internal/models"
	"birdpage/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// PageCache serves rendered profile pages.
type PageCache interface {
	Get(ctx context.Context, username string) ([]byte, bool, error)
	Set(ctx context.Context, username string, page []byte) error
}

// ProfileHandler handles HTTP requests for profiles and their posts.
type ProfileHandler struct {
	profiles *services.ProfileService
	tweets   *services.TweetService
	pages    PageCache
	validate *validator.Validate
}

// NewProfileHandler creates a new ProfileHandler. pages may be nil.
func NewProfileHandler(profiles *services.ProfileService, tweets *services.TweetService, pages PageCache) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		tweets:   tweets,
		pages:    pages,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the profile routes with the Fiber app.
func (h *ProfileHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/profiles", h.HandleAcquire)

	userRoutes := router.Group("/users")
	userRoutes.Get("/", h.HandleListUsernames)
	userRoutes.Get("/top", h.HandleListTop)
	userRoutes.Get("/featured", h.HandleListFeatured)
	userRoutes.Get("/:username", h.HandleGetProfile)
	userRoutes.Post("/:username/tweets", h.HandleScrapeTweets)
}

// AcquireRequest is the body of a profile onboarding request.
type AcquireRequest struct {
	Username string `json:"username" validate:"required,max=50"`
}

// HandleAcquire onboards a username and tells the caller where the profile lives.
func (h *ProfileHandler) HandleAcquire(c *fiber.Ctx) error {
	var req AcquireRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing acquire request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	result, err := h.profiles.Acquire(c.UserContext(), req.Username)
	if err != nil {
		log.Printf("Error acquiring profile %s: %v", req.Username, err)
		return errorResponse(c, "Could not acquire profile", err)
	}

	if result.Status == services.AcquireExists {
		return c.JSON(fiber.Map{
			"status":   result.Status,
			"username": result.User.Username,
			"location": "/users/" + result.User.Username,
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":   result.Status,
		"username": result.User.Username,
		"location": "/users/" + result.User.Username,
		"user":     result.User,
	})
}

// HandleListUsernames returns every stored username.
func (h *ProfileHandler) HandleListUsernames(c *fiber.Ctx) error {
	usernames, err := h.profiles.ListUsernames(c.UserContext())
	if err != nil {
		log.Printf("Error listing usernames: %v", err)
		return errorResponse(c, "Could not list users", err)
	}
	return c.JSON(usernames)
}

// HandleListTop returns the most followed onboarded profiles.
func (h *ProfileHandler) HandleListTop(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	users, err := h.profiles.ListTop(c.UserContext(), limit)
	if err != nil {
		log.Printf("Error listing top users: %v", err)
		return errorResponse(c, "Could not list top users", err)
	}
	return c.JSON(users)
}

// HandleListFeatured returns the featured profiles that are stored.
func (h *ProfileHandler) HandleListFeatured(c *fiber.Ctx) error {
	users, err := h.profiles.ListFeatured(c.UserContext())
	if err != nil {
		log.Printf("Error listing featured users: %v", err)
		return errorResponse(c, "Could not list featured users", err)
	}
	return c.JSON(users)
}

// HandleGetProfile returns one profile, from the page cache when possible.
func (h *ProfileHandler) HandleGetProfile(c *fiber.Ctx) error {
	username := models.NormalizeUsername(c.Params("username"))
	ctx := c.UserContext()

	if h.pages != nil {
		page, ok, err := h.pages.Get(ctx, username)
		if err != nil {
			log.Printf("Warning: page cache read for %s failed: %v", username, err)
		} else if ok {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			c.Set("X-Cache", "HIT")
			return c.Send(page)
		}
	}

	user, err := h.profiles.GetProfile(ctx, username)
	if err != nil {
		return errorResponse(c, "Could not retrieve profile", err)
	}

	page, err := json.Marshal(user)
	if err != nil {
		return errorResponse(c, "Could not encode profile", err)
	}
	if h.pages != nil {
		if err := h.pages.Set(ctx, username, page); err != nil {
			log.Printf("Warning: page cache write for %s failed: %v", username, err)
		}
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set("X-Cache", "MISS")
	return c.Send(page)
}

// HandleScrapeTweets triggers the tweet scrape of a profile without waiting for it.
func (h *ProfileHandler) HandleScrapeTweets(c *fiber.Ctx) error {
	username := c.Params("username")
	if err := h.tweets.Enqueue(c.UserContext(), username); err != nil {
		log.Printf("Error enqueuing tweet scrape for %s: %v", username, err)
		return errorResponse(c, "Could not start tweet scrape", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message":  "Tweet scrape started",
		"username": username,
	})
}
