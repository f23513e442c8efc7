package handlers

import (
	"errors"
	"fmt"

	"birdpage/internal/repositories"
	"birdpage/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// statusFor maps workflow errors to HTTP status codes.
func statusFor(err error) int {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, repositories.ErrMissingUsername),
		errors.Is(err, services.ErrInvalidUsername),
		errors.Is(err, services.ErrInvalidUnlockType),
		errors.As(err, &validationErrors):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrTweetScrapeAlreadyStarted):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrScrape), errors.Is(err, services.ErrEmailService):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func errorResponse(c *fiber.Ctx, message string, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}

func validationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
