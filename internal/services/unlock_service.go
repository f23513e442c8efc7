package services

import (
	"context"
	"fmt"
	"log"

	"birdpage/internal/models"
	"birdpage/internal/repositories"
)

// UnlockService lifts the paywall of profile pages.
type UnlockService struct {
	repo  repositories.UserRepository
	pages PageInvalidator
}

// NewUnlockService creates a new UnlockService. pages may be nil when no page
// cache is configured.
func NewUnlockService(repo repositories.UserRepository, pages PageInvalidator) *UnlockService {
	return &UnlockService{
		repo:  repo,
		pages: pages,
	}
}

// Unlock marks the page of username unlocked through channel. The last channel
// applied wins; the page never goes back to locked.
func (s *UnlockService) Unlock(ctx context.Context, username string, channel models.UnlockType) (*models.User, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUnlockType, channel)
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetUnlocked(ctx, user.Username, channel); err != nil {
		return nil, err
	}
	user.Unlocked = true
	user.UnlockType = channel
	log.Printf("Unlocked %s via %s", user.Username, channel)

	if s.pages != nil {
		if err := s.pages.Invalidate(ctx, user.Username); err != nil {
			log.Printf("Warning: failed to invalidate cached page of %s: %v", user.Username, err)
		}
	}
	return user, nil
}
