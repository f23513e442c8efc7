package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"birdpage/internal/models"
	"birdpage/internal/repositories"

	"github.com/go-playground/validator/v10"
)

// AcquireStatus tells the caller where to navigate after an acquisition.
type AcquireStatus string

const (
	// AcquireExists means the profile was already stored; nothing was written.
	AcquireExists AcquireStatus = "exists"
	// AcquireCreated means the profile was scraped and inserted.
	AcquireCreated AcquireStatus = "created"
)

// AcquireResult is the outcome of a successful acquisition.
type AcquireResult struct {
	Status AcquireStatus
	User   *models.User
}

// ProfileService handles onboarding and reading of profiles.
type ProfileService struct {
	repo     repositories.UserRepository
	scraper  ProfileScraper
	pages    PageInvalidator
	validate *validator.Validate
}

// NewProfileService creates a new ProfileService. pages may be nil.
func NewProfileService(repo repositories.UserRepository, scraper ProfileScraper, pages PageInvalidator) *ProfileService {
	return &ProfileService{
		repo:     repo,
		scraper:  scraper,
		pages:    pages,
		validate: validator.New(),
	}
}

// Acquire onboards username. A stored profile is returned as is; otherwise the
// profile is scraped once and inserted. On a scrape failure nothing is stored.
func (s *ProfileService) Acquire(ctx context.Context, username string) (*AcquireResult, error) {
	key := models.NormalizeUsername(username)
	if key == "" {
		return nil, ErrInvalidUsername
	}

	existing, err := s.repo.GetByUsername(ctx, key)
	if err == nil {
		return &AcquireResult{Status: AcquireExists, User: existing}, nil
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, err
	}

	draft, err := s.scraper.ScrapeProfile(ctx, key)
	if err != nil {
		log.Printf("Scrape of profile %s failed: %v", key, err)
		return nil, fmt.Errorf("%w: %w", ErrScrape, err)
	}

	draft.Username = key
	draft.ProfileScraped = true
	draft.Error = nil
	if err := s.validate.Struct(draft); err != nil {
		return nil, fmt.Errorf("scraped profile %s is invalid: %w", key, err)
	}

	if err := s.repo.Create(ctx, draft); err != nil {
		if errors.Is(err, repositories.ErrUsernameTaken) {
			// Lost the race against a concurrent onboarding of the same username.
			winner, getErr := s.repo.GetByUsername(ctx, key)
			if getErr != nil {
				return nil, getErr
			}
			return &AcquireResult{Status: AcquireExists, User: winner}, nil
		}
		return nil, err
	}

	log.Printf("Onboarded profile %s (%d followers)", key, draft.Followers)
	return &AcquireResult{Status: AcquireCreated, User: draft}, nil
}

// Refresh re-scrapes a stored profile and overwrites its profile fields.
// Only those columns are written, so an unlock or tweet outcome landing while
// the scrape runs is kept.
func (s *ProfileService) Refresh(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	draft, err := s.scraper.ScrapeProfile(ctx, user.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScrape, err)
	}
	draft.Username = user.Username
	draft.ProfileScraped = true
	if err := s.validate.Struct(draft); err != nil {
		return nil, fmt.Errorf("scraped profile %s is invalid: %w", user.Username, err)
	}

	if err := s.repo.UpdateProfileFields(ctx, user.Username, draft); err != nil {
		return nil, err
	}
	if s.pages != nil {
		if err := s.pages.Invalidate(ctx, user.Username); err != nil {
			log.Printf("Warning: failed to invalidate cached page of %s: %v", user.Username, err)
		}
	}
	return s.repo.GetByUsername(ctx, user.Username)
}

// GetProfile retrieves a single profile.
func (s *ProfileService) GetProfile(ctx context.Context, username string) (*models.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// ListUsernames returns every stored username.
func (s *ProfileService) ListUsernames(ctx context.Context) ([]string, error) {
	return s.repo.ListUsernames(ctx)
}

// ListTop returns the most followed fully onboarded profiles.
func (s *ProfileService) ListTop(ctx context.Context, limit int) ([]models.User, error) {
	return s.repo.ListTop(ctx, limit)
}

// ListFeatured returns the stored profiles of the featured allow-list.
func (s *ProfileService) ListFeatured(ctx context.Context) ([]models.User, error) {
	return s.repo.ListFeatured(ctx, repositories.FeaturedUsernames)
}
