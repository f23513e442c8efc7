package repositories

import (
	"context"
	"encoding/json"

	"birdpage/internal/models"
)

// DefaultTopLimit is the number of profiles returned by ListTop when no limit is given.
const DefaultTopLimit = 12

// FeaturedUsernames is the fixed allow-list of profiles surfaced on the landing page
// regardless of their follower count.
var FeaturedUsernames = []string{
	"elonmusk",
	"naval",
	"paulg",
	"sama",
	"levelsio",
	"karpathy",
	"balajis",
	"patrickc",
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsernames(ctx context.Context) ([]string, error)
	ListTop(ctx context.Context, limit int) ([]models.User, error)
	ListFeatured(ctx context.Context, usernames []string) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	// UpdateProfileFields overwrites only the scraped profile columns of
	// username from profile and marks the profile scraped.
	UpdateProfileFields(ctx context.Context, username string, profile *models.User) error
	// MarkTweetScrapeStarted flips tweet_scrape_started from false to true and
	// reports whether this call was the one that flipped it.
	MarkTweetScrapeStarted(ctx context.Context, username string) (bool, error)
	// SaveTweets stores posts, marks the scrape completed and clears the error.
	SaveTweets(ctx context.Context, username string, tweets []json.RawMessage) error
	// SetTweetScrapeError overwrites the error and leaves the scrape incomplete.
	SetTweetScrapeError(ctx context.Context, username string, reason string) error
	// SetUnlocked marks the page unlocked through channel.
	SetUnlocked(ctx context.Context, username string, channel models.UnlockType) error
}
