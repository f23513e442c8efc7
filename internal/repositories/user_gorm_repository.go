package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"birdpage/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// GetByUsername retrieves a user by their username, ignoring case.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	key := models.NormalizeUsername(username)

	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "username = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with username %s: %w", key, ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to get user by username %s: %w", key, err)
	}
	return &user, nil
}

// ListUsernames returns the username of every stored profile.
func (r *GORMUserRepository) ListUsernames(ctx context.Context) ([]string, error) {
	var usernames []string
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Order("username").
		Pluck("username", &usernames).Error; err != nil {
		return nil, fmt.Errorf("failed to list usernames: %w", err)
	}
	return usernames, nil
}

// ListTop returns the fully onboarded profiles with the most followers.
func (r *GORMUserRepository) ListTop(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("tweet_scrape_completed = ?", true).
		Order("followers DESC").
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list top users: %w", err)
	}
	return users, nil
}

// ListFeatured returns the stored profiles whose username is in usernames,
// most followed first.
func (r *GORMUserRepository) ListFeatured(ctx context.Context, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return []models.User{}, nil
	}
	keys := make([]string, 0, len(usernames))
	for _, u := range usernames {
		keys = append(keys, models.NormalizeUsername(u))
	}

	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("username IN ?", keys).
		Order("followers DESC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list featured users: %w", err)
	}
	return users, nil
}

// Create inserts a new user. The unique index on username turns a concurrent
// duplicate insert into ErrUsernameTaken.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	user.Username = models.NormalizeUsername(user.Username)
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create user %s: %w", user.Username, ErrUsernameTaken)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Update writes every column of the row matching user.Username. A missing row
// is not an error and nothing is inserted.
func (r *GORMUserRepository) Update(ctx context.Context, user *models.User) error {
	if user == nil || strings.TrimSpace(user.Username) == "" {
		return ErrMissingUsername
	}
	user.Username = models.NormalizeUsername(user.Username)

	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", user.Username).
		Select("*").
		Omit("id", "username", "created_at").
		Updates(user)
	if res.Error != nil {
		return fmt.Errorf("failed to update user %s: %w", user.Username, res.Error)
	}
	return nil
}

// UpdateProfileFields rewrites the scraped profile columns and leaves the
// unlock and tweet state alone.
func (r *GORMUserRepository) UpdateProfileFields(ctx context.Context, username string, profile *models.User) error {
	if profile == nil {
		return fmt.Errorf("update profile of %s: nil profile", username)
	}
	return r.updateColumns(ctx, username, &models.User{
		Name:           profile.Name,
		ProfilePicture: profile.ProfilePicture,
		Description:    profile.Description,
		Location:       profile.Location,
		Followers:      profile.Followers,
		FullProfile:    profile.FullProfile,
		ProfileScraped: true,
	}, "name", "profile_picture", "description", "location", "followers", "full_profile", "profile_scraped")
}

// MarkTweetScrapeStarted sets tweet_scrape_started in a single conditional
// statement so only one caller can win the flag.
func (r *GORMUserRepository) MarkTweetScrapeStarted(ctx context.Context, username string) (bool, error) {
	key := models.NormalizeUsername(username)

	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ? AND tweet_scrape_started = ?", key, false).
		Update("tweet_scrape_started", true)
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark tweet scrape started for %s: %w", key, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SaveTweets stores the scraped posts and completes the tweet scrape.
func (r *GORMUserRepository) SaveTweets(ctx context.Context, username string, tweets []json.RawMessage) error {
	if tweets == nil {
		tweets = []json.RawMessage{}
	}
	return r.updateColumns(ctx, username, &models.User{
		Tweets:               tweets,
		TweetScrapeCompleted: true,
	}, "tweets", "tweet_scrape_completed", "error")
}

// SetTweetScrapeError records why the tweet scrape failed.
func (r *GORMUserRepository) SetTweetScrapeError(ctx context.Context, username string, reason string) error {
	return r.updateColumns(ctx, username, &models.User{
		Error: &reason,
	}, "error", "tweet_scrape_completed")
}

// SetUnlocked flags the page as unlocked through channel.
func (r *GORMUserRepository) SetUnlocked(ctx context.Context, username string, channel models.UnlockType) error {
	return r.updateColumns(ctx, username, &models.User{
		Unlocked:   true,
		UnlockType: channel,
	}, "unlocked", "unlock_type")
}

// updateColumns writes only columns of the row matching username, zero values included.
func (r *GORMUserRepository) updateColumns(ctx context.Context, username string, values *models.User, columns ...string) error {
	key := models.NormalizeUsername(username)
	if key == "" {
		return ErrMissingUsername
	}

	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", key).
		Select(columns).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update %v of user %s: %w", columns, key, res.Error)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
