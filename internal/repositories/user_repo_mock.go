package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"birdpage/internal/models"

	"github.com/google/uuid"
)

// MockUserRepository is an in-memory implementation of UserRepository.
type MockUserRepository struct {
	users map[string]models.User
	mu    sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]models.User),
	}
}

// GetByUsername returns a user by username, ignoring case.
func (r *MockUserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := models.NormalizeUsername(username)
	user, ok := r.users[key]
	if !ok {
		return nil, fmt.Errorf("user with username %s: %w", key, ErrUserNotFound)
	}
	clone := cloneUser(user)
	return &clone, nil
}

// ListUsernames returns all stored usernames in ascending order.
func (r *MockUserRepository) ListUsernames(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	usernames := make([]string, 0, len(r.users))
	for key := range r.users {
		usernames = append(usernames, key)
	}
	sort.Strings(usernames)
	return usernames, nil
}

// ListTop returns completed profiles ordered by followers.
func (r *MockUserRepository) ListTop(_ context.Context, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		if u.TweetScrapeCompleted {
			users = append(users, cloneUser(u))
		}
	}
	sortByFollowers(users)
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// ListFeatured returns the stored subset of usernames ordered by followers.
func (r *MockUserRepository) ListFeatured(_ context.Context, usernames []string) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(usernames))
	users := make([]models.User, 0, len(usernames))
	for _, name := range usernames {
		key := models.NormalizeUsername(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		if u, ok := r.users[key]; ok {
			users = append(users, cloneUser(u))
		}
	}
	sortByFollowers(users)
	return users, nil
}

// Create adds a new user.
func (r *MockUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.Username = models.NormalizeUsername(user.Username)
	if _, ok := r.users[user.Username]; ok {
		return fmt.Errorf("failed to create user %s: %w", user.Username, ErrUsernameTaken)
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.Username] = cloneUser(*user)
	return nil
}

// Update replaces the stored user with the same username; absent users are ignored.
func (r *MockUserRepository) Update(_ context.Context, user *models.User) error {
	if user == nil || strings.TrimSpace(user.Username) == "" {
		return ErrMissingUsername
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user.Username = models.NormalizeUsername(user.Username)
	existing, ok := r.users[user.Username]
	if !ok {
		return nil
	}
	updated := cloneUser(*user)
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	r.users[user.Username] = updated
	return nil
}

// UpdateProfileFields overwrites the scraped profile fields only.
func (r *MockUserRepository) UpdateProfileFields(_ context.Context, username string, profile *models.User) error {
	if profile == nil {
		return fmt.Errorf("update profile of %s: nil profile", username)
	}
	return r.mutate(username, func(u *models.User) {
		u.Name = profile.Name
		u.ProfilePicture = profile.ProfilePicture
		u.Description = profile.Description
		u.Location = profile.Location
		u.Followers = profile.Followers
		u.FullProfile = profile.FullProfile
		u.ProfileScraped = true
	})
}

// MarkTweetScrapeStarted flips the started flag under the write lock.
func (r *MockUserRepository) MarkTweetScrapeStarted(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := models.NormalizeUsername(username)
	u, ok := r.users[key]
	if !ok || u.TweetScrapeStarted {
		return false, nil
	}
	u.TweetScrapeStarted = true
	u.UpdatedAt = time.Now()
	r.users[key] = u
	return true, nil
}

// SaveTweets stores posts and completes the tweet scrape.
func (r *MockUserRepository) SaveTweets(_ context.Context, username string, tweets []json.RawMessage) error {
	if tweets == nil {
		tweets = []json.RawMessage{}
	}
	return r.mutate(username, func(u *models.User) {
		u.Tweets = tweets
		u.TweetScrapeCompleted = true
		u.Error = nil
	})
}

// SetTweetScrapeError records a tweet scrape failure.
func (r *MockUserRepository) SetTweetScrapeError(_ context.Context, username string, reason string) error {
	return r.mutate(username, func(u *models.User) {
		u.Error = &reason
		u.TweetScrapeCompleted = false
	})
}

// SetUnlocked flags the page as unlocked.
func (r *MockUserRepository) SetUnlocked(_ context.Context, username string, channel models.UnlockType) error {
	return r.mutate(username, func(u *models.User) {
		u.Unlocked = true
		u.UnlockType = channel
	})
}

func (r *MockUserRepository) mutate(username string, fn func(u *models.User)) error {
	key := models.NormalizeUsername(username)
	if key == "" {
		return ErrMissingUsername
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[key]
	if !ok {
		return nil
	}
	fn(&u)
	u.UpdatedAt = time.Now()
	r.users[key] = cloneUser(u)
	return nil
}

func sortByFollowers(users []models.User) {
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Followers > users[j].Followers
	})
}

// cloneUser copies the slice and pointer fields so callers cannot mutate stored state.
func cloneUser(u models.User) models.User {
	if u.FullProfile != nil {
		u.FullProfile = append(json.RawMessage(nil), u.FullProfile...)
	}
	if u.Tweets != nil {
		tweets := make([]json.RawMessage, len(u.Tweets))
		for i, t := range u.Tweets {
			tweets[i] = append(json.RawMessage(nil), t...)
		}
		u.Tweets = tweets
	}
	if u.Error != nil {
		msg := *u.Error
		u.Error = &msg
	}
	return u
}
