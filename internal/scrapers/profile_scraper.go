package scrapers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"birdpage/internal/models"
	"birdpage/pkg/apify"
)

const (
	thumbnailSuffix = "_normal."
	largeSuffix     = "_400x400."
)

type profileInput struct {
	TwitterHandles []string `json:"twitterHandles"`
	GetFollowers   bool     `json:"getFollowers"`
	GetFollowing   bool     `json:"getFollowing"`
	MaxItems       int      `json:"maxItems"`
}

type profileItem struct {
	UserName       string    `json:"userName"`
	Name           string    `json:"name"`
	ProfilePicture string    `json:"profilePicture"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	Followers      flexInt64 `json:"followers"`
}

// ProfileScraper fetches the metadata of one profile through the profile actor.
type ProfileScraper struct {
	runner  ActorRunner
	actorID string
}

// NewProfileScraper creates a new ProfileScraper.
func NewProfileScraper(runner ActorRunner, actorID string) *ProfileScraper {
	return &ProfileScraper{
		runner:  runner,
		actorID: actorID,
	}
}

// ScrapeProfile runs the profile actor for username and returns an unsaved
// draft record built from the first result.
func (s *ProfileScraper) ScrapeProfile(ctx context.Context, username string) (*models.User, error) {
	username = models.NormalizeUsername(username)
	input := profileInput{
		TwitterHandles: []string{username},
		GetFollowers:   true,
		GetFollowing:   true,
		MaxItems:       1,
	}

	items, err := s.runner.RunActor(ctx, s.actorID, input, apify.DatasetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to scrape profile %s: %w", username, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("failed to scrape profile %s: %w", username, apify.ErrNoResults)
	}

	var item profileItem
	if err := json.Unmarshal(items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", username, err)
	}

	return &models.User{
		Username:       username,
		Name:           item.Name,
		ProfilePicture: LargePictureURL(item.ProfilePicture),
		Description:    item.Description,
		Location:       item.Location,
		Followers:      int64(item.Followers),
		FullProfile:    items[0],
	}, nil
}

// LargePictureURL rewrites a thumbnail avatar URL to its 400x400 variant.
func LargePictureURL(pictureURL string) string {
	return strings.Replace(pictureURL, thumbnailSuffix, largeSuffix, 1)
}

// flexInt64 accepts a JSON number, a numeric string or null.
type flexInt64 int64

func (n *flexInt64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" {
			*n = 0
			return nil
		}
		data = []byte(s)
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid count %q: %w", data, err)
	}
	*n = flexInt64(v)
	return nil
}
