package services

import (
	"context"
	"encoding/json"

	"birdpage/internal/models"
	"birdpage/pkg/contacts"
)

// ProfileScraper fetches a draft profile record for a username.
type ProfileScraper interface {
	ScrapeProfile(ctx context.Context, username string) (*models.User, error)
}

// TweetScraper fetches the recent posts of a username.
type TweetScraper interface {
	ScrapeTweets(ctx context.Context, username string) ([]json.RawMessage, error)
}

// PageInvalidator drops the cached public page of a username.
type PageInvalidator interface {
	Invalidate(ctx context.Context, username string) error
}

// TweetJobPublisher hands tweet scrape jobs to a background worker.
type TweetJobPublisher interface {
	PublishTweetScrape(username string) error
}

// ContactCreator creates contacts at the email vendor.
type ContactCreator interface {
	CreateContact(ctx context.Context, contact contacts.Contact) (*contacts.Response, error)
}
