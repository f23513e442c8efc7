package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"birdpage/internal/models"
	"birdpage/internal/repositories"
)

// tweetScrapeAttempts is the first try plus one automatic retry.
const tweetScrapeAttempts = 2

// TweetScrapeStatus tags the outcome of a tweet scrape.
type TweetScrapeStatus string

const (
	TweetScrapeSucceeded TweetScrapeStatus = "succeeded"
	TweetScrapeFailed    TweetScrapeStatus = "failed"
)

// TweetScrapeResult is either the posts of a successful attempt or the reason
// both attempts failed.
type TweetScrapeResult struct {
	Status   TweetScrapeStatus `json:"status"`
	Tweets   []json.RawMessage `json:"tweets,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Attempts int               `json:"attempts"`
}

// TweetService enriches stored profiles with their recent posts.
type TweetService struct {
	repo      repositories.UserRepository
	scraper   TweetScraper
	publisher TweetJobPublisher
	pages     PageInvalidator
}

// NewTweetService creates a new TweetService. publisher may be nil, in which
// case Enqueue runs the scrape in a goroutine of this process. pages may be nil.
func NewTweetService(repo repositories.UserRepository, scraper TweetScraper, publisher TweetJobPublisher, pages PageInvalidator) *TweetService {
	return &TweetService{
		repo:      repo,
		scraper:   scraper,
		publisher: publisher,
		pages:     pages,
	}
}

// Process claims the tweet scrape of username and runs it with one retry. Both
// outcomes are persisted on the record before returning.
func (s *TweetService) Process(ctx context.Context, username string) (*TweetScrapeResult, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.TweetScrapeStarted {
		return nil, fmt.Errorf("%s: %w", user.Username, ErrTweetScrapeAlreadyStarted)
	}

	claimed, err := s.repo.MarkTweetScrapeStarted(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("%s: %w", user.Username, ErrTweetScrapeAlreadyStarted)
	}

	var (
		tweets  []json.RawMessage
		lastErr error
		attempt int
	)
	for attempt = 1; attempt <= tweetScrapeAttempts; attempt++ {
		tweets, lastErr = s.scraper.ScrapeTweets(ctx, user.Username)
		if lastErr == nil {
			break
		}
		log.Printf("Tweet scrape attempt %d/%d for %s failed: %v", attempt, tweetScrapeAttempts, user.Username, lastErr)
	}

	defer s.invalidatePage(ctx, user.Username)

	if lastErr != nil {
		reason := lastErr.Error()
		if err := s.repo.SetTweetScrapeError(ctx, user.Username, reason); err != nil {
			return nil, err
		}
		return &TweetScrapeResult{
			Status:   TweetScrapeFailed,
			Reason:   reason,
			Attempts: tweetScrapeAttempts,
		}, nil
	}

	if err := s.repo.SaveTweets(ctx, user.Username, tweets); err != nil {
		return nil, err
	}
	log.Printf("Stored %d tweets for %s", len(tweets), user.Username)
	return &TweetScrapeResult{
		Status:   TweetScrapeSucceeded,
		Tweets:   tweets,
		Attempts: attempt,
	}, nil
}

func (s *TweetService) invalidatePage(ctx context.Context, username string) {
	if s.pages == nil {
		return
	}
	if err := s.pages.Invalidate(ctx, username); err != nil {
		log.Printf("Warning: failed to invalidate cached page of %s: %v", username, err)
	}
}

// Enqueue triggers Process for username without waiting for it.
func (s *TweetService) Enqueue(ctx context.Context, username string) error {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user.TweetScrapeStarted {
		return fmt.Errorf("%s: %w", user.Username, ErrTweetScrapeAlreadyStarted)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishTweetScrape(user.Username); err != nil {
			return fmt.Errorf("failed to enqueue tweet scrape for %s: %w", user.Username, err)
		}
		return nil
	}

	go func(username string) {
		if _, err := s.Process(context.Background(), username); err != nil {
			log.Printf("Background tweet scrape for %s failed: %v", username, err)
		}
	}(user.Username)
	return nil
}

type tweetScrapeJob struct {
	Username string `json:"username"`
}

// HandleJob is the queue consumer entry point. Workflow outcomes are already
// persisted, so only undecodable or store-level failures are reported.
func (s *TweetService) HandleJob(body []byte) error {
	var job tweetScrapeJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("failed to decode tweet scrape job: %w", err)
	}
	if models.NormalizeUsername(job.Username) == "" {
		return fmt.Errorf("tweet scrape job: %w", ErrInvalidUsername)
	}

	result, err := s.Process(context.Background(), job.Username)
	switch {
	case errors.Is(err, ErrTweetScrapeAlreadyStarted), errors.Is(err, repositories.ErrUserNotFound):
		log.Printf("Skipping tweet scrape job for %s: %v", job.Username, err)
		return nil
	case err != nil:
		return err
	}
	log.Printf("Tweet scrape job for %s finished: %s after %d attempt(s)", job.Username, result.Status, result.Attempts)
	return nil
}
