package scrapers

import (
	"context"
	"encoding/json"
	"fmt"

	"birdpage/internal/models"
	"birdpage/pkg/apify"
)

// MaxTweets is the number of recent posts requested per profile.
const MaxTweets = 12

// TweetFields is the projection applied to every returned post.
var TweetFields = []string{
	"likeCount",
	"retweetCount",
	"replyCount",
	"quoteCount",
	"viewCount",
	"bookmarkCount",
	"text",
	"type",
	"isReply",
	"isRetweet",
	"isQuote",
	"createdAt",
}

type tweetInput struct {
	SearchTerms   []string `json:"searchTerms"`
	MaxItems      int      `json:"maxItems"`
	Sort          string   `json:"sort"`
	TweetLanguage string   `json:"tweetLanguage"`
}

// TweetScraper fetches the latest posts of a profile through the tweet actor.
type TweetScraper struct {
	runner  ActorRunner
	actorID string
}

// NewTweetScraper creates a new TweetScraper.
func NewTweetScraper(runner ActorRunner, actorID string) *TweetScraper {
	return &TweetScraper{
		runner:  runner,
		actorID: actorID,
	}
}

// ScrapeTweets returns up to MaxTweets English posts by username, newest first.
func (s *TweetScraper) ScrapeTweets(ctx context.Context, username string) ([]json.RawMessage, error) {
	username = models.NormalizeUsername(username)
	input := tweetInput{
		SearchTerms:   []string{"from:" + username},
		MaxItems:      MaxTweets,
		Sort:          "Latest",
		TweetLanguage: "en",
	}

	items, err := s.runner.RunActor(ctx, s.actorID, input, apify.DatasetOptions{
		Fields: TweetFields,
		Limit:  MaxTweets,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scrape tweets of %s: %w", username, err)
	}
	return items, nil
}
