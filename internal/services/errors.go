package services

import "errors"

var (
	// ErrInvalidUsername is returned when a username is empty after normalization.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrScrape wraps every failure of the scraping vendor.
	ErrScrape = errors.New("scrape failed")
	// ErrTweetScrapeAlreadyStarted is returned when another caller already claimed the tweet scrape.
	ErrTweetScrapeAlreadyStarted = errors.New("tweet scrape already started")
	// ErrInvalidUnlockType is returned for an unknown unlock channel.
	ErrInvalidUnlockType = errors.New("invalid unlock type")
	// ErrEmailService wraps transport failures and rejections of the email vendor.
	ErrEmailService = errors.New("email service error")
)
