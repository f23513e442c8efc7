package models

import (
	"encoding/json"
	"strings"
	"time"
)

// UnlockType records the channel through which a profile page was unlocked.
type UnlockType string

const (
	UnlockEmail   UnlockType = "email"
	UnlockPayment UnlockType = "payment"
	UnlockFree    UnlockType = "free"
)

// Valid reports whether t is one of the known unlock channels.
func (t UnlockType) Valid() bool {
	switch t {
	case UnlockEmail, UnlockPayment, UnlockFree:
		return true
	}
	return false
}

// User is a scraped social profile and the state of its public page.
type User struct {
	ID             string            `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username       string            `json:"username" gorm:"uniqueIndex:idx_users_username;type:varchar(50);not null" validate:"required,max=50"`
	Name           string            `json:"name" gorm:"type:varchar(255)" validate:"max=255"`
	ProfilePicture string            `json:"profile_picture" gorm:"type:text" validate:"omitempty,url"`
	Description    string            `json:"description" gorm:"type:text"`
	Location       string            `json:"location" gorm:"type:varchar(255)"`
	Followers      int64             `json:"followers" gorm:"index;not null;default:0" validate:"gte=0"`
	FullProfile    json.RawMessage   `json:"full_profile,omitempty" gorm:"type:text;serializer:json"`
	Tweets         []json.RawMessage `json:"tweets,omitempty" gorm:"type:text;serializer:json"`

	ProfileScraped       bool       `json:"profile_scraped" gorm:"not null;default:false"`
	TweetScrapeStarted   bool       `json:"tweet_scrape_started" gorm:"not null;default:false"`
	TweetScrapeCompleted bool       `json:"tweet_scrape_completed" gorm:"index;not null;default:false"`
	Unlocked             bool       `json:"unlocked" gorm:"not null;default:false"`
	UnlockType           UnlockType `json:"unlock_type,omitempty" gorm:"type:varchar(16)" validate:"omitempty,oneof=email payment free"`
	Error                *string    `json:"error" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name regardless of naming strategy.
func (User) TableName() string { return "users" }

// NormalizeUsername is the case-insensitive key form of a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(username), "@")))
}
