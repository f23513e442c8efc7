package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds the process configuration.
type Config struct {
	AppPort     string
	StoreDriver string
	DatabaseDSN string
	RedisURL    string
	PageTTL     time.Duration
	RabbitMQURL string
	TweetQueue  string

	ApifyToken        string
	ApifyBaseURL      string
	ProfileActorID    string
	TweetActorID      string
	ApifyPollInterval time.Duration
	ApifyRateLimit    float64

	LoopsAPIKey   string
	LoopsBaseURL  string
	ContactSource string
	PaywallCohort string

	JWTSecret            string
	AdminUsername        string
	AdminPasswordHash    string
	PaymentWebhookSecret string
}

// SetDefaults registers the default of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DATABASE_DSN", "host=127.0.0.1 user=postgres password=postgres dbname=birdpage port=5432 sslmode=disable")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("PAGE_CACHE_TTL", "10m")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("TWEET_SCRAPE_QUEUE", "tweet_scrape_queue")

	v.SetDefault("APIFY_TOKEN", "")
	v.SetDefault("APIFY_BASE_URL", "https://api.apify.com")
	v.SetDefault("APIFY_PROFILE_ACTOR_ID", "apidojo~twitter-user-scraper")
	v.SetDefault("APIFY_TWEET_ACTOR_ID", "apidojo~tweet-scraper")
	v.SetDefault("APIFY_POLL_INTERVAL", "2s")
	v.SetDefault("APIFY_RATE_LIMIT", 5.0)

	v.SetDefault("LOOPS_API_KEY", "")
	v.SetDefault("LOOPS_BASE_URL", "https://app.loops.so")
	v.SetDefault("CONTACT_SOURCE", "birdpage")
	v.SetDefault("PAYWALL_COHORT", "paywall")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ADMIN_USERNAME", "")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
	v.SetDefault("PAYMENT_WEBHOOK_SECRET", "")
}

// Load reads an optional .env file, then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		AppPort:     v.GetString("APP_PORT"),
		StoreDriver: v.GetString("STORE_DRIVER"),
		DatabaseDSN: v.GetString("DATABASE_DSN"),
		RedisURL:    v.GetString("REDIS_URL"),
		PageTTL:     v.GetDuration("PAGE_CACHE_TTL"),
		RabbitMQURL: v.GetString("RABBITMQ_URL"),
		TweetQueue:  v.GetString("TWEET_SCRAPE_QUEUE"),

		ApifyToken:        v.GetString("APIFY_TOKEN"),
		ApifyBaseURL:      v.GetString("APIFY_BASE_URL"),
		ProfileActorID:    v.GetString("APIFY_PROFILE_ACTOR_ID"),
		TweetActorID:      v.GetString("APIFY_TWEET_ACTOR_ID"),
		ApifyPollInterval: v.GetDuration("APIFY_POLL_INTERVAL"),
		ApifyRateLimit:    v.GetFloat64("APIFY_RATE_LIMIT"),

		LoopsAPIKey:   v.GetString("LOOPS_API_KEY"),
		LoopsBaseURL:  v.GetString("LOOPS_BASE_URL"),
		ContactSource: v.GetString("CONTACT_SOURCE"),
		PaywallCohort: v.GetString("PAYWALL_COHORT"),

		JWTSecret:            v.GetString("JWT_SECRET"),
		AdminUsername:        v.GetString("ADMIN_USERNAME"),
		AdminPasswordHash:    v.GetString("ADMIN_PASSWORD_HASH"),
		PaymentWebhookSecret: v.GetString("PAYMENT_WEBHOOK_SECRET"),
	}
}
