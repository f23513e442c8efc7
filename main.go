package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"birdpage/internal/config"
	"birdpage/internal/handlers"
	"birdpage/internal/models"
	"birdpage/internal/repositories"
	"birdpage/internal/scrapers"
	"birdpage/internal/services"
	"birdpage/pkg/apify"
	"birdpage/pkg/contacts"
	"birdpage/pkg/pagecache"
	"birdpage/pkg/rabbitmq"
)

// pageStore is what the process needs from a page cache.
type pageStore interface {
	handlers.PageCache
	services.PageInvalidator
	Close() error
}

// application is the wired process: HTTP app plus the resources it owns.
type application struct {
	http   *fiber.App
	tweets *services.TweetService
	mq     *rabbitmq.Client
	pages  pageStore
}

func main() {
	cfg := config.Load()

	app, err := buildApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Close()

	// --- Start RabbitMQ Consumer in a Goroutine ---
	if app.mq != nil {
		go func() {
			log.Println("Starting RabbitMQ consumer for tweet scrape jobs...")
			if err := app.mq.ConsumeTweetScrapeJobs(app.tweets.HandleJob); err != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", err)
			}
		}()
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.AppPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.http.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.http.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}

// buildApp wires the store, the vendor clients, the services and the routes
// described by cfg.
func buildApp(cfg *config.Config) (*application, error) {
	// --- Initialize Repository ---
	repo, err := openUserRepository(cfg)
	if err != nil {
		return nil, err
	}

	// --- Initialize Page Cache ---
	var pages pageStore = pagecache.Nop{}
	if cfg.RedisURL != "" {
		cache, err := pagecache.New(cfg.RedisURL, cfg.PageTTL)
		if err != nil {
			return nil, err
		}
		pages = cache
	}

	// --- Initialize RabbitMQ Client ---
	var (
		mqClient  *rabbitmq.Client
		publisher services.TweetJobPublisher
	)
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.TweetQueue})
		if err != nil {
			pages.Close()
			return nil, err
		}
		publisher = mqClient
	} else {
		log.Println("RABBITMQ_URL not set, tweet scrapes run in-process")
	}

	// --- Initialize Vendor Clients ---
	apifyClient := apify.NewClient(apify.Config{
		BaseURL:           cfg.ApifyBaseURL,
		Token:             cfg.ApifyToken,
		PollInterval:      cfg.ApifyPollInterval,
		RequestsPerSecond: cfg.ApifyRateLimit,
	})
	profileScraper := scrapers.NewProfileScraper(apifyClient, cfg.ProfileActorID)
	tweetScraper := scrapers.NewTweetScraper(apifyClient, cfg.TweetActorID)
	contactClient := contacts.NewClient(cfg.LoopsBaseURL, cfg.LoopsAPIKey)

	// --- Initialize Services ---
	profileService := services.NewProfileService(repo, profileScraper, pages)
	tweetService := services.NewTweetService(repo, tweetScraper, publisher, pages)
	unlockService := services.NewUnlockService(repo, pages)
	contactService := services.NewContactService(contactClient, unlockService, cfg.ContactSource, cfg.PaywallCohort)
	authService := services.NewAuthService(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.JWTSecret)

	// --- Initialize Handlers ---
	profileHandler := handlers.NewProfileHandler(profileService, tweetService, pages)
	unlockHandler := handlers.NewUnlockHandler(contactService, unlockService, profileService, authService, cfg.PaymentWebhookSecret)
	authHandler := handlers.NewAuthHandler(authService)

	// --- Initialize Fiber App ---
	httpApp := fiber.New()
	httpApp.Use(recover.New())
	httpApp.Use(logger.New())

	apiV1 := httpApp.Group("/api/v1")
	profileHandler.RegisterRoutes(apiV1)
	unlockHandler.RegisterRoutes(apiV1)
	authHandler.RegisterRoutes(apiV1)

	// --- Health Check Endpoint ---
	httpApp.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"store":    cfg.StoreDriver,
			"queue":    mqClient != nil,
			"cache":    cfg.RedisURL != "",
			"scraping": cfg.ApifyToken != "",
		})
	})

	return &application{
		http:   httpApp,
		tweets: tweetService,
		mq:     mqClient,
		pages:  pages,
	}, nil
}

// Close releases the queue and cache connections.
func (a *application) Close() {
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			log.Printf("Error closing RabbitMQ client: %v", err)
		}
	}
	if err := a.pages.Close(); err != nil {
		log.Printf("Error closing page cache: %v", err)
	}
}

func openUserRepository(cfg *config.Config) (repositories.UserRepository, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Println("Using in-memory user store")
		return repositories.NewMockUserRepository(), nil
	case config.StoreDriverPostgres, "":
		db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.AutoMigrate(&models.User{}); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return repositories.NewGORMUserRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
