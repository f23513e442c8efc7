package rabbitmq

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/streadway/amqp"
)

// DefaultTweetScrapeQueue is the durable queue carrying tweet scrape jobs.
const DefaultTweetScrapeQueue = "tweet_scrape_queue"

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL   string
	Queue string
}

// TweetScrapeJob is the message body of a tweet scrape job.
type TweetScrapeJob struct {
	JobID      string    `json:"job_id"`
	Username   string    `json:"username"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewClient connects to RabbitMQ, opens a channel and declares the job queue.
func NewClient(cfg Config) (*Client, error) {
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultTweetScrapeQueue
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := declareQueue(ch, queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", queue, err)
	}

	log.Printf("RabbitMQ client connected and %s declared.", queue)

	return &Client{
		conn:    conn,
		channel: ch,
		queue:   queue,
	}, nil
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred during RabbitMQ client close: %v", errs)
	}
	return nil
}

// PublishTweetScrape enqueues a tweet scrape job for username.
func (c *Client) PublishTweetScrape(username string) error {
	job := TweetScrapeJob{
		JobID:      uuid.New().String(),
		Username:   username,
		EnqueuedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal tweet scrape job: %w", err)
	}

	if err := c.publish(body); err != nil {
		return err
	}
	log.Printf(" [x] Sent tweet scrape job %s for %s", job.JobID, username)
	return nil
}

func (c *Client) publish(body []byte) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.channel.Publish(
		"",      // default exchange
		c.queue, // routing key: the queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// ConsumeTweetScrapeJobs starts a goroutine handing every job body to
// messageHandler. A nil error acks the message; an error nacks it without
// requeueing, since the job outcome is already persisted on the record.
func (c *Client) ConsumeTweetScrapeJobs(messageHandler func(body []byte) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	queue, err := declareQueue(c.channel, c.queue)
	if err != nil {
		return fmt.Errorf("failed to declare queue for consuming: %w", err)
	}

	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	msgs, err := c.channel.Consume(
		queue.Name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Printf(" [*] Waiting for tweet scrape jobs on %s", queue.Name)

	go func() {
		for msg := range msgs {
			if err := messageHandler(msg.Body); err != nil {
				log.Printf("Error processing message %d: %v", msg.DeliveryTag, err)
				if nackErr := msg.Nack(false, false); nackErr != nil {
					log.Printf("Error nacking message %d: %v", msg.DeliveryTag, nackErr)
				}
				continue
			}
			if ackErr := msg.Ack(false); ackErr != nil {
				log.Printf("Error acking message %d: %v", msg.DeliveryTag, ackErr)
			}
		}
		log.Printf("Tweet scrape consumer on %s stopped", queue.Name)
	}()

	return nil
}
