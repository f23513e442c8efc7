package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"birdpage/internal/models"
	"birdpage/internal/repositories"
	"birdpage/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var sampleTweets = []json.RawMessage{
	json.RawMessage(`{"text":"hello","likeCount":3}`),
	json.RawMessage(`{"text":"world","likeCount":5}`),
}

func TestTweetService_Process_FirstAttemptSucceeds(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockScraper := new(MockTweetScraper)
	mockPages := new(MockPages)
	tweetService := services.NewTweetService(mockRepo, mockScraper, nil, mockPages)

	mockRepo.On("GetByUsername", mock.Anything, "jack").Return(&models.User{Username: "jack"}, nil).Once()
	mockRepo.On("MarkTweetScrapeStarted", mock.Anything, "jack").Return(true, nil).Once()
	mockScraper.On("ScrapeTweets", mock.Anything, "jack").Return(sampleTweets, nil).Once()
	mockRepo.On("SaveTweets", mock.Anything, "jack", sampleTweets).Return(nil).Once()
	mockPages.On("Invalidate", mock.Anything, "jack").Return(nil).Once()

	result, err := tweetService.Process(context.Background(), "jack")
	require.NoError(t, err)
	assert.Equal(t, services.TweetScrapeSucceeded, result.Status)
	assert.Equal(t, sampleTweets, result.Tweets)
	assert.Equal(t, 1, result.Attempts)

	mockScraper.AssertNumberOfCalls(t, "ScrapeTweets", 1)
	mockRepo.AssertNotCalled(t, "SetTweetScrapeError", mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertExpectations(t)
	mockPages.AssertExpectations(t)
}

func TestTweetService_Process_RetrySucceeds(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockScraper := new(MockTweetScraper)
	tweetService := services.NewTweetService(mockRepo, mockScraper, nil, nil)

	mockRepo.On("GetByUsername", mock.Anything, "jack").Return(&models.User{Username: "jack"}, nil).Once()
	mockRepo.On("MarkTweetScrapeStarted", mock.Anything, "jack").Return(true, nil).Once()
	mockScraper.On("ScrapeTweets", mock.Anything, "jack").Return(nil, errors.New("run failed")).Once()
	mockScraper.On("ScrapeTweets", mock.Anything, "jack").Return(sampleTweets, nil).Once()
	mockRepo.On("SaveTweets", mock.Anything, "jack", sampleTweets).Return(nil).Once()

	result, err := tweetService.Process(context.Background(), "jack")
	require.NoError(t, err)
	assert.Equal(t, services.TweetScrapeSucceeded, result.Status)
	assert.Equal(t, 2, result.Attempts)

	mockRepo.AssertNotCalled(t, "SetTweetScrapeError", mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestTweetService_Process_BothAttemptsFail(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockScraper := new(MockTweetScraper)
	tweetService := services.NewTweetService(mockRepo, mockScraper, nil, nil)

	mockRepo.On("GetByUsername", mock.Anything, "jack").Return(&models.User{Username: "jack"}, nil).Once()
	mockRepo.On("MarkTweetScrapeStarted", mock.Anything, "jack").Return(true, nil).Once()
	mockScraper.On("ScrapeTweets", mock.Anything, "jack").Return(nil, errors.New("first failure")).Once()
	mockScraper.On("ScrapeTweets", mock.Anything, "jack").Return(nil, errors.New("second failure")).Once()
	mockRepo.On("SetTweetScrapeError", mock.Anything, "jack", "second failure").Return(nil).Once()

	result, err := tweetService.Process(context.Background(), "jack")
	require.NoError(t, err)
	assert.Equal(t, services.TweetScrapeFailed, result.Status)
	assert.Equal(t, "second failure", result.Reason)
	assert.Empty(t, result.Tweets)
	assert.Equal(t, 2, result.Attempts)

	mockScraper.AssertNumberOfCalls(t, "ScrapeTweets", 2)
	mockRepo.AssertNotCalled(t, "SaveTweets", mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestTweetService_Process_AlreadyStarted(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockScraper := new(MockTweetScraper)
	tweetService := services.NewTweetService(mockRepo, mockScraper, nil, nil)

	mockRepo.On("GetByUsername", mock.Anything, "jack").
		Return(&models.User{Username: "jack", TweetScrapeStarted: true}, nil).Once()

	_, err := tweetService.Process(context.Background(), "jack")
	assert.ErrorIs(t, err, services.ErrTweetScrapeAlreadyStarted)
	mockRepo.AssertNotCalled(t, "MarkTweetScrapeStarted", mock.Anything, mock.Anything)
	mockScraper.AssertNotCalled(t, "ScrapeTweets", mock.Anything, mock.Anything)
}

func TestTweetService_Process_ClaimLost(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockScraper := new(MockTweetScraper)
	tweetService := services.NewTweetService(mockRepo, mockScraper, nil, nil)

	mockRepo.On("GetByUsername", mock.Anything, "jack").Return(&models.User{Username: "jack"}, nil).Once()
	mockRepo.On("MarkTweetScrapeStarted", mock.Anything, "jack").Return(false, nil).Once()

	_, err := tweetService.Process(context.Background(), "jack")
	assert.ErrorIs(t, err, services.ErrTweetScrapeAlreadyStarted)
	mockScraper.AssertNotCalled(t, "ScrapeTweets", mock.Anything, mock.Anything)
}

func TestTweetService_Process_NotFound(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockScraper := new(MockTweetScraper)
	tweetService := services.NewTweetService(mockRepo, mockScraper, nil, nil)

	mockRepo.On("GetByUsername", mock.Anything, "ghost").Return(nil, notFound("ghost")).Once()

	_, err := tweetService.Process(context.Background(), "ghost")
	assert.ErrorIs(t, err, repositories.ErrUserNotFound)
	mockScraper.AssertNotCalled(t, "ScrapeTweets", mock.Anything, mock.Anything)
}

func TestTweetService_Enqueue_Publishes(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockPublisher := new(MockPublisher)
	tweetService := services.NewTweetService(mockRepo, new(MockTweetScraper), mockPublisher, nil)

	mockRepo.On("GetByUsername", mock.Anything, "jack").Return(&models.User{Username: "jack"}, nil).Once()
	mockPublisher.On("PublishTweetScrape", "jack").Return(nil).Once()

	err := tweetService.Enqueue(context.Background(), "jack")
	assert.NoError(t, err)
	mockPublisher.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "MarkTweetScrapeStarted", mock.Anything, mock.Anything)
}

func TestTweetService_Enqueue_PublishFailure(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockPublisher := new(MockPublisher)
	tweetService := services.NewTweetService(mockRepo, new(MockTweetScraper), mockPublisher, nil)

	mockRepo.On("GetByUsername", mock.Anything, "jack").Return(&models.User{Username: "jack"}, nil).Once()
	mockPublisher.On("PublishTweetScrape", "jack").Return(errors.New("channel closed")).Once()

	err := tweetService.Enqueue(context.Background(), "jack")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestTweetService_Enqueue_InProcess(t *testing.T) {
	repo := repositories.NewMockUserRepository()
	require.NoError(t, repo.Create(context.Background(), &models.User{Username: "jack", ProfileScraped: true}))

	mockScraper := new(MockTweetScraper)
	mockScraper.On("ScrapeTweets", mock.Anything, "jack").Return(sampleTweets, nil).Once()
	tweetService := services.NewTweetService(repo, mockScraper, nil, nil)

	require.NoError(t, tweetService.Enqueue(context.Background(), "jack"))

	assert.Eventually(t, func() bool {
		user, err := repo.GetByUsername(context.Background(), "jack")
		return err == nil && user.TweetScrapeCompleted
	}, 2*time.Second, 10*time.Millisecond)

	user, err := repo.GetByUsername(context.Background(), "jack")
	require.NoError(t, err)
	assert.True(t, user.TweetScrapeStarted)
	assert.Len(t, user.Tweets, len(sampleTweets))
	assert.Nil(t, user.Error)
}

func TestTweetService_HandleJob(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockScraper := new(MockTweetScraper)
	tweetService := services.NewTweetService(mockRepo, mockScraper, nil, nil)

	// Undecodable body
	assert.Error(t, tweetService.HandleJob([]byte("not json")))

	// Missing username
	assert.ErrorIs(t, tweetService.HandleJob([]byte(`{"job_id":"1"}`)), services.ErrInvalidUsername)

	// Already started jobs are acknowledged
	mockRepo.On("GetByUsername", mock.Anything, "jack").
		Return(&models.User{Username: "jack", TweetScrapeStarted: true}, nil).Once()
	assert.NoError(t, tweetService.HandleJob([]byte(`{"job_id":"1","username":"jack"}`)))

	// Failed scrapes are persisted and acknowledged
	mockRepo.On("GetByUsername", mock.Anything, "jill").Return(&models.User{Username: "jill"}, nil).Once()
	mockRepo.On("MarkTweetScrapeStarted", mock.Anything, "jill").Return(true, nil).Once()
	mockScraper.On("ScrapeTweets", mock.Anything, "jill").Return(nil, errors.New("timed out")).Twice()
	mockRepo.On("SetTweetScrapeError", mock.Anything, "jill", "timed out").Return(nil).Once()
	assert.NoError(t, tweetService.HandleJob([]byte(`{"username":"jill"}`)))

	mockRepo.AssertExpectations(t)
	mockScraper.AssertExpectations(t)
}
