package repositories_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"birdpage/internal/models"
	"birdpage/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newGORMRepository(t *testing.T) repositories.UserRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// SQLite allows a single writer.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}))
	return repositories.NewGORMUserRepository(db)
}

// forEachRepository runs fn against every UserRepository implementation.
func forEachRepository(t *testing.T, fn func(t *testing.T, repo repositories.UserRepository)) {
	t.Run("gorm", func(t *testing.T) { fn(t, newGORMRepository(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, repositories.NewMockUserRepository()) })
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repositories.UserRepository) {
		ctx := context.Background()

		user := &models.User{
			Username:       "Jack",
			Name:           "jack",
			Followers:      42,
			FullProfile:    json.RawMessage(`{"userName":"jack"}`),
			ProfileScraped: true,
		}
		require.NoError(t, repo.Create(ctx, user))
		assert.NotEmpty(t, user.ID)
		assert.Equal(t, "jack", user.Username)

		got, err := repo.GetByUsername(ctx, "@JACK")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, int64(42), got.Followers)
		assert.True(t, got.ProfileScraped)
		assert.False(t, got.Unlocked)
		assert.JSONEq(t, `{"userName":"jack"}`, string(got.FullProfile))
		assert.Nil(t, got.Error)
	})
}

func TestUserRepository_GetMissing(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repositories.UserRepository) {
		_, err := repo.GetByUsername(context.Background(), "ghost")
		assert.ErrorIs(t, err, repositories.ErrUserNotFound)
	})
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repositories.UserRepository) {
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, &models.User{Username: "jack"}))

		err := repo.Create(ctx, &models.User{Username: "JACK"})
		assert.ErrorIs(t, err, repositories.ErrUsernameTaken)

		usernames, err := repo.ListUsernames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"jack"}, usernames)
	})
}

func TestUserRepository_ConcurrentCreateHasOneWinner(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repositories.UserRepository) {
		ctx := context.Background()

		var (
			wg      sync.WaitGroup
			created atomic.Int32
			taken   atomic.Int32
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.Create(ctx, &models.User{Username: "jack"})
				switch {
				case err == nil:
					created.Add(1)
				case assert.ErrorIs(t, err, repositories.ErrUsernameTaken):
					taken.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), created.Load())
		assert.Equal(t, int32(7), taken.Load())
	})
}

func TestUserRepository_Update(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repositories.UserRepository) {
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, &models.User{Username: "jack", Followers: 1}))

		user, err := repo.GetByUsername(ctx, "jack")
		require.NoError(t, err)
		user.Followers = 500
		user.Name = "Jack"
		require.NoError(t, repo.Update(ctx, user))

		got, err := repo.GetByUsername(ctx, "jack")
		require.NoError(t, err)
		assert.Equal(t, int64(500), got.Followers)
		assert.Equal(t, "Jack", got.Name)
		assert.Equal(t, user.ID, got.ID)

		// Updating an absent record neither fails nor inserts.
		require.NoError(t, repo.Update(ctx, &models.User{Username: "ghost"}))
		_, err = repo.GetByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, repositories.ErrUserNotFound)

		assert.ErrorIs(t, repo.Update(ctx, &models.User{}), repositories.ErrMissingUsername)
	})
}

func TestUserRepository_UpdateProfileFields(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repositories.UserRepository) {
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, &models.User{Username: "jack", Followers: 1}))
		require.NoError(t, repo.SetUnlocked(ctx, "jack", models.UnlockPayment))
		require.NoError(t, repo.SaveTweets(ctx, "jack", []json.RawMessage{json.RawMessage(`{"text":"hi"}`)}))

		require.NoError(t, repo.UpdateProfileFields(ctx, "@Jack", &models.User{
			Name:        "Jack D",
			Location:    "SF",
			Followers:   99,
			FullProfile: json.RawMessage(`{"userName":"jack"}`),
			Unlocked:    false,
			UnlockType:  "",
		}))

		got, err := repo.GetByUsername(ctx, "jack")
		require.NoError(t, err)
		assert.Equal(t, "Jack D", got.Name)
		assert.Equal(t, "SF", got.Location)
		assert.Equal(t, int64(99), got.Followers)
		assert.True(t, got.ProfileScraped)
		assert.JSONEq(t, `{"userName":"jack"}`, string(got.FullProfile))
		assert.True(t, got.Unlocked, "unlock state is untouched")
		assert.Equal(t, models.UnlockPayment, got.UnlockType)
		assert.True(t, got.TweetScrapeCompleted)
		require.Len(t, got.Tweets, 1)

		// Absent records are ignored.
		require.NoError(t, repo.UpdateProfileFields(ctx, "ghost", &models.User{Name: "x"}))
		_, err = repo.GetByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, repositories.ErrUserNotFound)
	})
}

func TestUserRepository_MarkTweetScrapeStarted(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repositories.UserRepository) {
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, &models.User{Username: "jack"}))

		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				claimed, err := repo.MarkTweetScrapeStarted(ctx, "jack")
				assert.NoError(t, err)
				if claimed {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())

		claimed, err := repo.MarkTweetScrapeStarted(ctx, "ghost")
		assert.NoError(t, err)
		assert.False(t, claimed)
	})
}

func TestUserRepository_TweetOutcomes(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repositories.UserRepository) {
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, &models.User{Username: "jack"}))
		require.NoError(t, repo.Create(ctx, &models.User{Username: "jill"}))

		require.NoError(t, repo.SetTweetScrapeError(ctx, "jill", "run failed"))
		jill, err := repo.GetByUsername(ctx, "jill")
		require.NoError(t, err)
		require.NotNil(t, jill.Error)
		assert.Equal(t, "run failed", *jill.Error)
		assert.False(t, jill.TweetScrapeCompleted)
		assert.Empty(t, jill.Tweets)

		tweets := []json.RawMessage{json.RawMessage(`{"text":"hello"}`)}
		require.NoError(t, repo.SaveTweets(ctx, "jack", tweets))
		jack, err := repo.GetByUsername(ctx, "jack")
		require.NoError(t, err)
		assert.True(t, jack.TweetScrapeCompleted)
		assert.Nil(t, jack.Error)
		require.Len(t, jack.Tweets, 1)
		assert.JSONEq(t, `{"text":"hello"}`, string(jack.Tweets[0]))
	})
}

func TestUserRepository_SetUnlocked(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repositories.UserRepository) {
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, &models.User{Username: "jack", Followers: 7}))

		require.NoError(t, repo.SetUnlocked(ctx, "jack", models.UnlockEmail))
		require.NoError(t, repo.SetUnlocked(ctx, "jack", models.UnlockFree))

		got, err := repo.GetByUsername(ctx, "jack")
		require.NoError(t, err)
		assert.True(t, got.Unlocked)
		assert.Equal(t, models.UnlockFree, got.UnlockType)
		assert.Equal(t, int64(7), got.Followers, "other columns are untouched")
	})
}

func TestUserRepository_Listings(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo repositories.UserRepository) {
		ctx := context.Background()
		for _, u := range []models.User{
			{Username: "paulg", Followers: 300},
			{Username: "naval", Followers: 900},
			{Username: "jack", Followers: 500},
			{Username: "nobody", Followers: 1},
		} {
			user := u
			require.NoError(t, repo.Create(ctx, &user))
		}
		for _, name := range []string{"paulg", "naval", "nobody"} {
			require.NoError(t, repo.SaveTweets(ctx, name, nil))
		}

		usernames, err := repo.ListUsernames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"jack", "naval", "nobody", "paulg"}, usernames)

		top, err := repo.ListTop(ctx, 2)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, "naval", top[0].Username)
		assert.Equal(t, "paulg", top[1].Username)

		top, err = repo.ListTop(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, top, 3, "profiles without posts are not listed")

		featured, err := repo.ListFeatured(ctx, []string{"PaulG", "naval", "sama"})
		require.NoError(t, err)
		require.Len(t, featured, 2)
		assert.Equal(t, "naval", featured[0].Username)
		assert.Equal(t, "paulg", featured[1].Username)
	})
}
