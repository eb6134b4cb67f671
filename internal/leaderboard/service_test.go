package leaderboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aslahtp/menti-clone/internal/domain"
	"github.com/aslahtp/menti-clone/internal/errors"
	"github.com/aslahtp/menti-clone/internal/event"
	"github.com/aslahtp/menti-clone/internal/leaderboard"
)

func TestService_UpdateLeaderboard(t *testing.T) {
	s, _ := makeService(t)

	err := s.UpdateLeaderboard(context.Background(), domain.EventScoreRecorded{
		Score: domain.Score{
			QuizID:     7,
			UserID:     10,
			Name:       "Uma",
			Value:      decimal.NewFromInt(2),
			Total:      2,
			SubmitTime: time.Now(),
		},
	})
	require.NoError(t, err)

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{
		QuizID: 7,
	})
	require.NoError(t, err)

	want := &domain.Leaderboard{
		QuizID: 7,
		Entries: []domain.LeaderboardEntry{
			{UserID: 10, Name: "Uma", Score: 2},
		},
	}
	require.Equal(t, want, resp)
}

func TestService_GetLeaderboardOrdering(t *testing.T) {
	s, _ := makeService(t)

	scores := []domain.Score{
		{QuizID: 7, UserID: 10, Name: "Uma", Value: decimal.NewFromInt(1)},
		{QuizID: 7, UserID: 11, Name: "Vik", Value: decimal.NewFromInt(3)},
		{QuizID: 7, UserID: 12, Name: "Wes", Value: decimal.NewFromInt(2)},
	}
	for _, sc := range scores {
		err := s.UpdateLeaderboard(context.Background(), domain.EventScoreRecorded{Score: sc})
		require.NoError(t, err)
	}

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{QuizID: 7})
	require.NoError(t, err)

	want := []domain.LeaderboardEntry{
		{UserID: 11, Name: "Vik", Score: 3},
		{UserID: 12, Name: "Wes", Score: 2},
		{UserID: 10, Name: "Uma", Score: 1},
	}
	require.Equal(t, want, resp.Entries)
}

func TestService_GetLeaderboardMissing(t *testing.T) {
	s, _ := makeService(t)

	_, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{QuizID: 404})
	require.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestService_UpdateOnScoreRecordedEvent(t *testing.T) {
	eb := event.NewBus()
	s, _ := makeService(t, withEventBus(eb))

	eb.Publish(context.Background(), domain.EventScoreRecorded{
		Score: domain.Score{QuizID: 7, UserID: 10, Name: "Uma", Value: decimal.NewFromInt(2)},
	})
	eb.Stop()

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{QuizID: 7})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
}

func TestService_ExpireOnSessionEnded(t *testing.T) {
	eb := event.NewBus()
	s, rs := makeService(t,
		withEventBus(eb),
		withRetainFor(time.Minute),
	)

	err := s.UpdateLeaderboard(context.Background(), domain.EventScoreRecorded{
		Score: domain.Score{QuizID: 7, UserID: 10, Name: "Uma", Value: decimal.NewFromInt(2)},
	})
	require.NoError(t, err)

	eb.Publish(context.Background(), domain.EventSessionEnded{QuizID: 7, Reason: "completed"})
	eb.Stop()

	// Still readable before retention runs out.
	_, err = s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{QuizID: 7})
	require.NoError(t, err)

	rs.FastForward(2 * time.Minute)

	_, err = s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{QuizID: 7})
	require.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestService_Clear(t *testing.T) {
	s, _ := makeService(t)

	err := s.UpdateLeaderboard(context.Background(), domain.EventScoreRecorded{
		Score: domain.Score{QuizID: 7, UserID: 10, Name: "Uma", Value: decimal.NewFromInt(2)},
	})
	require.NoError(t, err)

	require.NoError(t, s.Clear(context.Background(), 7))

	_, err = s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{QuizID: 7})
	require.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func makeService(t *testing.T, opts ...options) (*leaderboard.Service, *miniredis.Miniredis) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Redis:    rc,
		Prefix:   "menti",
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c), rs
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}

func withRetainFor(d time.Duration) options {
	return func(c *leaderboard.Config) {
		c.RetainFor = d
	}
}
