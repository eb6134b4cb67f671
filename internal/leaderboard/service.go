package leaderboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aslahtp/menti-clone/internal/domain"
	"github.com/aslahtp/menti-clone/internal/errors"
	"github.com/aslahtp/menti-clone/internal/event"
)

const defaultRetention = 24 * time.Hour

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	// RetainFor bounds how long a quiz's ranking survives after its live
	// session ends. Zero means the default.
	RetainFor time.Duration
}

// Service maintains the live per-quiz ranking in a Redis sorted set, fed by
// score.recorded events. The persisted results in Postgres remain the source
// of truth; this is the fast read path.
type Service struct {
	eb        *event.Bus
	redis     redis.UniversalClient
	prefix    string
	retainFor time.Duration
}

func NewService(c Config) *Service {
	s := &Service{
		eb:        c.EventBus,
		redis:     c.Redis,
		prefix:    c.Prefix,
		retainFor: c.RetainFor,
	}
	if s.retainFor <= 0 {
		s.retainFor = defaultRetention
	}

	s.eb.Subscribe(domain.EventNameScoreRecorded, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventScoreRecorded))
	})
	s.eb.Subscribe(domain.EventNameSessionEnded, func(ctx context.Context, e event.Event) error {
		return s.ExpireLeaderboard(ctx, e.(domain.EventSessionEnded))
	})

	return s
}

type GetLeaderboardRequest struct {
	QuizID int64
}

// GetLeaderboard returns the live ranking for a quiz, best score first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(req.QuizID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard not found: quiz=%d", req.QuizID))
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		userID, name := decodeMember(z.Member.(string))
		entries = append(entries, domain.LeaderboardEntry{
			UserID: userID,
			Name:   name,
			Score:  z.Score,
		})
	}

	return &domain.Leaderboard{
		QuizID:  req.QuizID,
		Entries: entries,
	}, nil
}

// UpdateLeaderboard overwrites the user's score in the quiz ranking.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventScoreRecorded) error {
	sc := e.Score

	if err := s.redis.ZAdd(ctx, s.leaderboardKey(sc.QuizID), redis.Z{
		Score:  sc.Value.InexactFloat64(),
		Member: encodeMember(sc.UserID, sc.Name),
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return nil
}

// ExpireLeaderboard schedules removal of a quiz's ranking once its live
// session has ended.
func (s *Service) ExpireLeaderboard(ctx context.Context, e domain.EventSessionEnded) error {
	if err := s.redis.Expire(ctx, s.leaderboardKey(e.QuizID), s.retainFor).Err(); err != nil {
		return fmt.Errorf("expire leaderboard: %w", err)
	}

	return nil
}

// Clear removes the quiz's ranking immediately.
func (s *Service) Clear(ctx context.Context, quizID int64) error {
	if err := s.redis.Del(ctx, s.leaderboardKey(quizID)).Err(); err != nil {
		return fmt.Errorf("clear leaderboard: %w", err)
	}

	return nil
}

func (s *Service) leaderboardKey(quizID int64) string {
	return fmt.Sprintf("%s:%d:leaderboard", s.prefix, quizID)
}

// Sorted-set members carry both the user id and display name, so a read
// needs no extra lookup.
func encodeMember(userID int64, name string) string {
	return fmt.Sprintf("%d:%s", userID, name)
}

func decodeMember(m string) (int64, string) {
	idPart, name, _ := strings.Cut(m, ":")
	id, _ := strconv.ParseInt(idPart, 10, 64)
	return id, name
}
