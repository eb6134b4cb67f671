package score

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/aslahtp/menti-clone/internal/domain"
	"github.com/aslahtp/menti-clone/internal/event"
)

const maxConcurrentGrades = 8

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
}

type Service struct {
	eb *event.Bus
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{
		eb: c.EventBus,
		db: c.DB,
	}
}

// Answer is a participant's selected option for one question.
type Answer struct {
	QuestionID     int64
	SelectedOption string
}

type SubmitResultRequest struct {
	QuizID   int64
	UserID   int64
	UserName string
	Answers  []Answer
}

type SubmitResultResponse struct {
	Score int
	Total int
}

// SubmitResult grades the answers against the stored answer keys, persists a
// leaderboard row, and publishes score.recorded for the live leaderboard.
func (s *Service) SubmitResult(ctx context.Context, req SubmitResultRequest) (*SubmitResultResponse, error) {
	correct := make([]bool, len(req.Answers))

	var eg errgroup.Group
	eg.SetLimit(maxConcurrentGrades)

	for i, a := range req.Answers {
		i, a := i, a
		eg.Go(func() error {
			ok, err := s.gradeAnswer(ctx, req.QuizID, a)
			if err != nil {
				return err
			}
			correct[i] = ok
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("grade submission: %w", err)
	}

	score := 0
	for _, ok := range correct {
		if ok {
			score++
		}
	}

	now := time.Now()

	const stmt = `
INSERT INTO leaderboard (quiz_id, user_id, name, score, total_questions, create_time)
VALUES ($1, $2, $3, $4, $5, $6);`

	if _, err := s.db.Exec(ctx, stmt, req.QuizID, req.UserID, req.UserName, score, len(req.Answers), now); err != nil {
		return nil, fmt.Errorf("insert result: %w", err)
	}

	s.eb.Publish(ctx, domain.EventScoreRecorded{
		Score: domain.Score{
			QuizID:     req.QuizID,
			UserID:     req.UserID,
			Name:       req.UserName,
			Value:      decimal.NewFromInt(int64(score)),
			Total:      len(req.Answers),
			SubmitTime: now,
		},
	})

	return &SubmitResultResponse{Score: score, Total: len(req.Answers)}, nil
}

func (s *Service) gradeAnswer(ctx context.Context, quizID int64, a Answer) (bool, error) {
	const stmt = `SELECT EXISTS (
	SELECT 1 FROM questions WHERE id = $1 AND quiz_id = $2 AND answer = $3
);`

	var ok bool
	if err := s.db.QueryRow(ctx, stmt, a.QuestionID, quizID, a.SelectedOption).Scan(&ok); err != nil {
		return false, fmt.Errorf("grade question %d: %w", a.QuestionID, err)
	}

	return ok, nil
}

// ListResults returns the persisted results for a quiz, highest score first.
func (s *Service) ListResults(ctx context.Context, quizID int64) ([]domain.LeaderboardRow, error) {
	const stmt = `
SELECT user_id, name, score, total_questions
FROM leaderboard
WHERE quiz_id = $1
ORDER BY score DESC;`

	rows, err := s.db.Query(ctx, stmt, quizID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.LeaderboardRow, error) {
		var row domain.LeaderboardRow
		err := r.Scan(&row.UserID, &row.Name, &row.Score, &row.TotalQuestions)
		return row, err
	})
}

// ClearResults deletes every persisted result for a quiz.
func (s *Service) ClearResults(ctx context.Context, quizID int64) error {
	const stmt = `DELETE FROM leaderboard WHERE quiz_id = $1;`

	if _, err := s.db.Exec(ctx, stmt, quizID); err != nil {
		return fmt.Errorf("clear results: %w", err)
	}

	return nil
}
