package quiz

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aslahtp/menti-clone/internal/domain"
	"github.com/aslahtp/menti-clone/internal/errors"
)

type Config struct {
	DB *pgxpool.Pool
}

type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{db: c.DB}
}

// QuestionInput is one question of a quiz being created.
type QuestionInput struct {
	Title   string
	Options []string
	Answer  string
}

type CreateQuizRequest struct {
	AdminID   int64
	Title     string
	Questions []QuestionInput
}

// CreateQuiz persists a quiz with its questions and options in one transaction.
func (s *Service) CreateQuiz(ctx context.Context, req CreateQuizRequest) (quizID int64, err error) {
	if req.Title == "" {
		return 0, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("title is required"))
	}
	for _, q := range req.Questions {
		if q.Title == "" || len(q.Options) == 0 {
			return 0, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("question needs a title and options"))
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		insQuizStmt     = `INSERT INTO quizzes (title, admin_id) VALUES ($1, $2) RETURNING id;`
		insQuestionStmt = `INSERT INTO questions (quiz_id, title, answer) VALUES ($1, $2, $3) RETURNING id;`
		insOptionStmt   = `INSERT INTO options (question_id, title) VALUES ($1, $2);`
	)

	if err = tx.QueryRow(ctx, insQuizStmt, req.Title, req.AdminID).Scan(&quizID); err != nil {
		return 0, fmt.Errorf("insert quiz: %w", err)
	}

	for _, q := range req.Questions {
		var questionID int64
		if err = tx.QueryRow(ctx, insQuestionStmt, quizID, q.Title, q.Answer).Scan(&questionID); err != nil {
			return 0, fmt.Errorf("insert question: %w", err)
		}

		for _, o := range q.Options { // TODO: batch insert
			if _, err = tx.Exec(ctx, insOptionStmt, questionID, o); err != nil {
				return 0, fmt.Errorf("insert option: %w", err)
			}
		}
	}

	return quizID, tx.Commit(ctx)
}

// ListQuizzes returns the quizzes owned by adminID, without questions.
func (s *Service) ListQuizzes(ctx context.Context, adminID int64) ([]domain.Quiz, error) {
	const stmt = `SELECT id, title, admin_id FROM quizzes WHERE admin_id = $1 ORDER BY id;`

	rows, err := s.db.Query(ctx, stmt, adminID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Quiz, error) {
		var q domain.Quiz
		err := r.Scan(&q.ID, &q.Title, &q.AdminID)
		return q, err
	})
}

// GetQuiz loads a quiz with questions and options in participant scope:
// answer keys are never populated.
func (s *Service) GetQuiz(ctx context.Context, quizID int64) (*domain.Quiz, error) {
	const stmt = `SELECT id, title, admin_id FROM quizzes WHERE id = $1;`
	return s.loadQuiz(ctx, stmt, false, quizID)
}

// GetQuizForAdmin loads a quiz scoped to its owner, including answer keys.
func (s *Service) GetQuizForAdmin(ctx context.Context, quizID, adminID int64) (*domain.Quiz, error) {
	const stmt = `SELECT id, title, admin_id FROM quizzes WHERE id = $1 AND admin_id = $2;`
	return s.loadQuiz(ctx, stmt, true, quizID, adminID)
}

func (s *Service) loadQuiz(ctx context.Context, quizStmt string, withAnswers bool, args ...any) (*domain.Quiz, error) {
	var q domain.Quiz
	err := s.db.QueryRow(ctx, quizStmt, args...).Scan(&q.ID, &q.Title, &q.AdminID)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("quiz not found"))
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}

	questionStmt := `SELECT id, title, '' FROM questions WHERE quiz_id = $1 ORDER BY id;`
	if withAnswers {
		questionStmt = `SELECT id, title, answer FROM questions WHERE quiz_id = $1 ORDER BY id;`
	}

	rows, err := s.db.Query(ctx, questionStmt, q.ID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	q.Questions, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		var question domain.Question
		err := r.Scan(&question.ID, &question.Title, &question.Answer)
		return question, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect questions: %w", err)
	}

	if len(q.Questions) == 0 {
		return &q, nil
	}

	byID := make(map[int64]*domain.Question, len(q.Questions))
	ids := make([]int64, 0, len(q.Questions))
	for i := range q.Questions {
		byID[q.Questions[i].ID] = &q.Questions[i]
		ids = append(ids, q.Questions[i].ID)
	}

	const optionStmt = `SELECT id, question_id, title FROM options WHERE question_id = ANY($1) ORDER BY id;`

	rows, err = s.db.Query(ctx, optionStmt, ids)
	if err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o          domain.Option
			questionID int64
		)
		if err := rows.Scan(&o.ID, &questionID, &o.Title); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		if question, ok := byID[questionID]; ok {
			question.Options = append(question.Options, o)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect options: %w", err)
	}

	return &q, nil
}
