package postgres

import (
	"context"
	"errors"
	"fmt"

	"fipabet-seal-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const answersUserQuestionKey = "answers_user_question_key"

// AnswerRepository stores sealed answers. The table has a unique constraint
// on (user_id, question_id) and a trigger rejecting UPDATE and DELETE, so the
// database enforces the ledger rules on its own.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Insert is a single statement, so a cancelled or failed call never leaves a
// partial row.
func (r *AnswerRepository) Insert(ctx context.Context, a domain.Answer) (domain.Answer, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO answers (question_id, user_id, value, created_at, seal_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		a.QuestionID, a.UserID, a.Value, a.CreatedAt, a.SealHash,
	).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err, answersUserQuestionKey) {
			return domain.Answer{}, fmt.Errorf("%w: answer for user %s and question %d exists", domain.ErrConflict, a.UserID, a.QuestionID)
		}
		return domain.Answer{}, fmt.Errorf("insert answer: %w", err)
	}
	return a, nil
}

func (r *AnswerRepository) FindByUser(ctx context.Context, userID string, questionID int64) (domain.Answer, bool, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, question_id, user_id, value, created_at, seal_hash
		 FROM answers WHERE user_id = $1 AND question_id = $2`,
		userID, questionID,
	)
	a, err := scanAnswer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Answer{}, false, nil
	}
	if err != nil {
		return domain.Answer{}, false, fmt.Errorf("find answer: %w", err)
	}
	return a, true, nil
}

func (r *AnswerRepository) ListByQuestion(ctx context.Context, questionID int64) ([]domain.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_id, user_id, value, created_at, seal_hash
		 FROM answers WHERE question_id = $1 ORDER BY id`,
		questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	answers := []domain.Answer{}
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return answers, nil
}

func scanAnswer(row pgx.Row) (domain.Answer, error) {
	var a domain.Answer
	if err := row.Scan(&a.ID, &a.QuestionID, &a.UserID, &a.Value, &a.CreatedAt, &a.SealHash); err != nil {
		return domain.Answer{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
