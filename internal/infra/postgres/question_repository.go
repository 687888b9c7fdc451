package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fipabet-seal-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionRepository stores questions in the questions table. The current
// question is the row with the highest id.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func (r *QuestionRepository) Create(ctx context.Context, q domain.Question) (domain.Question, error) {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return domain.Question{}, fmt.Errorf("marshal options: %w", err)
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO questions (text, type, options, created_at, created_by)
		 VALUES ($1, $2, $3::jsonb, $4, $5)
		 RETURNING id`,
		q.Text, string(q.Type), string(options), q.CreatedAt, q.CreatedBy,
	).Scan(&q.ID)
	if err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

func (r *QuestionRepository) Latest(ctx context.Context) (domain.Question, bool, error) {
	var (
		q       domain.Question
		typ     string
		options []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, text, type, options, created_at, created_by
		 FROM questions ORDER BY id DESC LIMIT 1`,
	).Scan(&q.ID, &q.Text, &typ, &options, &q.CreatedAt, &q.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, false, nil
	}
	if err != nil {
		return domain.Question{}, false, fmt.Errorf("load latest question: %w", err)
	}
	q.Type = domain.QuestionType(typ)
	q.CreatedAt = q.CreatedAt.UTC()
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return domain.Question{}, false, fmt.Errorf("unmarshal options: %w", err)
	}
	if q.Options == nil {
		q.Options = []string{}
	}
	return q, true, nil
}
