package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fipabet-seal-service/internal/domain"
	"fipabet-seal-service/internal/seal"
)

// PublishInput carries an admin's new question as submitted.
type PublishInput struct {
	Text    string
	Type    string
	Options []string
}

// QuestionStore owns question records and resolves the current question.
type QuestionStore struct {
	repo QuestionRepository
	now  func() time.Time
}

func NewQuestionStore(repo QuestionRepository) *QuestionStore {
	return &QuestionStore{repo: repo, now: time.Now}
}

// Publish validates and stores a new question, which supersedes any prior one.
func (s *QuestionStore) Publish(ctx context.Context, admin domain.Principal, in PublishInput) (domain.Question, error) {
	if !admin.IsAdmin {
		return domain.Question{}, fmt.Errorf("%w: only admins can publish questions", domain.ErrForbidden)
	}
	q, err := buildQuestion(in)
	if err != nil {
		return domain.Question{}, err
	}
	q.CreatedAt = seal.Timestamp(s.now())
	q.CreatedBy = admin.ID

	stored, err := s.repo.Create(ctx, q)
	if err != nil {
		return domain.Question{}, fmt.Errorf("create question: %w", err)
	}
	return stored, nil
}

// Current returns the most recently published question.
func (s *QuestionStore) Current(ctx context.Context) (domain.Question, bool, error) {
	q, ok, err := s.repo.Latest(ctx)
	if err != nil {
		return domain.Question{}, false, fmt.Errorf("load current question: %w", err)
	}
	return q, ok, nil
}

func buildQuestion(in PublishInput) (domain.Question, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return domain.Question{}, fmt.Errorf("%w: question text is required", domain.ErrValidation)
	}
	typ, ok := domain.ParseQuestionType(in.Type)
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: unknown question type %q", domain.ErrValidation, in.Type)
	}

	options := []string{}
	if typ == domain.QuestionMultipleChoice {
		options = normalizeOptions(in.Options)
		if len(options) < 2 {
			return domain.Question{}, fmt.Errorf("%w: multiple-choice questions need at least two distinct options", domain.ErrValidation)
		}
	}
	return domain.Question{Text: text, Type: typ, Options: options}, nil
}

// normalizeOptions trims entries and drops blanks and duplicates, keeping order.
func normalizeOptions(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, opt := range raw {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		if _, dup := seen[opt]; dup {
			continue
		}
		seen[opt] = struct{}{}
		out = append(out, opt)
	}
	return out
}
