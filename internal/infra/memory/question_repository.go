package memory

import (
	"context"
	"sync"

	"fipabet-seal-service/internal/domain"
)

// QuestionRepository keeps the question history in process. The latest
// question is tracked directly so Latest never scans.
type QuestionRepository struct {
	mu        sync.RWMutex
	nextID    int64
	questions []domain.Question
}

func NewQuestionRepository() *QuestionRepository {
	return &QuestionRepository{nextID: 1}
}

func (r *QuestionRepository) Create(_ context.Context, q domain.Question) (domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q.ID = r.nextID
	r.nextID++
	q.Options = append([]string{}, q.Options...)
	r.questions = append(r.questions, q)
	return cloneQuestion(q), nil
}

func (r *QuestionRepository) Latest(_ context.Context) (domain.Question, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.questions) == 0 {
		return domain.Question{}, false, nil
	}
	return cloneQuestion(r.questions[len(r.questions)-1]), true, nil
}

func cloneQuestion(q domain.Question) domain.Question {
	q.Options = append([]string{}, q.Options...)
	return q
}
