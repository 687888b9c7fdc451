package memory

import (
	"context"
	"fmt"
	"sync"

	"fipabet-seal-service/internal/domain"
)

type answerKey struct {
	userID     string
	questionID int64
}

// AnswerRepository is an append-only in-process answer store. The uniqueness
// check and the append happen under one lock, so two inserts for the same
// user and question can never both succeed.
type AnswerRepository struct {
	mu         sync.RWMutex
	nextID     int64
	answers    []domain.Answer
	byKey      map[answerKey]int
	byQuestion map[int64][]int
}

func NewAnswerRepository() *AnswerRepository {
	return &AnswerRepository{
		nextID:     1,
		byKey:      make(map[answerKey]int),
		byQuestion: make(map[int64][]int),
	}
}

func (r *AnswerRepository) Insert(ctx context.Context, a domain.Answer) (domain.Answer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Answer{}, err
	}
	key := answerKey{userID: a.UserID, questionID: a.QuestionID}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[key]; exists {
		return domain.Answer{}, fmt.Errorf("%w: answer for user %s and question %d exists", domain.ErrConflict, a.UserID, a.QuestionID)
	}
	a.ID = r.nextID
	r.nextID++
	idx := len(r.answers)
	r.answers = append(r.answers, a)
	r.byKey[key] = idx
	r.byQuestion[a.QuestionID] = append(r.byQuestion[a.QuestionID], idx)
	return a, nil
}

func (r *AnswerRepository) FindByUser(_ context.Context, userID string, questionID int64) (domain.Answer, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byKey[answerKey{userID: userID, questionID: questionID}]
	if !ok {
		return domain.Answer{}, false, nil
	}
	return r.answers[idx], true, nil
}

func (r *AnswerRepository) ListByQuestion(_ context.Context, questionID int64) ([]domain.Answer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idxs := r.byQuestion[questionID]
	out := make([]domain.Answer, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, r.answers[idx])
	}
	return out, nil
}
