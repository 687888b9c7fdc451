package app

import (
	"context"

	"fipabet-seal-service/internal/domain"
)

// QuestionRepository persists questions (in-memory, Postgres, cached, etc).
type QuestionRepository interface {
	// Create stores q, assigning its ID, and returns the stored question.
	Create(ctx context.Context, q domain.Question) (domain.Question, error)
	// Latest returns the most recently created question, if any.
	Latest(ctx context.Context) (domain.Question, bool, error)
}

// AnswerRepository is the append-only storage behind the ledger. It has no
// update or delete operations.
type AnswerRepository interface {
	// Insert stores a sealed answer and assigns its ID. It must fail with
	// domain.ErrConflict if an answer for the same user and question exists,
	// and must never leave a partial record behind.
	Insert(ctx context.Context, a domain.Answer) (domain.Answer, error)
	FindByUser(ctx context.Context, userID string, questionID int64) (domain.Answer, bool, error)
	// ListByQuestion returns answers in insertion order.
	ListByQuestion(ctx context.Context, questionID int64) ([]domain.Answer, error)
}

// KeyLocker provides an exclusive lock scoped to a single key.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// IdentityProvider turns opaque bearer tokens into principals.
type IdentityProvider interface {
	Authenticate(ctx context.Context, token string) (domain.Principal, error)
	Usernames(ctx context.Context, userIDs []string) (map[string]string, error)
}
