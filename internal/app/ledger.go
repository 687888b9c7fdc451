package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"fipabet-seal-service/internal/domain"
	"fipabet-seal-service/internal/seal"
	"go.uber.org/zap"
)

// SealFunc computes the integrity hash of an accepted answer.
type SealFunc func(userID string, questionID int64, value string, at time.Time) string

// AnswerLedger accepts at most one sealed answer per user and question.
type AnswerLedger struct {
	questions *QuestionStore
	answers   AnswerRepository
	locker    KeyLocker
	log       *zap.Logger
	now       func() time.Time
	seal      SealFunc
}

func NewAnswerLedger(questions *QuestionStore, answers AnswerRepository, locker KeyLocker, log *zap.Logger) *AnswerLedger {
	return NewAnswerLedgerWithClock(questions, answers, locker, log, time.Now, seal.Seal)
}

// NewAnswerLedgerWithClock is used by tests that need deterministic timestamps
// or want to observe sealing.
func NewAnswerLedgerWithClock(questions *QuestionStore, answers AnswerRepository, locker KeyLocker, log *zap.Logger, now func() time.Time, sealFn SealFunc) *AnswerLedger {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnswerLedger{
		questions: questions,
		answers:   answers,
		locker:    locker,
		log:       log,
		now:       now,
		seal:      sealFn,
	}
}

// ErrReadOnly is returned by Submit on a ledger opened for audits.
var ErrReadOnly = errors.New("answer ledger is read-only")

type readOnlyLocker struct{}

func (readOnlyLocker) Lock(context.Context, string) (func(), error) { return nil, ErrReadOnly }

// NewReadOnlyLedger serves reads and audits. Submit always fails with
// ErrReadOnly before anything is written.
func NewReadOnlyLedger(questions *QuestionStore, answers AnswerRepository, log *zap.Logger) *AnswerLedger {
	return NewAnswerLedger(questions, answers, readOnlyLocker{}, log)
}

// Submit seals and stores the user's answer for the current question.
func (l *AnswerLedger) Submit(ctx context.Context, user domain.Principal, questionID int64, value string) (domain.Answer, error) {
	if user.ID == "" {
		return domain.Answer{}, domain.ErrUnauthenticated
	}
	current, ok, err := l.questions.Current(ctx)
	if err != nil {
		return domain.Answer{}, err
	}
	if !ok || current.ID != questionID {
		return domain.Answer{}, fmt.Errorf("%w: question %d is not the current question", domain.ErrNotFound, questionID)
	}

	unlock, err := l.locker.Lock(ctx, lockKey(user.ID, questionID))
	if err != nil {
		return domain.Answer{}, fmt.Errorf("lock answer key: %w", err)
	}
	defer unlock()

	if _, exists, err := l.answers.FindByUser(ctx, user.ID, questionID); err != nil {
		return domain.Answer{}, fmt.Errorf("check existing answer: %w", err)
	} else if exists {
		return domain.Answer{}, fmt.Errorf("%w: answer already submitted for question %d", domain.ErrConflict, questionID)
	}

	if err := validateAnswer(current, value); err != nil {
		return domain.Answer{}, err
	}

	at := seal.Timestamp(l.now())
	answer := domain.Answer{
		QuestionID: questionID,
		UserID:     user.ID,
		Value:      value,
		CreatedAt:  at,
		SealHash:   l.seal(user.ID, questionID, value, at),
	}
	stored, err := l.answers.Insert(ctx, answer)
	if err != nil {
		if domain.KindOf(err) == domain.KindConflict {
			return domain.Answer{}, fmt.Errorf("%w: answer already submitted for question %d", domain.ErrConflict, questionID)
		}
		return domain.Answer{}, fmt.Errorf("insert answer: %w", err)
	}

	l.log.Info("answer sealed",
		zap.Int64("answer_id", stored.ID),
		zap.Int64("question_id", questionID),
		zap.String("user_id", user.ID),
		zap.String("hash_prefix", hashPrefix(stored.SealHash)),
	)
	return stored, nil
}

// FindMine returns the caller's own answer for a question.
func (l *AnswerLedger) FindMine(ctx context.Context, userID string, questionID int64) (domain.Answer, bool, error) {
	a, ok, err := l.answers.FindByUser(ctx, userID, questionID)
	if err != nil {
		return domain.Answer{}, false, fmt.Errorf("find answer: %w", err)
	}
	return a, ok, nil
}

// ListByQuestion returns every answer for a question in submission order.
func (l *AnswerLedger) ListByQuestion(ctx context.Context, admin domain.Principal, questionID int64) ([]domain.Answer, error) {
	if !admin.IsAdmin {
		return nil, fmt.Errorf("%w: only admins can list answers", domain.ErrForbidden)
	}
	answers, err := l.answers.ListByQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return answers, nil
}

// Audit recomputes the seal of every answer for a question.
func (l *AnswerLedger) Audit(ctx context.Context, admin domain.Principal, questionID int64) ([]domain.AuditEntry, error) {
	answers, err := l.ListByQuestion(ctx, admin, questionID)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.AuditEntry, 0, len(answers))
	for _, a := range answers {
		intact := seal.Verify(a)
		if !intact {
			l.log.Warn("seal mismatch", zap.Int64("answer_id", a.ID), zap.Int64("question_id", questionID))
		}
		entries = append(entries, domain.AuditEntry{
			AnswerView: domain.AnswerView{
				ID:        a.ID,
				Value:     a.Value,
				CreatedAt: a.CreatedAt,
				SealHash:  a.SealHash,
			},
			UserID: a.UserID,
			Intact: intact,
		})
	}
	return entries, nil
}

// validateAnswer checks value against the question as it is at acceptance time.
func validateAnswer(q domain.Question, value string) error {
	switch q.Type {
	case domain.QuestionFreeText:
		if value == "" {
			return fmt.Errorf("%w: answer must not be empty", domain.ErrValidation)
		}
	case domain.QuestionMultipleChoice:
		if !q.HasOption(value) {
			return fmt.Errorf("%w: %q is not one of the question's options", domain.ErrValidation, value)
		}
	default:
		return fmt.Errorf("%w: question %d has unsupported type %q", domain.ErrValidation, q.ID, q.Type)
	}
	return nil
}

func lockKey(userID string, questionID int64) string {
	return strconv.FormatInt(questionID, 10) + ":" + userID
}

func hashPrefix(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
