package app

import (
	"context"
	"fmt"
	"strings"

	"fipabet-seal-service/internal/domain"
	"go.uber.org/zap"
)

// Service is the public Q&A contract. It resolves principals through the
// identity provider, checks capabilities once per call and dispatches to the
// question store and answer ledger. It holds no state of its own.
type Service struct {
	identity  IdentityProvider
	questions *QuestionStore
	ledger    *AnswerLedger
	log       *zap.Logger
}

func NewService(identity IdentityProvider, questions *QuestionStore, ledger *AnswerLedger, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{identity: identity, questions: questions, ledger: ledger, log: log}
}

// Authenticate maps a bearer token to a principal.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Principal{}, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthenticated)
	}
	p, err := s.identity.Authenticate(ctx, token)
	if err != nil {
		return domain.Principal{}, err
	}
	return p, nil
}

// PublishQuestion makes a new question current. Admin only.
func (s *Service) PublishQuestion(ctx context.Context, p domain.Principal, in PublishInput) (domain.Question, error) {
	if err := requireAdmin(p); err != nil {
		return domain.Question{}, err
	}
	q, err := s.questions.Publish(ctx, p, in)
	if err != nil {
		return domain.Question{}, err
	}
	s.log.Info("question published",
		zap.Int64("question_id", q.ID),
		zap.String("admin_id", p.ID),
		zap.String("type", string(q.Type)),
	)
	return q, nil
}

// CurrentQuestion is public; it needs no principal.
func (s *Service) CurrentQuestion(ctx context.Context) (domain.Question, bool, error) {
	return s.questions.Current(ctx)
}

// SubmitAnswer seals the caller's one answer for the current question.
func (s *Service) SubmitAnswer(ctx context.Context, p domain.Principal, questionID int64, value string) (domain.Answer, error) {
	a, err := s.ledger.Submit(ctx, p, questionID, value)
	if err != nil {
		s.log.Debug("answer rejected",
			zap.Int64("question_id", questionID),
			zap.String("user_id", p.ID),
			zap.String("kind", domain.KindOf(err)),
		)
		return domain.Answer{}, err
	}
	return a, nil
}

// MyAnswer returns the caller's answer, never anyone else's.
func (s *Service) MyAnswer(ctx context.Context, p domain.Principal, questionID int64) (domain.Answer, bool, error) {
	if p.ID == "" {
		return domain.Answer{}, false, domain.ErrUnauthenticated
	}
	return s.ledger.FindMine(ctx, p.ID, questionID)
}

// AnswersByQuestion lists all answers with usernames. Admin only.
func (s *Service) AnswersByQuestion(ctx context.Context, p domain.Principal, questionID int64) ([]domain.AnswerView, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	answers, err := s.ledger.ListByQuestion(ctx, p, questionID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.UserID)
	}
	names, err := s.usernames(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]domain.AnswerView, 0, len(answers))
	for _, a := range answers {
		views = append(views, domain.AnswerView{
			ID:        a.ID,
			Username:  names[a.UserID],
			Value:     a.Value,
			CreatedAt: a.CreatedAt,
			SealHash:  a.SealHash,
		})
	}
	return views, nil
}

// Audit reports for each answer whether it still matches its seal. Admin only.
func (s *Service) Audit(ctx context.Context, p domain.Principal, questionID int64) ([]domain.AuditEntry, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	entries, err := s.ledger.Audit(ctx, p, questionID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	names, err := s.usernames(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Username = names[entries[i].UserID]
	}
	return entries, nil
}

func (s *Service) usernames(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	names, err := s.identity.Usernames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve usernames: %w", err)
	}
	return names, nil
}

func requireAdmin(p domain.Principal) error {
	if p.ID == "" {
		return domain.ErrUnauthenticated
	}
	if !p.IsAdmin {
		return fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	return nil
}
