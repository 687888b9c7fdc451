package memory

import (
	"context"
	"testing"

	"fipabet-seal-service/internal/domain"
)

func TestQuestionRepositoryLatest(t *testing.T) {
	ctx := context.Background()
	repo := NewQuestionRepository()

	if _, ok, err := repo.Latest(ctx); err != nil || ok {
		t.Fatalf("expected no question, ok=%v err=%v", ok, err)
	}

	q1, err := repo.Create(ctx, domain.Question{Text: "first", Type: domain.QuestionFreeText})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	q2, err := repo.Create(ctx, domain.Question{Text: "second", Type: domain.QuestionMultipleChoice, Options: []string{"A", "B"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if q2.ID <= q1.ID {
		t.Fatalf("expected increasing ids, got %d then %d", q1.ID, q2.ID)
	}

	latest, ok, err := repo.Latest(ctx)
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if latest.ID != q2.ID {
		t.Fatalf("expected latest %d, got %d", q2.ID, latest.ID)
	}

	latest.Options[0] = "mutated"
	again, _, _ := repo.Latest(ctx)
	if again.Options[0] != "A" {
		t.Fatalf("stored options must not be shared with callers")
	}
}
