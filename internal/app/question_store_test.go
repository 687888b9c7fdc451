package app

import (
	"context"
	"testing"
	"time"

	"fipabet-seal-service/internal/domain"
)

// roundTripQuestions stores questions at microsecond precision, like a
// timestamptz column.
type roundTripQuestions struct {
	latest domain.Question
}

func (r *roundTripQuestions) Create(_ context.Context, q domain.Question) (domain.Question, error) {
	q.ID = 1
	r.latest = q
	r.latest.CreatedAt = q.CreatedAt.Truncate(time.Microsecond)
	return q, nil
}

func (r *roundTripQuestions) Latest(context.Context) (domain.Question, bool, error) {
	return r.latest, r.latest.ID != 0, nil
}

func TestPublishTimestampMatchesStoredPrecision(t *testing.T) {
	repo := &roundTripQuestions{}
	store := NewQuestionStore(repo)
	local := time.FixedZone("UTC-3", -3*60*60)
	store.now = func() time.Time { return time.Date(2025, 10, 15, 12, 0, 0, 123456789, local) }

	admin := domain.Principal{ID: "admin-1", IsAdmin: true}
	published, err := store.Publish(context.Background(), admin, PublishInput{Text: "q", Type: "texto"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	want := time.Date(2025, 10, 15, 15, 0, 0, 123456000, time.UTC)
	if !published.CreatedAt.Equal(want) || published.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected %v, got %v", want, published.CreatedAt)
	}

	current, ok, err := store.Current(context.Background())
	if err != nil || !ok {
		t.Fatalf("current: ok=%v err=%v", ok, err)
	}
	if !current.CreatedAt.Equal(published.CreatedAt) {
		t.Fatalf("publish reported %v but later reads see %v", published.CreatedAt, current.CreatedAt)
	}
}
