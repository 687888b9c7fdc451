package domain

import "time"

// QuestionType is the kind of answer a question accepts. Values match what
// the browser client sends.
type QuestionType string

const (
	QuestionFreeText       QuestionType = "texto"
	QuestionMultipleChoice QuestionType = "opciones"
)

// ParseQuestionType accepts the wire values plus their English aliases.
func ParseQuestionType(raw string) (QuestionType, bool) {
	switch raw {
	case string(QuestionFreeText), "text", "free-text":
		return QuestionFreeText, true
	case string(QuestionMultipleChoice), "choice", "multiple-choice":
		return QuestionMultipleChoice, true
	}
	return "", false
}

// Principal is an already-verified identity handed over by the identity provider.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Question is never mutated once published. The latest one is the current question.
type Question struct {
	ID        int64        `json:"id"`
	Text      string       `json:"text"`
	Type      QuestionType `json:"type"`
	Options   []string     `json:"options"`
	CreatedAt time.Time    `json:"createdAt"`
	CreatedBy string       `json:"createdBy"`
}

// HasOption reports whether value equals one of the question's options exactly.
func (q Question) HasOption(value string) bool {
	for _, opt := range q.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// Answer is a sealed, immutable submission by one user for one question.
type Answer struct {
	ID         int64     `json:"id"`
	QuestionID int64     `json:"questionId"`
	UserID     string    `json:"userId"`
	Value      string    `json:"answer"`
	CreatedAt  time.Time `json:"createdAt"`
	SealHash   string    `json:"hash"`
}

// AnswerView is the admin listing row.
type AnswerView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Value     string    `json:"answer"`
	CreatedAt time.Time `json:"createdAt"`
	SealHash  string    `json:"hash"`
}

// AuditEntry reports whether a stored answer still matches its seal.
type AuditEntry struct {
	AnswerView
	UserID string `json:"userId"`
	Intact bool   `json:"intact"`
}
