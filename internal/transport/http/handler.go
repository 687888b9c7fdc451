package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fipabet-seal-service/internal/app"
	"fipabet-seal-service/internal/domain"
	"fipabet-seal-service/internal/identity"
	"go.uber.org/zap"
)

// Accounts is the identity provider's registration surface.
type Accounts interface {
	Register(ctx context.Context, username, password, adminInvite string) (identity.Session, error)
	Login(ctx context.Context, username, password string) (identity.Session, error)
}

// Handler exposes the Q&A service as JSON over HTTP.
type Handler struct {
	service       *app.Service
	accounts      Accounts
	log           *zap.Logger
	allowedOrigin string
}

func NewHandler(service *app.Service, accounts Accounts, log *zap.Logger, allowedOrigin string) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, accounts: accounts, log: log, allowedOrigin: allowedOrigin}
}

// Routes serves every endpoint at the root and again under /api, which is
// where the browser client looks for them.
func (h *Handler) Routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /auth/register", h.register)
	api.HandleFunc("POST /auth/login", h.login)
	api.HandleFunc("GET /question/current", h.currentQuestion)
	api.HandleFunc("POST /question", h.publishQuestion)
	api.HandleFunc("POST /answers", h.submitAnswer)
	api.HandleFunc("GET /answers/mine/{questionId}", h.myAnswer)
	api.HandleFunc("GET /answers/by-question/{questionId}", h.answersByQuestion)
	api.HandleFunc("GET /answers/verify/{questionId}", h.audit)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/api/", http.StripPrefix("/api", api))
	mux.Handle("/", api)
	return h.cors(mux)
}

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	AdminInvite string `json:"adminInvite"`
}

type publishRequest struct {
	Text    string   `json:"text"`
	Type    string   `json:"type"`
	Options []string `json:"options"`
}

type answerRequest struct {
	QuestionID int64  `json:"questionId"`
	Answer     string `json:"answer"`
}

// answerResponse is the caller-facing shape of a sealed answer.
type answerResponse struct {
	ID         int64     `json:"id"`
	QuestionID int64     `json:"questionId"`
	Answer     string    `json:"answer"`
	CreatedAt  time.Time `json:"createdAt"`
	Hash       string    `json:"hash"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	session, err := h.accounts.Register(r.Context(), req.Username, req.Password, req.AdminInvite)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	session, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) currentQuestion(w http.ResponseWriter, r *http.Request) {
	q, ok, err := h.service.CurrentQuestion(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) publishQuestion(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req publishRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.PublishQuestion(r.Context(), p, app.PublishInput{
		Text:    req.Text,
		Type:    req.Type,
		Options: req.Options,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.service.SubmitAnswer(r.Context(), p, req.QuestionID, req.Answer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAnswerResponse(a))
}

func (h *Handler) myAnswer(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	qid, ok := h.questionID(w, r)
	if !ok {
		return
	}
	a, found, err := h.service.MyAnswer(r.Context(), p, qid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toAnswerResponse(a))
}

func (h *Handler) answersByQuestion(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	qid, ok := h.questionID(w, r)
	if !ok {
		return
	}
	rows, err := h.service.AnswersByQuestion(r.Context(), p, qid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) audit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	qid, ok := h.questionID(w, r)
	if !ok {
		return
	}
	entries, err := h.service.Audit(r.Context(), p, qid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	header := r.Header.Get("Authorization")
	token := ""
	if strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	p, err := h.service.Authenticate(r.Context(), token)
	if err != nil {
		h.writeError(w, err)
		return domain.Principal{}, false
	}
	return p, true
}

func (h *Handler) questionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("questionId"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, fmt.Errorf("%w: question id must be a positive integer", domain.ErrValidation))
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, fmt.Errorf("%w: malformed JSON body", domain.ErrValidation))
		return false
	}
	return true
}

func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", h.allowedOrigin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func toAnswerResponse(a domain.Answer) answerResponse {
	return answerResponse{
		ID:         a.ID,
		QuestionID: a.QuestionID,
		Answer:     a.Value,
		CreatedAt:  a.CreatedAt,
		Hash:       a.SealHash,
	}
}
