package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"fipabet-seal-service/internal/app"
	"fipabet-seal-service/internal/identity"
	"fipabet-seal-service/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	accounts := identity.NewService(memory.NewUserRepository(), identity.Config{
		Secret:      []byte("test"),
		TokenTTL:    time.Hour,
		AdminInvite: "invite",
	})
	questions := app.NewQuestionStore(memory.NewQuestionRepository())
	ledger := app.NewAnswerLedger(questions, memory.NewAnswerRepository(), memory.NewKeyLocker(), nil)
	service := app.NewService(accounts, questions, ledger, nil)

	server := httptest.NewServer(NewHandler(service, accounts, nil, "http://localhost:5173").Routes())
	t.Cleanup(server.Close)
	return server
}

func call(t *testing.T, server *httptest.Server, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func register(t *testing.T, server *httptest.Server, username, invite string) string {
	t.Helper()
	status, body := call(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":    username,
		"password":    "secret1",
		"adminInvite": invite,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", username, status, body)
	}
	var session struct {
		Token string `json:"token"`
		User  struct {
			IsAdmin bool `json:"isAdmin"`
		} `json:"user"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.User.IsAdmin != (invite != "") {
		t.Fatalf("unexpected admin flag for %s", username)
	}
	return session.Token
}

func errorKind(t *testing.T, body []byte) string {
	t.Helper()
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error payload %s: %v", body, err)
	}
	if payload.Error == "" {
		t.Fatalf("expected error message in %s", body)
	}
	return payload.Kind
}

func TestAnswerFlow(t *testing.T) {
	server := newTestServer(t)
	adminToken := register(t, server, "admin", "invite")
	userToken := register(t, server, "xavier", "")

	status, body := call(t, server, http.MethodGet, "/api/question/current", "", nil)
	if status != http.StatusOK || strings.TrimSpace(string(body)) != "null" {
		t.Fatalf("expected empty current question, got %d %s", status, body)
	}

	status, body = call(t, server, http.MethodPost, "/api/question", adminToken, map[string]any{
		"text":    "Who wins?",
		"type":    "opciones",
		"options": []string{"A", "B", "C"},
	})
	if status != http.StatusCreated {
		t.Fatalf("publish: %d %s", status, body)
	}
	var q struct {
		ID      int64    `json:"id"`
		Options []string `json:"options"`
	}
	if err := json.Unmarshal(body, &q); err != nil {
		t.Fatalf("decode question: %v", err)
	}
	qid := strconv.FormatInt(q.ID, 10)

	status, body = call(t, server, http.MethodGet, "/question/current", "", nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"Who wins?"`) {
		t.Fatalf("current at root path: %d %s", status, body)
	}

	status, body = call(t, server, http.MethodPost, "/api/answers", userToken, map[string]any{"questionId": q.ID, "answer": "B"})
	if status != http.StatusCreated {
		t.Fatalf("submit: %d %s", status, body)
	}
	var sealed answerResponse
	if err := json.Unmarshal(body, &sealed); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if sealed.Answer != "B" || len(sealed.Hash) != 64 || sealed.CreatedAt.IsZero() {
		t.Fatalf("unexpected sealed answer %+v", sealed)
	}

	status, body = call(t, server, http.MethodPost, "/api/answers", userToken, map[string]any{"questionId": q.ID, "answer": "C"})
	if status != http.StatusConflict || errorKind(t, body) != "conflict" {
		t.Fatalf("expected 409 conflict, got %d %s", status, body)
	}

	status, body = call(t, server, http.MethodGet, "/api/answers/mine/"+qid, userToken, nil)
	if status != http.StatusOK {
		t.Fatalf("mine: %d %s", status, body)
	}
	var mine answerResponse
	if err := json.Unmarshal(body, &mine); err != nil {
		t.Fatalf("decode mine: %v", err)
	}
	if mine.Answer != "B" || mine.Hash != sealed.Hash {
		t.Fatalf("locked answer changed: %+v", mine)
	}

	status, body = call(t, server, http.MethodGet, "/api/answers/mine/"+qid, adminToken, nil)
	if status != http.StatusOK || strings.TrimSpace(string(body)) != "null" {
		t.Fatalf("admin has no answer of their own, got %d %s", status, body)
	}

	status, body = call(t, server, http.MethodGet, "/api/answers/by-question/"+qid, adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("by-question: %d %s", status, body)
	}
	var rows []struct {
		Username string `json:"username"`
		Answer   string `json:"answer"`
		Hash     string `json:"hash"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows) != 1 || rows[0].Username != "xavier" || rows[0].Answer != "B" || rows[0].Hash != sealed.Hash {
		t.Fatalf("unexpected rows %+v", rows)
	}

	status, body = call(t, server, http.MethodGet, "/api/answers/verify/"+qid, adminToken, nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"intact":true`) {
		t.Fatalf("verify: %d %s", status, body)
	}
}

func TestErrorStatuses(t *testing.T) {
	server := newTestServer(t)
	adminToken := register(t, server, "admin", "invite")
	userToken := register(t, server, "yolanda", "")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		kind   string
	}{
		{"no token", http.MethodPost, "/api/answers", "", map[string]any{"questionId": 1, "answer": "x"}, http.StatusUnauthorized, "authentication"},
		{"bad token", http.MethodGet, "/api/answers/mine/1", "garbage", nil, http.StatusUnauthorized, "authentication"},
		{"user publishes", http.MethodPost, "/api/question", userToken, map[string]any{"text": "q", "type": "texto"}, http.StatusForbidden, "authorization"},
		{"user lists", http.MethodGet, "/api/answers/by-question/1", userToken, nil, http.StatusForbidden, "authorization"},
		{"no question", http.MethodPost, "/api/answers", userToken, map[string]any{"questionId": 1, "answer": "x"}, http.StatusNotFound, "not_found"},
		{"bad question", http.MethodPost, "/api/question", adminToken, map[string]any{"text": "q", "type": "opciones", "options": []string{"A"}}, http.StatusBadRequest, "validation"},
		{"bad id", http.MethodGet, "/api/answers/mine/abc", userToken, nil, http.StatusBadRequest, "validation"},
		{"bad invite", http.MethodPost, "/api/auth/register", "", map[string]string{"username": "eve", "password": "secret1", "adminInvite": "nope"}, http.StatusForbidden, "authorization"},
		{"bad login", http.MethodPost, "/api/auth/login", "", map[string]string{"username": "yolanda", "password": "wrong!!"}, http.StatusUnauthorized, "authentication"},
	}
	for _, tc := range cases {
		status, body := call(t, server, tc.method, tc.path, tc.token, tc.body)
		if status != tc.status {
			t.Fatalf("%s: expected %d, got %d %s", tc.name, tc.status, status, body)
		}
		if kind := errorKind(t, body); kind != tc.kind {
			t.Fatalf("%s: expected kind %s, got %s", tc.name, tc.kind, kind)
		}
	}
}

func TestStaleQuestionRejected(t *testing.T) {
	server := newTestServer(t)
	adminToken := register(t, server, "admin", "invite")
	userToken := register(t, server, "zoe", "")

	publish := func(text string) int64 {
		status, body := call(t, server, http.MethodPost, "/api/question", adminToken, map[string]any{"text": text, "type": "texto"})
		if status != http.StatusCreated {
			t.Fatalf("publish: %d %s", status, body)
		}
		var q struct {
			ID int64 `json:"id"`
		}
		_ = json.Unmarshal(body, &q)
		return q.ID
	}
	old := publish("first")
	publish("second")

	status, body := call(t, server, http.MethodPost, "/api/answers", userToken, map[string]any{"questionId": old, "answer": "late"})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for superseded question, got %d %s", status, body)
	}
}

func TestMalformedBody(t *testing.T) {
	server := newTestServer(t)
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/auth/login", strings.NewReader("{"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	h := NewHandler(nil, nil, nil, "")
	rec := httptest.NewRecorder()
	h.writeError(rec, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
	if errorKind(t, rec.Body.Bytes()) != "internal" {
		t.Fatalf("expected internal kind")
	}
}

func TestHealthAndPreflight(t *testing.T) {
	server := newTestServer(t)
	status, body := call(t, server, http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz: %d %s", status, body)
	}

	req, _ := http.NewRequest(http.MethodOptions, server.URL+"/api/answers", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
