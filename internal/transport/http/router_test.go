package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	server  *httptest.Server
	service *app.QuizService
	clock   *testClock
}

func newTestEnv(t *testing.T, admin AdminCredentials) testEnv {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	quizzes := memory.NewQuizStore()
	service := app.NewQuizService(quizzes, memory.NewQuizRepository(quizzes, time.Minute), memory.NewAttemptStore(), memory.NewLedger(),
		app.WithShuffle(false),
		app.WithEngineOptions(app.WithClock(clock.Now)),
	)
	handler := NewHandler(service, admin, 10*time.Millisecond, zerolog.Nop())
	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return testEnv{server: server, service: service, clock: clock}
}

func (e testEnv) do(t *testing.T, method, path string, body any, auth ...string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (e testEnv) seedCapitals(t *testing.T) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/quizzes", map[string]any{"name": "Capitals", "time_limit": 5})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create quiz: %d %s", resp.StatusCode, body)
	}
	var quiz domain.Quiz
	_ = json.Unmarshal(body, &quiz)

	for _, q := range []map[string]any{
		{"type": "MCQ", "prompt": "Capital of Pakistan?", "options": []string{"Islamabad", "Karachi", "Lahore", "Peshawar"}, "answer": "Islamabad"},
		{"type": "MCQ", "prompt": "2+2=?", "options": []string{"3", "4", "5", "6"}, "answer": "4"},
	} {
		resp, body := e.do(t, http.MethodPost, "/api/quizzes/"+quiz.ID+"/questions", q)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("add question: %d %s", resp.StatusCode, body)
		}
	}
	return quiz.ID
}

func TestAttemptFlowOverREST(t *testing.T) {
	env := newTestEnv(t, AdminCredentials{})
	quizID := env.seedCapitals(t)

	resp, body := env.do(t, http.MethodPost, "/api/quizzes/"+quizID+"/attempts", map[string]string{"name": "Alice", "registration_id": "R100"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: %d %s", resp.StatusCode, body)
	}
	if strings.Contains(string(body), "canonical_answer") {
		t.Fatalf("attempt view leaked answers: %s", body)
	}
	var view attemptView
	_ = json.Unmarshal(body, &view)
	if view.RemainingSeconds != 300 || len(view.Questions) != 2 || view.State != domain.InProgress {
		t.Fatalf("unexpected view %+v", view)
	}

	if resp, body := env.do(t, http.MethodPut, "/api/attempts/"+view.AttemptID+"/answers/0", map[string]string{"response": "Islamabad"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("answer: %d %s", resp.StatusCode, body)
	}
	if resp, _ := env.do(t, http.MethodPut, "/api/attempts/"+view.AttemptID+"/answers/1", map[string]string{"response": "5"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("answer: %d", resp.StatusCode)
	}
	if resp, _ := env.do(t, http.MethodPut, "/api/attempts/"+view.AttemptID+"/answers/7", map[string]string{"response": "x"}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad index, got %d", resp.StatusCode)
	}
	resp, body = env.do(t, http.MethodPost, "/api/attempts/"+view.AttemptID+"/move", map[string]int{"delta": 3})
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"cursor":1`) {
		t.Fatalf("move: %d %s", resp.StatusCode, body)
	}

	env.clock.Advance(time.Minute)
	_, body = env.do(t, http.MethodGet, "/api/attempts/"+view.AttemptID+"/remaining", nil)
	if !strings.Contains(string(body), `"remaining_seconds":240`) {
		t.Fatalf("remaining: %s", body)
	}

	resp, body = env.do(t, http.MethodPost, "/api/attempts/"+view.AttemptID+"/submit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: %d %s", resp.StatusCode, body)
	}
	var submitted submitResponse
	_ = json.Unmarshal(body, &submitted)
	if submitted.Result.Score != 1 || submitted.Result.TotalQuestions != 2 {
		t.Fatalf("unexpected result %+v", submitted.Result)
	}

	resp, body = env.do(t, http.MethodPost, "/api/attempts/"+view.AttemptID+"/submit", nil)
	if resp.StatusCode != http.StatusConflict || !strings.Contains(string(body), "already_submitted") {
		t.Fatalf("second submit: %d %s", resp.StatusCode, body)
	}
	resp, body = env.do(t, http.MethodPost, "/api/quizzes/"+quizID+"/attempts", map[string]string{"name": "alice", "registration_id": "r100"})
	if resp.StatusCode != http.StatusConflict || !strings.Contains(string(body), "duplicate_attempt") {
		t.Fatalf("duplicate start: %d %s", resp.StatusCode, body)
	}

	_, body = env.do(t, http.MethodGet, "/api/quizzes/"+quizID+"/leaderboard", nil)
	var lb domain.Leaderboard
	_ = json.Unmarshal(body, &lb)
	if len(lb.Entries) != 1 || lb.Entries[0].Name != "Alice" {
		t.Fatalf("unexpected leaderboard %s", body)
	}

	_, body = env.do(t, http.MethodGet, "/api/students/results?name=Alice&registration_id=R100", nil)
	var mine []domain.Result
	_ = json.Unmarshal(body, &mine)
	if len(mine) != 1 {
		t.Fatalf("unexpected student results %s", body)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/attempts/"+view.AttemptID+"/result", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("result lookup: %d", resp.StatusCode)
	}
}

func TestErrorStatuses(t *testing.T) {
	env := newTestEnv(t, AdminCredentials{})
	quizID := env.seedCapitals(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing registration", http.MethodPost, "/api/quizzes/" + quizID + "/attempts", map[string]string{"name": "Bob"}, http.StatusBadRequest},
		{"unknown quiz", http.MethodPost, "/api/quizzes/nope/attempts", map[string]string{"name": "Bob", "registration_id": "R2"}, http.StatusNotFound},
		{"unknown attempt", http.MethodGet, "/api/attempts/nope", nil, http.StatusNotFound},
		{"bad quiz body", http.MethodPost, "/api/quizzes", map[string]any{"name": "X", "time_limit": 0}, http.StatusBadRequest},
		{"bad scoring mode", http.MethodPost, "/api/quizzes", map[string]any{"name": "X", "time_limit": 3, "scoring_mode": "bonus"}, http.StatusBadRequest},
		{"bad question", http.MethodPost, "/api/quizzes/" + quizID + "/questions", map[string]any{"type": "TF", "prompt": "Sky is green", "answer": "perhaps"}, http.StatusBadRequest},
		{"no generator", http.MethodPost, "/api/quizzes/" + quizID + "/generate", map[string]any{"text": "some text", "count": 2}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.want, body)
			}
		})
	}

	resp, body := env.do(t, http.MethodPost, "/api/quizzes", map[string]any{"name": "Empty", "time_limit": 3})
	var empty domain.Quiz
	_ = json.Unmarshal(body, &empty)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create empty: %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/api/quizzes/"+empty.ID+"/attempts", map[string]string{"name": "Bob", "registration_id": "R2"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty quiz start: %d", resp.StatusCode)
	}
}

func TestAdminRoutesRequireCredentials(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	env := newTestEnv(t, AdminCredentials{Username: "admin", PasswordHash: hash})

	resp, _ := env.do(t, http.MethodPost, "/api/quizzes", map[string]any{"name": "Capitals", "time_limit": 5})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/api/quizzes", map[string]any{"name": "Capitals", "time_limit": 5}, "admin", "wrong")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong password, got %d", resp.StatusCode)
	}
	resp, body := env.do(t, http.MethodPost, "/api/quizzes", map[string]any{"name": "Capitals", "time_limit": 5}, "admin", "s3cret")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 with credentials, got %d %s", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/quizzes?search=cap", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"question_count":0`) {
		t.Fatalf("public listing: %d %s", resp.StatusCode, body)
	}
}

func TestExportEndpoint(t *testing.T) {
	env := newTestEnv(t, AdminCredentials{})
	quizID := env.seedCapitals(t)
	for i, name := range []string{"Alice", "Bob"} {
		_, body := env.do(t, http.MethodPost, "/api/quizzes/"+quizID+"/attempts", map[string]string{"name": name, "registration_id": fmt.Sprintf("R%d", i)})
		var view attemptView
		_ = json.Unmarshal(body, &view)
		env.do(t, http.MethodPost, "/api/attempts/"+view.AttemptID+"/submit", nil)
	}

	resp, body := env.do(t, http.MethodGet, "/api/results?format=json&quiz_id="+quizID, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"count": 2`) {
		t.Fatalf("json export: %d %s", resp.StatusCode, body)
	}
	resp, body = env.do(t, http.MethodGet, "/api/results?format=xlsx", nil)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "PK") {
		t.Fatalf("xlsx export: %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/results?format=pdf", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("pdf export should be rejected, got %d", resp.StatusCode)
	}

	_, body = env.do(t, http.MethodGet, "/api/quizzes/"+quizID+"/stats", nil)
	if !strings.Contains(string(body), `"attempts":2`) {
		t.Fatalf("stats: %s", body)
	}
	_, body = env.do(t, http.MethodGet, "/api/questions", nil)
	var bank []domain.BankEntry
	_ = json.Unmarshal(body, &bank)
	if len(bank) != 2 {
		t.Fatalf("question bank: %s", body)
	}
}
