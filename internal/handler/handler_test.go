package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/adaptquiz/internal/catalog"
	"github.com/pavelanni/adaptquiz/internal/engine"
	appI18n "github.com/pavelanni/adaptquiz/internal/i18n"
	"github.com/pavelanni/adaptquiz/internal/model"
	"github.com/pavelanni/adaptquiz/internal/store"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cat, err := catalog.New([]model.Question{
		{ID: 1, Text: "Capital of France?", ReferenceAnswer: "paris is the capital of france", Label: model.LevelRemembering},
		{ID: 2, Text: "Why is the sky blue?", ReferenceAnswer: "light scatters in the atmosphere", Label: model.LevelUnderstanding},
		{ID: 3, Text: "What would the wolf do?", ReferenceAnswer: "the wolf will huff and puff", Label: model.LevelApplying},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	e := engine.New(cat, st, engine.Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		HashCost: bcrypt.MinCost,
	})
	return New(e, model.ServerConfig{Lang: "en"}).Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestSignupAndLogin(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"signup", "/signup", `{"username":"ann","password":"secret"}`, http.StatusCreated},
		{"signup duplicate", "/signup", `{"username":"ann","password":"other"}`, http.StatusConflict},
		{"signup missing password", "/signup", `{"username":"bob"}`, http.StatusBadRequest},
		{"signup malformed", "/signup", `{"username":`, http.StatusBadRequest},
		{"login", "/login", `{"username":"ann","password":"secret"}`, http.StatusOK},
		{"login wrong password", "/login", `{"username":"ann","password":"nope"}`, http.StatusUnauthorized},
		{"login unknown user", "/login", `{"username":"zed","password":"secret"}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestQuestions(t *testing.T) {
	h := newTestRouter(t)
	do(t, h, http.MethodPost, "/signup", `{"username":"ann","password":"secret"}`)

	rec := do(t, h, http.MethodPost, "/questions", `{"username":"ann"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp questionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Questions) != 3 {
		t.Errorf("expected the whole 3-question bank, got %d", len(resp.Questions))
	}
	if len(resp.Weights) != 3 {
		t.Errorf("expected 3 weights, got %v", resp.Weights)
	}
	if resp.Questions[0].ReferenceAnswer == "" {
		t.Error("expected reference_answer in payload")
	}

	if rec := do(t, h, http.MethodPost, "/questions", `{"username":"nobody"}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/questions", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing username status = %d, want 400", rec.Code)
	}
}

func TestSubmitAnswers(t *testing.T) {
	h := newTestRouter(t)
	do(t, h, http.MethodPost, "/signup", `{"username":"ann","password":"secret"}`)

	body := `{"username":"ann","answers":[
		{"question_id":1,"user_response":"bananas","start_time":1000,"end_time":3000},
		{"question_id":3,"user_response":"The wolf will huff and puff","start_time":0,"end_time":4000}
	]}`
	rec := do(t, h, http.MethodPost, "/submit_answers", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["total_score"] != 100.0 {
		t.Errorf("total_score = %v, want 100", out["total_score"])
	}
	if out["correct_answers"] != 1.0 || out["incorrect_answers"] != 1.0 {
		t.Errorf("correct/incorrect = %v/%v", out["correct_answers"], out["incorrect_answers"])
	}
	if out["applying_score"] != 3.0 {
		t.Errorf("applying_score = %v, want 3", out["applying_score"])
	}
	if out["average_time_taken"] != 3000.0 {
		t.Errorf("average_time_taken = %v, want 3000", out["average_time_taken"])
	}
	if out["feedback"] != "Excellent performance! Keep up the good work!" {
		t.Errorf("feedback = %v", out["feedback"])
	}
	if out["feedback_level"] != string(model.FeedbackExcellent) {
		t.Errorf("feedback_level = %v", out["feedback_level"])
	}
	if id, _ := out["session_id"].(string); id == "" {
		t.Error("expected session_id")
	}
}

func TestSubmitAnswersErrors(t *testing.T) {
	h := newTestRouter(t)
	do(t, h, http.MethodPost, "/signup", `{"username":"ann","password":"secret"}`)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"unknown user", `{"username":"zed","answers":[{"question_id":1,"user_response":"x","start_time":0,"end_time":1}]}`, http.StatusNotFound},
		{"missing username", `{"answers":[]}`, http.StatusBadRequest},
		{"empty batch", `{"username":"ann","answers":[]}`, http.StatusBadRequest},
		{"missing field", `{"username":"ann","answers":[{"question_id":1,"start_time":0,"end_time":1}]}`, http.StatusBadRequest},
		{"unknown question", `{"username":"ann","answers":[{"question_id":42,"user_response":"x","start_time":0,"end_time":1}]}`, http.StatusBadRequest},
		{"end before start", `{"username":"ann","answers":[{"question_id":1,"user_response":"x","start_time":5,"end_time":1}]}`, http.StatusBadRequest},
		{"malformed", `not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/submit_answers", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}

	// None of the rejected batches touched the profile.
	rec := do(t, h, http.MethodGet, "/learners/ann", "")
	out := decode(t, rec)
	profile, _ := out["profile"].(map[string]any)
	if profile["num_sessions"] != 0.0 {
		t.Errorf("num_sessions = %v, want 0", profile["num_sessions"])
	}
}

func TestLearnerSummary(t *testing.T) {
	h := newTestRouter(t)
	do(t, h, http.MethodPost, "/signup", `{"username":"ann","password":"secret"}`)
	do(t, h, http.MethodPost, "/submit_answers",
		`{"username":"ann","answers":[{"question_id":3,"user_response":"the wolf will huff and puff","start_time":0,"end_time":1}]}`)

	rec := do(t, h, http.MethodGet, "/learners/ann", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if sessions, _ := out["sessions"].([]any); len(sessions) != 1 {
		t.Errorf("expected 1 session, got %v", out["sessions"])
	}
	msgs, _ := out["level_feedback"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 level messages, got %v", out["level_feedback"])
	}
	if msgs[2] != "Great job in Applying! You're doing really well." {
		t.Errorf("applying message = %v", msgs[2])
	}

	if rec := do(t, h, http.MethodGet, "/learners/nobody", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown learner status = %d, want 404", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	out := decode(t, rec)
	if out["status"] != "ok" || out["questions"] != 3.0 {
		t.Errorf("unexpected health response: %v", out)
	}
}

func TestLocalizedFeedback(t *testing.T) {
	h := newTestRouter(t)
	do(t, h, http.MethodPost, "/signup", `{"username":"ann","password":"secret"}`)

	req := httptest.NewRequest(http.MethodPost, "/submit_answers", strings.NewReader(
		`{"username":"ann","answers":[{"question_id":1,"user_response":"","start_time":0,"end_time":1}]}`))
	req.Header.Set("Accept-Language", "ru")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["feedback"] != "Нужно подтянуть знания. Сосредоточьтесь на понимании и применении понятий." {
		t.Errorf("feedback = %v", out["feedback"])
	}
}
