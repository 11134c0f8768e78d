package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/adaptquiz/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestLearner(t *testing.T, s *Store, username string) *model.LearnerProfile {
	t.Helper()
	p, err := s.CreateLearner(context.Background(), username, "hash-"+username)
	if err != nil {
		t.Fatalf("createTestLearner: %v", err)
	}
	return p
}

func testSession(id string, answers ...model.GradedAnswer) model.SessionRecord {
	return model.SessionRecord{
		ID:          id,
		CompletedAt: time.Now().UTC(),
		TotalScore:  100,
		Answers:     answers,
	}
}

func TestLearnerCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.LearnerCount(ctx)
	if err != nil {
		t.Fatalf("LearnerCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 learners, got %d", count)
	}

	created := createTestLearner(t, s, "ann")
	if created.TotalScore != 0 || created.NumSessions != 0 {
		t.Errorf("new learner not zeroed: %+v", created)
	}

	got, err := s.GetLearner(ctx, "ann")
	if err != nil {
		t.Fatalf("GetLearner: %v", err)
	}
	if got == nil {
		t.Fatal("expected learner, got nil")
	}
	if got.PasswordHash != "hash-ann" {
		t.Errorf("expected password hash 'hash-ann', got %q", got.PasswordHash)
	}
	if got.TotalScore != 0 || got.RememberingScore != 0 || got.UnderstandingScore != 0 || got.ApplyingScore != 0 || got.NumSessions != 0 {
		t.Errorf("expected zeroed profile, got %+v", got)
	}

	// Not found.
	missing, err := s.GetLearner(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetLearner(nobody): %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown learner, got %+v", missing)
	}

	// Duplicate.
	_, err = s.CreateLearner(ctx, "ann", "other")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
	got, _ = s.GetLearner(ctx, "ann")
	if got.PasswordHash != "hash-ann" {
		t.Errorf("duplicate signup overwrote hash: %q", got.PasswordHash)
	}

	createTestLearner(t, s, "bob")
	list, err := s.ListLearners(ctx)
	if err != nil {
		t.Fatalf("ListLearners: %v", err)
	}
	if len(list) != 2 || list[0].Username != "ann" || list[1].Username != "bob" {
		t.Errorf("unexpected learner list: %+v", list)
	}
}

func TestCommitSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := *createTestLearner(t, s, "ann")

	p.TotalScore = 100
	p.RememberingScore = 0
	p.ApplyingScore = 3
	p.NumSessions = 1
	rec := testSession("sess-1",
		model.GradedAnswer{QuestionID: 1, Label: model.LevelRemembering, Weight: 1, Response: "blue", Similarity: 0, Correct: 0, TimeTaken: 2000},
		model.GradedAnswer{QuestionID: 7, Label: model.LevelApplying, Weight: 3, Response: "huff and puff", Similarity: 1, Correct: 1, TimeTaken: 4000},
	)
	rec.Correct, rec.Incorrect, rec.AvgTimeTaken, rec.SessionDelta = 1, 1, 3000, 100

	if err := s.CommitSession(ctx, p, rec, []float64{0, 100}); err != nil {
		t.Fatalf("CommitSession: %v", err)
	}

	got, err := s.GetLearner(ctx, "ann")
	if err != nil {
		t.Fatalf("GetLearner: %v", err)
	}
	if got.TotalScore != 100 || got.ApplyingScore != 3 || got.NumSessions != 1 {
		t.Errorf("profile not replaced: %+v", got)
	}

	sessions, err := s.ListSessions(ctx, "ann")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].ID != "sess-1" || sessions[0].Correct != 1 || sessions[0].AvgTimeTaken != 3000 {
		t.Errorf("unexpected session: %+v", sessions[0])
	}

	answers, err := s.ListResponses(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListResponses: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(answers))
	}
	if answers[1].QuestionID != 7 || answers[1].Label != model.LevelApplying || answers[1].Response != "huff and puff" {
		t.Errorf("unexpected response: %+v", answers[1])
	}
}

func TestCommitSessionUnknownLearnerRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ghost := model.LearnerProfile{Username: "ghost", TotalScore: 10, NumSessions: 1}
	rec := testSession("sess-x", model.GradedAnswer{QuestionID: 1, Label: model.LevelRemembering, Weight: 1})
	err := s.CommitSession(ctx, ghost, rec, []float64{0})
	if !errors.Is(err, ErrLearnerMissing) {
		t.Fatalf("expected ErrLearnerMissing, got %v", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no sessions after rollback, got %d", n)
	}
}

func TestCommitSessionScoreMismatch(t *testing.T) {
	s := newTestStore(t)
	p := *createTestLearner(t, s, "ann")
	rec := testSession("sess-1", model.GradedAnswer{QuestionID: 1, Label: model.LevelRemembering, Weight: 1})
	if err := s.CommitSession(context.Background(), p, rec, nil); err == nil {
		t.Fatal("expected error for missing scores")
	}
}

func TestCommitSessionCancelledContext(t *testing.T) {
	s := newTestStore(t)
	p := *createTestLearner(t, s, "ann")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p.TotalScore = 50
	p.NumSessions = 1
	rec := testSession("sess-1", model.GradedAnswer{QuestionID: 1, Label: model.LevelRemembering, Weight: 1})
	if err := s.CommitSession(ctx, p, rec, []float64{0}); err == nil {
		t.Fatal("expected error for cancelled context")
	}

	got, err := s.GetLearner(context.Background(), "ann")
	if err != nil {
		t.Fatalf("GetLearner: %v", err)
	}
	if got.TotalScore != 0 || got.NumSessions != 0 {
		t.Errorf("profile changed despite cancellation: %+v", got)
	}
}

func TestGetLearnerRepairsCorruptedFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestLearner(t, s, "ann")

	_, err := s.db.Exec(
		`UPDATE learners SET total_score = 'not-a-number', remembering_score = 4, understanding_score = -2,
			applying_score = 'x', num_sessions = 'many' WHERE username = 'ann'`,
	)
	if err != nil {
		t.Fatalf("corrupt learner: %v", err)
	}

	got, err := s.GetLearner(ctx, "ann")
	if err != nil {
		t.Fatalf("GetLearner: %v", err)
	}
	if got.TotalScore != 0 || got.UnderstandingScore != 0 || got.ApplyingScore != 0 || got.NumSessions != 0 {
		t.Errorf("corrupted fields not reset: %+v", got)
	}
	if got.RememberingScore != 4 {
		t.Errorf("valid field changed: remembering = %v, want 4", got.RememberingScore)
	}

	var kind string
	if err := s.db.QueryRow(`SELECT typeof(total_score) FROM learners WHERE username = 'ann'`).Scan(&kind); err != nil {
		t.Fatalf("typeof: %v", err)
	}
	if kind != "real" && kind != "integer" {
		t.Errorf("repair not written back, total_score stored as %s", kind)
	}
}

func TestGetLearnerClampsTotalScore(t *testing.T) {
	s := newTestStore(t)
	createTestLearner(t, s, "ann")
	if _, err := s.db.Exec(`UPDATE learners SET total_score = 250 WHERE username = 'ann'`); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetLearner(context.Background(), "ann")
	if err != nil {
		t.Fatalf("GetLearner: %v", err)
	}
	if got.TotalScore != 100 {
		t.Errorf("TotalScore = %v, want 100", got.TotalScore)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"int", int64(3), 3, true},
		{"float", 2.5, 2.5, true},
		{"numeric string", " 1.5 ", 1.5, true},
		{"bytes", []byte("7"), 7, true},
		{"garbage", "abc", 0, false},
		{"nan string", "NaN", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseNumber(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("parseNumber(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestLevelBreakdown(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := *createTestLearner(t, s, "ann")

	rec := testSession("sess-1",
		model.GradedAnswer{QuestionID: 1, Label: model.LevelRemembering, Weight: 1, Correct: 1},
		model.GradedAnswer{QuestionID: 2, Label: model.LevelRemembering, Weight: 1, Correct: 0},
		model.GradedAnswer{QuestionID: 3, Label: model.LevelApplying, Weight: 3, Correct: 1},
	)
	p.NumSessions = 1
	if err := s.CommitSession(ctx, p, rec, []float64{0, 0, 0}); err != nil {
		t.Fatalf("CommitSession: %v", err)
	}

	levels, err := s.LevelBreakdown(ctx, "ann")
	if err != nil {
		t.Fatalf("LevelBreakdown: %v", err)
	}
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}
	rem, und, app := levels[0], levels[1], levels[2]
	if rem.Level != model.LevelRemembering || rem.Answered != 2 || rem.Correct != 1 || rem.Percent() != 50 {
		t.Errorf("unexpected remembering breakdown: %+v", rem)
	}
	if und.Level != model.LevelUnderstanding || und.Answered != 0 || und.Percent() != 0 {
		t.Errorf("unexpected understanding breakdown: %+v", und)
	}
	if app.EarnedPoints != 3 || app.PossiblePoints != 3 {
		t.Errorf("unexpected applying breakdown: %+v", app)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fp, err := s.CatalogFingerprint(ctx)
	if err != nil {
		t.Fatalf("CatalogFingerprint: %v", err)
	}
	if fp != "" {
		t.Errorf("expected empty fingerprint, got %q", fp)
	}

	if err := s.SetCatalogFingerprint(ctx, "abc"); err != nil {
		t.Fatalf("SetCatalogFingerprint: %v", err)
	}
	if err := s.SetCatalogFingerprint(ctx, "def"); err != nil {
		t.Fatalf("SetCatalogFingerprint overwrite: %v", err)
	}
	fp, _ = s.CatalogFingerprint(ctx)
	if fp != "def" {
		t.Errorf("expected fingerprint 'def', got %q", fp)
	}
}

func TestExportLearners(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := *createTestLearner(t, s, "ann")
	createTestLearner(t, s, "bob")

	p.NumSessions = 1
	p.RememberingScore = 1
	rec := testSession("sess-1", model.GradedAnswer{QuestionID: 1, Label: model.LevelRemembering, Weight: 1, Correct: 1})
	if err := s.CommitSession(ctx, p, rec, []float64{0}); err != nil {
		t.Fatalf("CommitSession: %v", err)
	}

	results, err := s.ExportLearners(ctx)
	if err != nil {
		t.Fatalf("ExportLearners: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 learners, got %d", len(results))
	}
	ann := results[0]
	if ann.Username != "ann" || len(ann.Sessions) != 1 || len(ann.Sessions[0].Answers) != 1 {
		t.Errorf("unexpected export for ann: %+v", ann)
	}
	if len(results[1].Sessions) != 0 {
		t.Errorf("bob should have no sessions, got %d", len(results[1].Sessions))
	}
}
