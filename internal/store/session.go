package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// CommitSession replaces the learner's profile and records the session with
// its answers in a single transaction. scores holds the normalized score of
// each answer in rec.Answers order.
func (s *Store) CommitSession(ctx context.Context, p model.LearnerProfile, rec model.SessionRecord, scores []float64) error {
	if len(scores) != len(rec.Answers) {
		return fmt.Errorf("commit session: %d scores for %d answers", len(scores), len(rec.Answers))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := writeProfile(ctx, tx, p); err != nil {
		return fmt.Errorf("update learner: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, username, completed_at, session_delta, total_score, correct, incorrect, avg_time_taken)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, p.Username, rec.CompletedAt, rec.SessionDelta, rec.TotalScore, rec.Correct, rec.Incorrect, rec.AvgTimeTaken,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i, a := range rec.Answers {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO responses (session_id, username, question_id, label, weight, user_response, similarity, correct, score, time_taken)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, p.Username, a.QuestionID, a.Label, a.Weight, a.Response, a.Similarity, a.Correct, scores[i], a.TimeTaken,
		)
		if err != nil {
			return fmt.Errorf("insert response: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("committed session", "username", p.Username, "session_id", rec.ID,
		"total_score", p.TotalScore, "num_sessions", p.NumSessions)
	return nil
}

// ListSessions returns a learner's sessions, oldest first, without answers.
func (s *Store) ListSessions(ctx context.Context, username string) ([]model.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, completed_at, session_delta, total_score, correct, incorrect, avg_time_taken
		 FROM sessions WHERE username = ? ORDER BY rowid`, username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.SessionRecord
	for rows.Next() {
		var r model.SessionRecord
		if err := rows.Scan(&r.ID, &r.Username, &r.CompletedAt, &r.SessionDelta, &r.TotalScore, &r.Correct, &r.Incorrect, &r.AvgTimeTaken); err != nil {
			return nil, err
		}
		sessions = append(sessions, r)
	}
	return sessions, rows.Err()
}

// ListResponses returns the graded answers of a session in submission order.
func (s *Store) ListResponses(ctx context.Context, sessionID string) ([]model.GradedAnswer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, label, weight, user_response, similarity, correct, time_taken
		 FROM responses WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.GradedAnswer
	for rows.Next() {
		var a model.GradedAnswer
		if err := rows.Scan(&a.QuestionID, &a.Label, &a.Weight, &a.Response, &a.Similarity, &a.Correct, &a.TimeTaken); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// LevelBreakdown aggregates all recorded answers of a learner per level.
// Every level is present in the result, in level order.
func (s *Store) LevelBreakdown(ctx context.Context, username string) ([]model.LevelBreakdown, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT label, COUNT(*), COALESCE(SUM(correct), 0), COALESCE(SUM(correct * weight), 0), COALESCE(SUM(weight), 0)
		 FROM responses WHERE username = ? GROUP BY label`, username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byLevel := make(map[model.CognitiveLevel]model.LevelBreakdown)
	for rows.Next() {
		var b model.LevelBreakdown
		if err := rows.Scan(&b.Level, &b.Answered, &b.Correct, &b.EarnedPoints, &b.PossiblePoints); err != nil {
			return nil, err
		}
		byLevel[b.Level] = b
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.LevelBreakdown, 0, 3)
	for _, l := range model.Levels() {
		b := byLevel[l]
		b.Level = l
		out = append(out, b)
	}
	return out, nil
}
