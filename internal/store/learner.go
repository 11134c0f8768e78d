package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/adaptquiz/internal/model"
)

const learnerColumns = `username, password_hash, total_score, remembering_score, understanding_score,
	applying_score, num_sessions, created_at, updated_at`

// CreateLearner inserts a learner with all scores at zero.
// It returns ErrUsernameTaken if the username exists.
func (s *Store) CreateLearner(ctx context.Context, username, passwordHash string) (*model.LearnerProfile, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO learners (username, password_hash, total_score, remembering_score, understanding_score,
			applying_score, num_sessions, created_at, updated_at)
		 VALUES (?, ?, 0, 0, 0, 0, 0, ?, ?)
		 ON CONFLICT(username) DO NOTHING`,
		username, passwordHash, now, now,
	)
	if err != nil {
		slog.Error("failed to create learner", "username", username, "error", err)
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrUsernameTaken
	}
	slog.Info("created learner", "username", username)
	return &model.LearnerProfile{
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetLearner returns a learner by username, or nil if there is none.
// Numeric fields that are stored in an unusable form are repaired and the
// repaired values are written back.
func (s *Store) GetLearner(ctx context.Context, username string) (*model.LearnerProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+learnerColumns+` FROM learners WHERE username = ?`, username,
	)
	p, repaired, err := scanLearner(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(repaired) > 0 {
		slog.Warn("repaired corrupted learner fields", "username", username, "fields", repaired)
		if err := writeProfile(ctx, s.db, *p); err != nil {
			return nil, fmt.Errorf("write repaired learner: %w", err)
		}
	}
	return p, nil
}

// ListLearners returns all learners ordered by username.
func (s *Store) ListLearners(ctx context.Context) ([]model.LearnerProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+learnerColumns+` FROM learners ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var learners []model.LearnerProfile
	for rows.Next() {
		p, repaired, err := scanLearner(rows)
		if err != nil {
			return nil, err
		}
		if len(repaired) > 0 {
			slog.Warn("learner has corrupted fields", "username", p.Username, "fields", repaired)
		}
		learners = append(learners, *p)
	}
	return learners, rows.Err()
}

// LearnerCount returns the total number of learners.
func (s *Store) LearnerCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM learners`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// scanLearner reads one learner row. Numeric columns are scanned as raw values
// and normalized; the names of fields that needed repair are returned.
func scanLearner(r rowScanner) (*model.LearnerProfile, []string, error) {
	var p model.LearnerProfile
	var total, rem, und, app, sessions any
	if err := r.Scan(&p.Username, &p.PasswordHash, &total, &rem, &und, &app, &sessions, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, nil, err
	}

	var repaired []string
	var ok bool
	if p.TotalScore, ok = totalScore(total); !ok {
		repaired = append(repaired, "total_score")
	}
	if p.RememberingScore, ok = levelScore(rem); !ok {
		repaired = append(repaired, "remembering_score")
	}
	if p.UnderstandingScore, ok = levelScore(und); !ok {
		repaired = append(repaired, "understanding_score")
	}
	if p.ApplyingScore, ok = levelScore(app); !ok {
		repaired = append(repaired, "applying_score")
	}
	if p.NumSessions, ok = sessionCount(sessions); !ok {
		repaired = append(repaired, "num_sessions")
	}
	return &p, repaired, nil
}

// writeProfile replaces every mutable field of a learner.
func writeProfile(ctx context.Context, db execer, p model.LearnerProfile) error {
	res, err := db.ExecContext(ctx,
		`UPDATE learners SET total_score = ?, remembering_score = ?, understanding_score = ?,
			applying_score = ?, num_sessions = ?, updated_at = ?
		 WHERE username = ?`,
		p.TotalScore, p.RememberingScore, p.UnderstandingScore, p.ApplyingScore, p.NumSessions,
		time.Now().UTC(), p.Username,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLearnerMissing
	}
	return nil
}

// parseNumber converts a raw SQLite value to a finite float.
func parseNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case int64:
		f = float64(x)
	case float64:
		f = x
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(x), 64); err != nil {
			return 0, false
		}
	case []byte:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(string(x)), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// totalScore must lie in [0, 100]; out-of-range values are clamped.
func totalScore(v any) (float64, bool) {
	f, ok := parseNumber(v)
	if !ok {
		return 0, false
	}
	if f < 0 || f > 100 {
		return math.Max(0, math.Min(100, f)), false
	}
	return f, true
}

// levelScore must be a non-negative number.
func levelScore(v any) (float64, bool) {
	f, ok := parseNumber(v)
	if !ok || f < 0 {
		return 0, false
	}
	return f, true
}

// sessionCount must be a non-negative integer.
func sessionCount(v any) (int, bool) {
	f, ok := parseNumber(v)
	if !ok || f < 0 || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
