package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

var (
	// ErrUsernameTaken is returned when creating a learner whose username exists.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrLearnerMissing is returned when a session is committed for an unknown learner.
	ErrLearnerMissing = errors.New("learner does not exist")
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: SQLite has a single writer, and ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS learners (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		total_score REAL NOT NULL DEFAULT 0,
		remembering_score REAL NOT NULL DEFAULT 0,
		understanding_score REAL NOT NULL DEFAULT 0,
		applying_score REAL NOT NULL DEFAULT 0,
		num_sessions INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		completed_at DATETIME NOT NULL,
		session_delta REAL NOT NULL DEFAULT 0,
		total_score REAL NOT NULL DEFAULT 0,
		correct INTEGER NOT NULL DEFAULT 0,
		incorrect INTEGER NOT NULL DEFAULT 0,
		avg_time_taken REAL NOT NULL DEFAULT 0,
		FOREIGN KEY (username) REFERENCES learners(username)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_username ON sessions(username);

	CREATE TABLE IF NOT EXISTS responses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		username TEXT NOT NULL,
		question_id INTEGER NOT NULL,
		label TEXT NOT NULL,
		weight INTEGER NOT NULL,
		user_response TEXT NOT NULL DEFAULT '',
		similarity REAL NOT NULL DEFAULT 0,
		correct INTEGER NOT NULL DEFAULT 0,
		score REAL NOT NULL DEFAULT 0,
		time_taken REAL NOT NULL DEFAULT 0,
		FOREIGN KEY (session_id) REFERENCES sessions(id),
		FOREIGN KEY (username) REFERENCES learners(username)
	);

	CREATE INDEX IF NOT EXISTS idx_responses_username ON responses(username);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
