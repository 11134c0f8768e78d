// Package engine runs the learner-facing operations: signup, login, question
// selection and answer submission.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/adaptquiz/internal/adaptive"
	"github.com/pavelanni/adaptquiz/internal/aggregate"
	"github.com/pavelanni/adaptquiz/internal/catalog"
	"github.com/pavelanni/adaptquiz/internal/model"
	"github.com/pavelanni/adaptquiz/internal/similarity"
	"github.com/pavelanni/adaptquiz/internal/store"
)

var (
	ErrNotFound           = errors.New("learner not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = store.ErrUsernameTaken
)

// LearnerStore persists learner profiles and session history.
// GetLearner returns nil and no error for an unknown username.
type LearnerStore interface {
	CreateLearner(ctx context.Context, username, passwordHash string) (*model.LearnerProfile, error)
	GetLearner(ctx context.Context, username string) (*model.LearnerProfile, error)
	CommitSession(ctx context.Context, p model.LearnerProfile, rec model.SessionRecord, scores []float64) error
	ListSessions(ctx context.Context, username string) ([]model.SessionRecord, error)
	LevelBreakdown(ctx context.Context, username string) ([]model.LevelBreakdown, error)
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Selector *adaptive.Selector
	Scorer   *similarity.Scorer
	Logger   *slog.Logger
	HashCost int
}

// Engine is safe for concurrent use.
type Engine struct {
	catalog  *catalog.Catalog
	store    LearnerStore
	selector *adaptive.Selector
	scorer   *similarity.Scorer
	logger   *slog.Logger
	hashCost int
	locks    *keyedMutex
}

// New creates an Engine over a read-only catalog and a learner store.
func New(cat *catalog.Catalog, st LearnerStore, opts Options) *Engine {
	e := &Engine{
		catalog:  cat,
		store:    st,
		selector: opts.Selector,
		scorer:   opts.Scorer,
		logger:   opts.Logger,
		hashCost: opts.HashCost,
		locks:    newKeyedMutex(),
	}
	if e.selector == nil {
		e.selector = adaptive.NewSelector(nil, adaptive.DefaultBatchSize)
	}
	if e.scorer == nil {
		e.scorer = similarity.NewScorer()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.hashCost == 0 {
		e.hashCost = bcrypt.DefaultCost
	}
	return e
}

// QuestionCount returns the size of the question bank.
func (e *Engine) QuestionCount() int {
	return e.catalog.Len()
}

// Signup creates a learner with all scores at zero.
func (e *Engine) Signup(ctx context.Context, username, password string) (*model.LearnerProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), e.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	p, err := e.store.CreateLearner(ctx, username, string(hash))
	if err != nil {
		return nil, err
	}
	e.logger.Info("learner signed up", "username", username)
	return p, nil
}

// Authenticate checks a learner's credentials.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (*model.LearnerProfile, error) {
	p, err := e.store.GetLearner(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		e.logger.Warn("login failed", "username", p.Username)
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

// SelectQuestions draws the next batch for a learner together with the level
// weights it was drawn with.
func (e *Engine) SelectQuestions(ctx context.Context, username string) ([]model.Question, model.LevelWeights, error) {
	p, err := e.learner(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	weights := adaptive.ComputeWeights(*p)
	batch := e.selector.SelectBatch(e.catalog.All(), weights)
	e.logger.Debug("selected questions", "username", p.Username,
		"count", len(batch), "batch_size", e.selector.BatchSize(),
		"remembering", weights[model.LevelRemembering],
		"understanding", weights[model.LevelUnderstanding],
		"applying", weights[model.LevelApplying])
	return batch, weights, nil
}

// Submit grades a batch of answers, folds it into the learner's profile and
// records the session. Submissions for the same learner are serialized. An
// invalid batch or a cancelled context leaves the profile unchanged.
func (e *Engine) Submit(ctx context.Context, username string, answers []model.SubmittedAnswer) (model.SessionResult, error) {
	username = strings.TrimSpace(username)
	unlock := e.locks.Lock(username)
	defer unlock()

	p, err := e.learner(ctx, username)
	if err != nil {
		return model.SessionResult{}, err
	}

	questions, err := e.resolve(answers)
	if err != nil {
		return model.SessionResult{}, err
	}

	graded := make([]model.GradedAnswer, len(answers))
	for i, a := range answers {
		graded[i] = e.scorer.Grade(questions[i], a)
	}

	next, res, err := aggregate.ApplySession(*p, graded)
	if err != nil {
		return model.SessionResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	rec := model.SessionRecord{
		ID:           uuid.NewString(),
		Username:     p.Username,
		CompletedAt:  time.Now().UTC(),
		SessionDelta: res.SessionDelta,
		TotalScore:   res.TotalScore,
		Correct:      res.Correct,
		Incorrect:    res.Incorrect,
		AvgTimeTaken: res.AverageTimeTaken,
		Answers:      graded,
	}

	if err := ctx.Err(); err != nil {
		return model.SessionResult{}, err
	}
	if err := e.store.CommitSession(ctx, next, rec, res.NormalizedScores); err != nil {
		if errors.Is(err, store.ErrLearnerMissing) {
			return model.SessionResult{}, ErrNotFound
		}
		return model.SessionResult{}, fmt.Errorf("commit session: %w", err)
	}

	res.SessionID = rec.ID
	e.logger.Info("session submitted", "username", p.Username, "session_id", rec.ID,
		"correct", res.Correct, "incorrect", res.Incorrect,
		"session_delta", res.SessionDelta, "total_score", res.TotalScore)
	return res, nil
}

// resolve validates a batch and returns the question of each answer.
func (e *Engine) resolve(answers []model.SubmittedAnswer) ([]model.Question, error) {
	if len(answers) == 0 {
		return nil, fmt.Errorf("%w: no answers submitted", ErrInvalidInput)
	}
	questions := make([]model.Question, len(answers))
	for i, a := range answers {
		q, ok := e.catalog.Get(a.QuestionID)
		if !ok {
			return nil, fmt.Errorf("%w: answer %d: unknown question id %d", ErrInvalidInput, i, a.QuestionID)
		}
		if !isFinite(a.StartTime) || !isFinite(a.EndTime) {
			return nil, fmt.Errorf("%w: answer %d: timestamps must be finite", ErrInvalidInput, i)
		}
		if a.EndTime < a.StartTime {
			return nil, fmt.Errorf("%w: answer %d: end_time before start_time", ErrInvalidInput, i)
		}
		questions[i] = q
	}
	return questions, nil
}

func (e *Engine) learner(ctx context.Context, username string) (*model.LearnerProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	p, err := e.store.GetLearner(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get learner: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
