package engine

import (
	"context"
	"fmt"

	"github.com/pavelanni/adaptquiz/internal/adaptive"
	"github.com/pavelanni/adaptquiz/internal/aggregate"
	"github.com/pavelanni/adaptquiz/internal/model"
)

// LevelSummary is a learner's record at one cognitive level.
type LevelSummary struct {
	model.LevelBreakdown
	Percent  float64                  `json:"percent"`
	Feedback model.LevelFeedbackLevel `json:"feedback_level"`
}

// LearnerSummary is the profile view with history and current weights.
type LearnerSummary struct {
	Profile  model.LearnerProfile  `json:"profile"`
	Feedback model.FeedbackLevel   `json:"feedback_level"`
	Weights  model.LevelWeights    `json:"weights"`
	Levels   []LevelSummary        `json:"levels"`
	Sessions []model.SessionRecord `json:"sessions"`
}

// Summary reports a learner's profile, per-level performance over all
// recorded answers, the weights of the next draw and the session history.
func (e *Engine) Summary(ctx context.Context, username string) (*LearnerSummary, error) {
	p, err := e.learner(ctx, username)
	if err != nil {
		return nil, err
	}
	breakdown, err := e.store.LevelBreakdown(ctx, p.Username)
	if err != nil {
		return nil, fmt.Errorf("level breakdown: %w", err)
	}
	sessions, err := e.store.ListSessions(ctx, p.Username)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	levels := make([]LevelSummary, len(breakdown))
	for i, b := range breakdown {
		pct := b.Percent()
		levels[i] = LevelSummary{LevelBreakdown: b, Percent: pct, Feedback: aggregate.LevelFeedback(pct)}
	}
	if sessions == nil {
		sessions = []model.SessionRecord{}
	}

	return &LearnerSummary{
		Profile:  *p,
		Feedback: aggregate.Feedback(p.TotalScore),
		Weights:  adaptive.ComputeWeights(*p),
		Levels:   levels,
		Sessions: sessions,
	}, nil
}
