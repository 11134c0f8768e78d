package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// ExportLearners builds export-ready results for every learner, including
// each session's answers.
func (s *Store) ExportLearners(ctx context.Context) ([]model.LearnerResult, error) {
	learners, err := s.ListLearners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list learners: %w", err)
	}

	var results []model.LearnerResult
	for _, p := range learners {
		sessions, err := s.ListSessions(ctx, p.Username)
		if err != nil {
			return nil, fmt.Errorf("list sessions for %s: %w", p.Username, err)
		}
		for i := range sessions {
			answers, err := s.ListResponses(ctx, sessions[i].ID)
			if err != nil {
				return nil, fmt.Errorf("list responses for session %s: %w", sessions[i].ID, err)
			}
			sessions[i].Answers = answers
		}

		levels, err := s.LevelBreakdown(ctx, p.Username)
		if err != nil {
			return nil, fmt.Errorf("level breakdown for %s: %w", p.Username, err)
		}

		results = append(results, model.LearnerResult{
			Username:           p.Username,
			TotalScore:         p.TotalScore,
			RememberingScore:   p.RememberingScore,
			UnderstandingScore: p.UnderstandingScore,
			ApplyingScore:      p.ApplyingScore,
			NumSessions:        p.NumSessions,
			CreatedAt:          p.CreatedAt,
			Sessions:           sessions,
			Levels:             levels,
		})
	}
	return results, nil
}
