// Package aggregate folds a graded answer batch into a learner's cumulative state.
package aggregate

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// MaxTotalScore caps a learner's cumulative total score.
const MaxTotalScore = 100.0

// degenerateRange is the spread under which PCA scores count as identical.
const degenerateRange = 1e-9

// ErrEmptySession is returned when a session has no graded answers.
var ErrEmptySession = errors.New("session has no answers")

// ApplySession computes the session score and the updated profile.
//
// Each answer becomes a row [correct, weight]; the rows are reduced to one
// scalar each with single-component PCA, min-max normalized to [0, 100] and
// summed. The sum is added to the total score, which is capped at
// MaxTotalScore. Level scores grow by correct*weight per answer and the session
// count grows by one. The input profile is not modified.
func ApplySession(p model.LearnerProfile, graded []model.GradedAnswer) (model.LearnerProfile, model.SessionResult, error) {
	if len(graded) == 0 {
		return p, model.SessionResult{}, ErrEmptySession
	}

	data := mat.NewDense(len(graded), 2, nil)
	for i, g := range graded {
		data.Set(i, 0, float64(g.Correct))
		data.Set(i, 1, float64(g.Weight))
	}
	normalized := minMaxNormalize(principalScores(data))

	var delta float64
	for _, x := range normalized {
		delta += x
	}

	next := p
	next.TotalScore = capTotal(p.TotalScore, delta)

	var correct int
	var timeTaken float64
	for _, g := range graded {
		next.AddLevelScore(g.Label, float64(g.Correct*g.Weight))
		correct += g.Correct
		timeTaken += g.TimeTaken
	}
	next.NumSessions = p.NumSessions + 1

	res := model.SessionResult{
		TotalScore:         next.TotalScore,
		SessionDelta:       delta,
		Correct:            correct,
		Incorrect:          len(graded) - correct,
		RememberingScore:   next.RememberingScore,
		UnderstandingScore: next.UnderstandingScore,
		ApplyingScore:      next.ApplyingScore,
		Feedback:           Feedback(next.TotalScore),
		AverageTimeTaken:   timeTaken / float64(len(graded)),
		NormalizedScores:   normalized,
	}
	return next, res, nil
}

// capTotal adds delta to prev, keeping the result in [prev, MaxTotalScore].
func capTotal(prev, delta float64) float64 {
	prev = math.Max(0, math.Min(MaxTotalScore, prev))
	if delta <= 0 || math.IsNaN(delta) {
		return prev
	}
	return math.Min(MaxTotalScore, prev+delta)
}

// Feedback classifies a total score.
func Feedback(total float64) model.FeedbackLevel {
	switch {
	case total >= 80:
		return model.FeedbackExcellent
	case total >= 50:
		return model.FeedbackGood
	default:
		return model.FeedbackNeedsImprovement
	}
}

// LevelFeedback classifies the share of achievable points earned at one level.
func LevelFeedback(percent float64) model.LevelFeedbackLevel {
	switch {
	case percent >= 70:
		return model.LevelStrong
	case percent >= 40:
		return model.LevelFair
	default:
		return model.LevelNeedsPractice
	}
}
