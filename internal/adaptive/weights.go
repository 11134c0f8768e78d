// Package adaptive picks question batches biased toward a learner's weaker
// cognitive levels.
package adaptive

import (
	"math"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// ComputeWeights returns a sampling distribution over cognitive levels that
// favors the levels where the learner's per-session average is lowest.
// New learners, and learners with no correct answers yet, get uniform weights.
func ComputeWeights(p model.LearnerProfile) model.LevelWeights {
	if p.NumSessions <= 0 {
		return model.UniformWeights()
	}

	levels := model.Levels()
	avg := make(map[model.CognitiveLevel]float64, len(levels))
	var totalAvg float64
	for _, l := range levels {
		a := math.Max(0, p.LevelScore(l)) / float64(p.NumSessions)
		avg[l] = a
		totalAvg += a
	}
	if totalAvg <= 0 || math.IsNaN(totalAvg) || math.IsInf(totalAvg, 0) {
		return model.UniformWeights()
	}

	w := make(model.LevelWeights, len(levels))
	var sum float64
	for _, l := range levels {
		w[l] = (totalAvg - avg[l]) / totalAvg
		sum += w[l]
	}
	// Three levels always sum to 2.
	if sum <= 0 {
		return model.UniformWeights()
	}
	for _, l := range levels {
		w[l] /= sum
	}
	return w
}
