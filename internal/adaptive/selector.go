package adaptive

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// DefaultBatchSize is the number of questions served per session.
const DefaultBatchSize = 5

// RandSource is the random source used for draws. A nil source uses the
// process-wide, automatically seeded generator.
type RandSource = rand.Source

// Selector draws question batches by weighted sampling without replacement.
type Selector struct {
	src       RandSource
	rnd       *rand.Rand
	batchSize int
}

// NewSelector creates a Selector. A non-positive batch size means
// DefaultBatchSize. Only a Selector with a nil source is safe for concurrent
// use; seeded sources are for tests and tools.
func NewSelector(src RandSource, batchSize int) *Selector {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	s := &Selector{src: src, batchSize: batchSize}
	if src != nil {
		s.rnd = rand.New(src)
	}
	return s
}

// BatchSize returns the configured batch size.
func (s *Selector) BatchSize() int {
	return s.batchSize
}

// SelectBatch returns min(batch size, len(bank)) distinct questions in draw order.
// Each level's weight is spread evenly over that level's questions, so on the
// first draw a level is picked with probability equal to its weight. Once every
// remaining question has zero weight the rest are drawn uniformly.
func (s *Selector) SelectBatch(bank []model.Question, weights model.LevelWeights) []model.Question {
	n := min(s.batchSize, len(bank))
	if n == 0 {
		return nil
	}

	perLevel := make(map[model.CognitiveLevel]int)
	for _, q := range bank {
		perLevel[q.Label]++
	}
	w := make([]float64, len(bank))
	for i, q := range bank {
		if lw := weights[q.Label]; lw > 0 {
			w[i] = lw / float64(perLevel[q.Label])
		}
	}

	sampler := sampleuv.NewWeighted(w, s.src)
	taken := make([]bool, len(bank))
	batch := make([]model.Question, 0, n)
	for len(batch) < n {
		i, ok := sampler.Take()
		if !ok || taken[i] {
			i = s.uniform(taken)
			sampler.Reweight(i, 0)
		}
		taken[i] = true
		batch = append(batch, bank[i])
	}
	return batch
}

// uniform picks one of the indices not yet taken with equal probability.
func (s *Selector) uniform(taken []bool) int {
	free := make([]int, 0, len(taken))
	for i, t := range taken {
		if !t {
			free = append(free, i)
		}
	}
	return free[s.intN(len(free))]
}

func (s *Selector) intN(n int) int {
	if s.rnd == nil {
		return rand.IntN(n)
	}
	return s.rnd.IntN(n)
}
